package app

import (
	"context"
	"errors"
	"testing"

	"github.com/siamlabs/siam/internal/config"
)

func TestSetupNilConfig(t *testing.T) {
	if _, err := Setup(context.Background(), nil, nil); !errors.Is(err, config.ErrConfigNil) {
		t.Errorf("Setup(nil config) error = %v, want ErrConfigNil", err)
	}
}

func TestCloseOnZeroValue(t *testing.T) {
	var a App
	if err := a.Close(); err != nil {
		t.Errorf("Close on zero App: %v", err)
	}
	// Close is idempotent.
	if err := a.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
