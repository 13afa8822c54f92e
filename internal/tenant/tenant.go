// Package tenant defines the three-level tenancy key that scopes every
// vector store read and write.
//
// All SIAM data is partitioned by (organization, division, application).
// The triple is passed explicitly to every store call as a value type;
// the store rejects calls with an invalid triple, so cross-tenant reads
// are a structural impossibility rather than a calling convention.
package tenant

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for tenancy validation.
var (
	// ErrEmptyField indicates a tenancy field is empty or whitespace.
	ErrEmptyField = errors.New("empty tenancy field")

	// ErrFieldTooLong indicates a tenancy field exceeds MaxFieldLength.
	ErrFieldTooLong = errors.New("tenancy field too long")
)

// MaxFieldLength bounds each tenancy field to keep keys indexable.
const MaxFieldLength = 128

// Tenancy is the (organization, division, application) triple.
// The zero value is invalid; construct with New and check Validate.
type Tenancy struct {
	Organization string
	Division     string
	Application  string
}

// New creates a Tenancy, trimming surrounding whitespace from each field.
func New(organization, division, application string) Tenancy {
	return Tenancy{
		Organization: strings.TrimSpace(organization),
		Division:     strings.TrimSpace(division),
		Application:  strings.TrimSpace(application),
	}
}

// Validate reports whether the triple is usable as a partition key.
func (t Tenancy) Validate() error {
	for _, f := range []struct {
		name  string
		value string
	}{
		{"organization", t.Organization},
		{"division", t.Division},
		{"application", t.Application},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", ErrEmptyField, f.name)
		}
		if len(f.value) > MaxFieldLength {
			return fmt.Errorf("%w: %s (%d > %d)", ErrFieldTooLong, f.name, len(f.value), MaxFieldLength)
		}
	}
	return nil
}

// String returns the slash-joined triple for logging.
func (t Tenancy) String() string {
	return t.Organization + "/" + t.Division + "/" + t.Application
}
