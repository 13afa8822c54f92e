package knowledge

import "testing"

func TestSanitizeContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"keeps newlines and tabs", "a\n\tb", "a\n\tb"},
		{"drops nul bytes", "a\x00b", "ab"},
		{"drops control chars", "a\x01\x02\x1fb", "ab"},
		{"drops DEL", "a\x7fb", "ab"},
		{"drops replacement runes", "a�b", "ab"},
		{"trims whitespace", "  text  \n", "text"},
		{"keeps unicode", "café 文書", "café 文書"},
		{"control-only becomes empty", "\x00\x01\x02", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeContent(tt.in); got != tt.want {
				t.Errorf("SanitizeContent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
