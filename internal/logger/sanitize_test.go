package logger

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{"empty", "", 10, ""},
		{"plain", "hello", 10, "hello"},
		{"control chars removed", "a\nb\rc\x00d", 10, "abcd"},
		{"truncated", "abcdefghij", 4, "abcd..."},
		{"multibyte not split", "餐廳餐廳", 4, "餐..."},
		{"invalid utf8 dropped", "ok\xffok", 10, "okok"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeString(tt.input, tt.maxLength); got != tt.want {
				t.Errorf("SanitizeString(%q, %d) = %q, want %q", tt.input, tt.maxLength, got, tt.want)
			}
		})
	}
}

func TestSanitizePath_LongPath(t *testing.T) {
	t.Parallel()

	got := SanitizePath("/" + strings.Repeat("a", MaxPathLength*2))
	if len(got) != MaxPathLength+3 {
		t.Errorf("SanitizePath length = %d, want %d", len(got), MaxPathLength+3)
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	if got := SanitizeError(nil); got != "" {
		t.Errorf("SanitizeError(nil) = %q, want empty", got)
	}
	if got := SanitizeError(errors.New("boom\n")); got != "boom" {
		t.Errorf("SanitizeError() = %q, want %q", got, "boom")
	}
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"alice@example.com", "a***@example.com"},
		{"@example.com", "***"},
		{"no-at-sign", "***"},
		{"", "***"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := MaskEmail(tt.input); got != tt.want {
				t.Errorf("MaskEmail(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
