package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{name: "single", raw: "https://app.example.com", want: []string{"https://app.example.com"}},
		{name: "trims and dedupes", raw: " http://localhost:5173/ ,http://localhost:5173,https://a.example", want: []string{"http://localhost:5173", "https://a.example"}},
		{name: "wildcard", raw: "*", want: []string{"*"}},
		{name: "empty", raw: " , ", wantErr: true},
		{name: "missing scheme", raw: "app.example.com", wantErr: true},
		{name: "path not allowed", raw: "https://app.example.com/login", wantErr: true},
		{name: "ftp scheme", raw: "ftp://files.example.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOrigins(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseOrigins(%q) expected error, got %v", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseOrigins(%q) unexpected error: %v", tt.raw, err)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("parseOrigins(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestValidateRate(t *testing.T) {
	for _, rate := range []string{"5-S", "100-M", "1000-H", "10000-D"} {
		if err := validateRate(rate); err != nil {
			t.Errorf("validateRate(%q) unexpected error: %v", rate, err)
		}
	}
	for _, rate := range []string{"", "five-S", "5-Y", "5"} {
		if err := validateRate(rate); err == nil {
			t.Errorf("validateRate(%q) expected error", rate)
		}
	}
}

func TestValidateCoordinates(t *testing.T) {
	if err := validateCoordinates(25.03, 121.56); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateCoordinates(91, 0); err == nil {
		t.Error("expected latitude error")
	}
	if err := validateCoordinates(0, -181); err == nil {
		t.Error("expected longitude error")
	}
}

// Flag validation runs before any configuration or database access.
func TestCommandsRejectBadFlags(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"cors", "set"}, "--origins is required"},
		{[]string{"cors", "set", "--origins", "https://ok.example", "--max-age=-1"}, "--max-age"},
		{[]string{"ratelimit", "set", "--rate", "lots"}, "invalid rate"},
		{[]string{"migrate", "down", "--steps", "0"}, "--steps"},
		{[]string{"photocache", "purge", "--dir", t.TempDir()}, "--yes"},
		{[]string{"test", "places", "--lat", "100"}, "--lat"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			root := NewRootCmd()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&out)
			root.SetArgs(tt.args)

			err := root.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Execute(%v) error = %v, want it to mention %q", tt.args, err, tt.want)
			}
		})
	}
}

func TestPhotoCacheStats(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"photocache", "stats", "--dir", t.TempDir()})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "Entries:   0") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}
