package common

import (
	"reflect"
	"testing"

	"resumeform/internal/errors"
)

func TestValidateOutputFormat(t *testing.T) {
	all := []string{"json", "text", "markdown"}

	tests := []struct {
		name      string
		format    string
		supported []string
		wantErr   bool
	}{
		{"json allowed", "json", all, false},
		{"markdown allowed", "markdown", all, false},
		{"no allow list", "text", nil, false},
		{"empty format", "", all, true},
		{"unknown format", "xml", all, true},
		{"case sensitive", "JSON", all, true},
		{"registered but not enabled", "markdown", []string{"json"}, true},
		{"enabled but not registered", "yaml", []string{"yaml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supported)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateOutputFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
			if err != nil && !errors.HasCode(err, errors.ErrCodeInvalidFormat) {
				t.Errorf("Expected %s, got %v", errors.ErrCodeInvalidFormat, err)
			}
		})
	}
}

func TestGetSupportedFormats(t *testing.T) {
	tests := []struct {
		name       string
		configured []string
		expected   []string
	}{
		{"nothing configured", nil, []string{"json", "markdown", "text"}},
		{"configured order kept", []string{"text", "json"}, []string{"text", "json"}},
		{"unregistered dropped", []string{"json", "yaml", "json"}, []string{"json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSupportedFormats(tt.configured); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("GetSupportedFormats(%v) = %v, want %v", tt.configured, got, tt.expected)
			}
		})
	}
}
