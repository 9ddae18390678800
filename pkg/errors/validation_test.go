package errors

import (
	"math"
	"strings"
	"testing"
)

func TestValidateNodeID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "a", false},
		{"valid with dash", "node-1", false},
		{"valid unicode", "knoten-ü", false},
		{"valid with spaces", "two words", false},

		{"empty", "", true},
		{"too long", strings.Repeat("x", 300), true},
		{"null byte", "foo\x00bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNodeID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNodeID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidGraph) {
				t.Errorf("ValidateNodeID(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidGraph)
			}
		})
	}
}

func TestValidateWeight(t *testing.T) {
	tests := []struct {
		name    string
		w       float64
		wantErr bool
	}{
		{"one", 1, false},
		{"small", 1e-6, false},
		{"zero", 0, true},
		{"negative", -2, true},
		{"nan", math.NaN(), true},
		{"inf", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateWeight("edge", tt.w); (err != nil) != tt.wantErr {
				t.Errorf("ValidateWeight(%v) error = %v, wantErr %v", tt.w, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"redis://localhost:6379/0", false},
		{"rediss://cache.internal:6380", false},
		{"mongodb://localhost:27017", false},
		{"mongodb+srv://cluster.example.net", false},
		{"", true},
		{"http://localhost", true},
		{"localhost:6379", true},
	}

	for _, tt := range tests {
		if err := ValidateURL(tt.input); (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}
