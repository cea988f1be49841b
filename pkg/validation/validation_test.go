package validation

import (
	"strings"
	"testing"
)

func TestValidateWorkerCount(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		wantErr bool
	}{
		{"valid minimum", 1, false},
		{"valid middle", 10, false},
		{"valid maximum", 20, false},
		{"too low", 0, true},
		{"negative", -1, true},
		{"too high", 21, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWorkerCount(tt.workers)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWorkerCount(%d) error = %v, wantErr %v", tt.workers, err, tt.wantErr)
			}
		})
	}
}

func TestValidateNonEmptyString(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		value     string
		wantErr   bool
	}{
		{"valid string", "username", "john", false},
		{"empty string", "username", "", true},
		{"single space", "password", " ", false}, // Only checks empty
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNonEmptyString(tt.fieldName, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNonEmptyString(%q, %q) error = %v, wantErr %v", tt.fieldName, tt.value, err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.fieldName) {
				t.Errorf("Error message should mention field name %q: %v", tt.fieldName, err)
			}
		})
	}
}

func TestValidateDeviceID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"hex id", "53ff6f065067544853360587", false},
		{"short id", "dev-1", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"contains slash", "dev/1", true},
		{"contains query", "dev?x=1", true},
		{"contains space", "dev 1", true},
		{"too long", strings.Repeat("a", MaxDeviceIDLength+1), true},
		{"max length", strings.Repeat("a", MaxDeviceIDLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDeviceID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDeviceID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCardUID(t *testing.T) {
	tests := []struct {
		name    string
		uid     string
		wantErr bool
	}{
		{"typical", "04A1B2C3", false},
		{"max length", "0123456789", false},
		{"too long", "0123456789A", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCardUID(tt.uid)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCardUID(%q) error = %v, wantErr %v", tt.uid, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUseLimit(t *testing.T) {
	if err := ValidateUseLimit(0); err != nil {
		t.Errorf("zero should mean unlimited: %v", err)
	}
	if err := ValidateUseLimit(5); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateUseLimit(-1); err == nil {
		t.Error("negative limit should be rejected")
	}
}
