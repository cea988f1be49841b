package validation

import (
	"fmt"
	"strings"
)

const (
	MinWorkers = 1
	MaxWorkers = 20

	MaxDeviceIDLength = 250
	MaxCardUIDLength  = 10
)

func ValidateWorkerCount(workers int) error {
	if workers < MinWorkers || workers > MaxWorkers {
		return fmt.Errorf("worker count must be between %d and %d, got %d", MinWorkers, MaxWorkers, workers)
	}
	return nil
}

func ValidateNonEmptyString(fieldName, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateDeviceID checks an opaque cloud device identifier.
func ValidateDeviceID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("device id cannot be empty")
	}
	if len(id) > MaxDeviceIDLength {
		return fmt.Errorf("device id must be at most %d characters, got %d", MaxDeviceIDLength, len(id))
	}
	if strings.ContainsAny(id, "/?# ") {
		return fmt.Errorf("invalid device id: %q", id)
	}
	return nil
}

func ValidateCardUID(uid string) error {
	if uid == "" {
		return fmt.Errorf("card uid cannot be empty")
	}
	if len(uid) > MaxCardUIDLength {
		return fmt.Errorf("card uid must be at most %d characters, got %d", MaxCardUIDLength, len(uid))
	}
	return nil
}

// ValidateUseLimit accepts zero, which means unlimited.
func ValidateUseLimit(limit int) error {
	if limit < 0 {
		return fmt.Errorf("use limit cannot be negative, got %d", limit)
	}
	return nil
}
