package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var (
	clinicIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	imageIDPattern    = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)
	analysisIDPattern = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)
)

// ValidateClinicID validates clinic ID format
func ValidateClinicID(clinic string) error {
	if clinic == "" {
		return fmt.Errorf("clinic ID cannot be empty")
	}
	if !clinicIDPattern.MatchString(clinic) {
		return fmt.Errorf("invalid clinic ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateImageID validates an uploaded image identifier. Image IDs become
// object keys, so path separators and traversal sequences are rejected.
func ValidateImageID(imageID string) error {
	if imageID == "" {
		return fmt.Errorf("image ID cannot be empty")
	}
	if strings.Contains(imageID, "..") {
		return fmt.Errorf("invalid image ID")
	}
	if !imageIDPattern.MatchString(imageID) {
		return fmt.Errorf("invalid image ID format (alphanumeric, dot, dash, underscore only, max 128 chars)")
	}
	return nil
}

// ValidateAnalysisID validates analysis/job ID format (UUID)
func ValidateAnalysisID(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if !analysisIDPattern.MatchString(strings.ToLower(id)) {
		return fmt.Errorf("invalid ID format")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
