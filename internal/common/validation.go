package common

import (
	"fmt"
	"slices"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ValidateRequirementSources checks that job requirements come from exactly
// one of the flag list or a requirements file.
func ValidateRequirementSources(inline []string, file string) error {
	switch {
	case len(inline) > 0 && file != "":
		return fmt.Errorf("use either --requirement or --requirements-file, not both")
	case len(inline) == 0 && file == "":
		return fmt.Errorf("at least one --requirement or a --requirements-file is required")
	}
	return nil
}
