package common

import (
	"fmt"
	"slices"
	"strings"

	"resumeform/internal/errors"
	"resumeform/internal/formatters"
)

// ValidateOutputFormat checks format against the registered result formatters
// and, when configured, the app.supportedFormats allow list.
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if format == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat, "Output format cannot be empty", nil)
	}

	available := formatters.GlobalRegistry.GetSupportedFormats()
	if !slices.Contains(available, format) {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Unknown output format %q (available: %s)", format, strings.Join(available, ", ")), nil)
	}

	if len(supportedFormats) > 0 && !slices.Contains(supportedFormats, format) {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Output format %q is not enabled (enabled: %s)", format, strings.Join(supportedFormats, ", ")), nil)
	}

	return nil
}

// GetSupportedFormats returns the configured formats that have a formatter, in
// configured order. With nothing configured every registered format is returned.
func GetSupportedFormats(configured []string) []string {
	available := formatters.GlobalRegistry.GetSupportedFormats()
	if len(configured) == 0 {
		return available
	}

	formats := make([]string, 0, len(configured))
	for _, format := range configured {
		if slices.Contains(available, format) && !slices.Contains(formats, format) {
			formats = append(formats, format)
		}
	}
	return formats
}
