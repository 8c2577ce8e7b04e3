// Package validation implements the parameter validator (C2): enum
// membership and format constraints, enforced after VM-value-to-string
// coercion and before any effect is dispatched.
package validation

import (
	"fmt"
	"strings"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
)

// Validate checks value against the parameter's enum and format
// constraints. Frozen parameters must never reach this function — the
// binder injects them directly (§4.1).
func Validate(funcName, paramName, format string, enumValues []string, value string) error {
	if len(enumValues) > 0 {
		if !contains(enumValues, value) {
			return toolerrors.NewInvalidArgumentError(fmt.Sprintf(
				"%s: parameter %q must be one of [%s], got %q",
				funcName, paramName, strings.Join(enumValues, ", "), value,
			), nil)
		}
	}

	if format == "" {
		return nil
	}

	checker, known := formatCheckers[format]
	if !known {
		// Unknown formats are API-specific; do not reject (§4.1).
		return nil
	}

	if !checker(value) {
		return toolerrors.NewInvalidArgumentError(fmt.Sprintf(
			"%s: parameter %q must match format %q, got %q",
			funcName, paramName, format, value,
		), nil)
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
