// Package names validates registrable labels. Checks are pure and
// independent of registry state; availability is layered on top by the
// registration service.
package names

import (
	dErrors "selns/pkg/domain-errors"
)

const (
	// MinLength and MaxLength bound the registrable label length in
	// characters, excluding the TLD suffix.
	MinLength = 3
	MaxLength = 63
)

// Valid reports whether label is registrable: length in [3,63], lowercase
// ASCII letters, digits, or hyphen, with no leading or trailing hyphen.
func Valid(label string) bool {
	return Check(label) == nil
}

// Check validates a label and reports the first violation.
//
// Errors: always CodeNameInvalid.
func Check(label string) error {
	n := len(label)
	if n < MinLength {
		return dErrors.Newf(dErrors.CodeNameInvalid, "name must be at least %d characters", MinLength)
	}
	if n > MaxLength {
		return dErrors.Newf(dErrors.CodeNameInvalid, "name must be at most %d characters", MaxLength)
	}
	if label[0] == '-' || label[n-1] == '-' {
		return dErrors.New(dErrors.CodeNameInvalid, "name may not start or end with a hyphen")
	}
	for i := 0; i < n; i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return dErrors.New(dErrors.CodeNameInvalid, "name may only contain lowercase letters, digits, and hyphens")
		}
	}
	return nil
}
