// Package domain holds small domain primitives shared across services.
//
// Construct values via the Parse functions at trust boundaries; direct
// casting bypasses validation.
package domain

import (
	"encoding/hex"
	"strings"

	dErrors "selns/pkg/domain-errors"
)

// Principal identifies an account on the ledger: a 0x-prefixed, 20-byte,
// lowercase hex address. Invariant: either zero value or a valid address.
type Principal string

// Zero is the absent principal. Registry nodes with a Zero owner do not
// exist; leases never have a Zero holder.
const Zero Principal = ""

// ParsePrincipal constructs a Principal from external input.
//
// Errors: returns CodeBadRequest when the value is not a 0x-prefixed 40-digit
// hex string; no other errors are expected.
func ParsePrincipal(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, dErrors.New(dErrors.CodeBadRequest, "principal is required")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Zero, dErrors.New(dErrors.CodeBadRequest, "principal must be 0x-prefixed")
	}
	body := strings.ToLower(s[2:])
	if len(body) != 40 {
		return Zero, dErrors.New(dErrors.CodeBadRequest, "principal must be a 20-byte hex address")
	}
	if _, err := hex.DecodeString(body); err != nil {
		return Zero, dErrors.New(dErrors.CodeBadRequest, "principal contains non-hex characters")
	}
	return Principal("0x" + body), nil
}

// String returns the canonical lowercase form.
func (p Principal) String() string { return string(p) }

// IsZero reports whether the principal is absent.
func (p Principal) IsZero() bool { return p == Zero }
