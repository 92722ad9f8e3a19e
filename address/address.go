// Package address defines principal and asset identifiers and the
// validators the ledger consults before accepting them.
package address

import (
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Address identifies a principal (sender, recipient, operator) or an asset.
type Address string

// String returns the address as a string.
func (a Address) String() string { return string(a) }

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool { return a == "" }

// Validation errors.
var (
	ErrEmpty      = errors.New("address: empty")
	ErrMalformed  = errors.New("address: malformed")
	ErrNotOnCurve = errors.New("address: not a valid ed25519 public key")
)

// Validator checks whether an address is acceptable to the ledger.
type Validator interface {
	Validate(a Address) error
}

// ValidatorFunc adapts a plain function to a Validator.
type ValidatorFunc func(a Address) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(a Address) error { return f(a) }

// Basic accepts any non-empty address without whitespace.
func Basic() Validator {
	return ValidatorFunc(func(a Address) error {
		if a.IsZero() {
			return ErrEmpty
		}
		if strings.ContainsAny(string(a), " \t\r\n") {
			return fmt.Errorf("%w: %q contains whitespace", ErrMalformed, a)
		}
		return nil
	})
}

// Base58Option configures the Base58 validator.
type Base58Option func(*base58Validator)

// WithCurveCheck additionally requires the decoded bytes to be a valid
// compressed edwards25519 point.
func WithCurveCheck() Base58Option {
	return func(v *base58Validator) { v.curveCheck = true }
}

// WithKeyLength overrides the expected decoded length (default 32).
func WithKeyLength(n int) Base58Option {
	return func(v *base58Validator) { v.keyLen = n }
}

type base58Validator struct {
	keyLen     int
	curveCheck bool
}

// Base58 accepts base58-encoded public keys of the configured length.
func Base58(opts ...Base58Option) Validator {
	v := &base58Validator{keyLen: 32}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *base58Validator) Validate(a Address) error {
	if a.IsZero() {
		return ErrEmpty
	}

	raw, err := base58.Decode(string(a))
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrMalformed, a, err)
	}
	if len(raw) != v.keyLen {
		return fmt.Errorf("%w: %q decodes to %d bytes, want %d", ErrMalformed, a, len(raw), v.keyLen)
	}

	if v.curveCheck {
		if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
			return fmt.Errorf("%w: %q", ErrNotOnCurve, a)
		}
	}
	return nil
}

// FromPublicKey encodes raw key bytes as a base58 Address.
func FromPublicKey(key []byte) Address {
	return Address(base58.Encode(key))
}
