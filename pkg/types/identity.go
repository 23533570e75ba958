package types

import (
	"strings"
	"unicode"
)

// Identity is an opaque caller identity. The calling layer is responsible for
// making it unforgeable; the ledger only compares identities for equality.
type Identity string

// Validate returns ErrInvalidIdentity if the identity is empty or contains
// whitespace.
func (id Identity) Validate() error {
	if id == "" {
		return ErrInvalidIdentity
	}
	if strings.IndexFunc(string(id), unicode.IsSpace) >= 0 {
		return ErrInvalidIdentity
	}
	return nil
}

// String implements fmt.Stringer.
func (id Identity) String() string { return string(id) }
