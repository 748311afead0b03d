package domain

import (
	"fmt"
	"strings"
)

// DID is a decentralized identifier naming an agent, buyer, or platform.
// Invariant: the value has the shape did:<method>:<method-specific-id> with both
// segments non-empty.
//
// Usage: construct via ParseDID at trust boundaries to enforce the shape; direct
// casting bypasses validation. Validation is structural only - no resolution and
// no cryptographic binding to a key is performed here.
type DID string

// ParseDID constructs a DID from external input.
func ParseDID(s string) (DID, error) {
	if !ValidDID(s) {
		return "", fmt.Errorf("malformed DID: %q", s)
	}
	return DID(s), nil
}

// ValidDID reports whether s has the did:<method>:<id> shape.
func ValidDID(s string) bool {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return false
	}
	return parts[0] == "did" && parts[1] != "" && parts[2] != ""
}

// String returns the string representation of the DID.
func (d DID) String() string {
	return string(d)
}

// IsNil returns true if the DID is empty.
func (d DID) IsNil() bool {
	return d == ""
}

// Method returns the DID method segment ("key" for did:key:abc).
func (d DID) Method() string {
	parts := strings.SplitN(string(d), ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}
