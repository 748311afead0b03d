// Package models defines the credential domain types.
package models

import (
	"time"

	"trustledger/internal/trust"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
)

// CredentialType identifies which eligibility gate a credential attests to.
type CredentialType string

const (
	TypeVolume                 CredentialType = "volume"
	TypeDisputeRate            CredentialType = "dispute_rate"
	TypeEconomicVolume         CredentialType = "economic_volume"
	TypeCategorySpecialization CredentialType = "category_specialization"
)

var validTypes = map[CredentialType]bool{
	TypeVolume:                 true,
	TypeDisputeRate:            true,
	TypeEconomicVolume:         true,
	TypeCategorySpecialization: true,
}

// ParseCredentialType validates a wire-level credential type.
func ParseCredentialType(s string) (CredentialType, error) {
	t := CredentialType(s)
	if !validTypes[t] {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown credential type %q", s)
	}
	return t, nil
}

func (t CredentialType) String() string { return string(t) }

// Status is the read-time lifecycle state of a credential. Revocation and
// expiry are evaluated when the credential is read; neither is part of the
// signed payload, so a revoked or expired credential still verifies.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

// Credential is a signed, time-windowed attestation of aggregate statistics.
// The payload is immutable once issued; only the Revoked flag may change, and
// it sits outside the signature.
type Credential struct {
	ID          id.CredentialID     `json:"credential_id"`
	AgentDID    id.DID              `json:"agent_did"`
	Type        CredentialType      `json:"credential_type"`
	Category    string              `json:"category,omitempty"`
	Data        trust.WindowSummary `json:"data"`
	WindowStart time.Time           `json:"window_start"`
	WindowEnd   time.Time           `json:"window_end"`
	IssuedAt    time.Time           `json:"issued_at"`
	Signature   string              `json:"signature"`
	Revoked     bool                `json:"revoked"`
}

// signingPayload fixes the signed field set and order explicitly. Signature
// and Revoked are excluded; timestamps are serialized as UTC RFC 3339 strings
// so the signed bytes do not depend on time.Time internals.
type signingPayload struct {
	ID          id.CredentialID     `json:"credential_id"`
	AgentDID    id.DID              `json:"agent_did"`
	Type        CredentialType      `json:"credential_type"`
	Category    string              `json:"category,omitempty"`
	Data        trust.WindowSummary `json:"data"`
	WindowStart string              `json:"window_start"`
	WindowEnd   string              `json:"window_end"`
	IssuedAt    string              `json:"issued_at"`
}

// SigningPayload returns the canonicalizable view of the credential's signed
// fields.
func (c Credential) SigningPayload() any {
	return signingPayload{
		ID:          c.ID,
		AgentDID:    c.AgentDID,
		Type:        c.Type,
		Category:    c.Category,
		Data:        c.Data,
		WindowStart: c.WindowStart.UTC().Format(time.RFC3339),
		WindowEnd:   c.WindowEnd.UTC().Format(time.RFC3339),
		IssuedAt:    c.IssuedAt.UTC().Format(time.RFC3339),
	}
}

// StatusAt reports the credential's lifecycle state at the given instant.
// Revocation wins over expiry.
func (c Credential) StatusAt(now time.Time, ttl time.Duration) Status {
	if c.Revoked {
		return StatusRevoked
	}
	if ttl > 0 && now.After(c.IssuedAt.Add(ttl)) {
		return StatusExpired
	}
	return StatusActive
}
