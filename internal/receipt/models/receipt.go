package models

import (
	"time"

	id "trustledger/pkg/domain"
)

// Receipt is a signed, immutable record that one action between two DIDs
// occurred with a given outcome.
//
// Invariants:
//   - ReceiptID is globally unique (storage-level uniqueness constraint)
//   - once persisted, no field is ever mutated
//   - Amount, when present, is non-negative
//   - at least one signature in the bundle verified at submission
type Receipt struct {
	ReceiptID    id.ReceiptID   `json:"receipt_id"`
	TaskID       string         `json:"task_id"`
	AgentDID     id.DID         `json:"agent_did"`
	BuyerDID     id.DID         `json:"buyer_did"`
	PlatformDID  id.DID         `json:"platform_did,omitempty"`
	EscrowRef    string         `json:"escrow_reference,omitempty"`
	Amount       *float64       `json:"amount,omitempty"`
	Currency     string         `json:"currency,omitempty"`
	Category     ActionCategory `json:"action_category"`
	ActionType   string         `json:"action_type,omitempty"`
	Outcome      Outcome        `json:"outcome"`
	Dispute      bool           `json:"dispute"`
	ArtifactHash string         `json:"artifact_hash,omitempty"`
	Signatures   Signatures     `json:"signatures"`
	FinalizedAt  time.Time      `json:"finalized_at"`
}

// Signatures is the authorization bundle on a receipt. At least one entry must
// verify against the receipt's canonical payload.
type Signatures struct {
	Agent       string `json:"agent,omitempty"`
	Buyer       string `json:"buyer,omitempty"`
	Platform    string `json:"platform,omitempty"`
	Authorizing string `json:"authorizing,omitempty"`
}

// Empty reports whether the bundle carries no signatures at all.
func (s Signatures) Empty() bool {
	return s.Agent == "" && s.Buyer == "" && s.Platform == "" && s.Authorizing == ""
}

// Present returns the non-empty signatures in a fixed order.
func (s Signatures) Present() []string {
	var out []string
	for _, sig := range []string{s.Agent, s.Buyer, s.Platform, s.Authorizing} {
		if sig != "" {
			out = append(out, sig)
		}
	}
	return out
}

// signingPayload is the set of semantic fields covered by receipt signatures.
// The signatures bundle itself is excluded. Serialization is canonicalized
// (RFC 8785) before signing, so producers and the validator agree on bytes
// regardless of field order.
type signingPayload struct {
	ReceiptID    string   `json:"receipt_id"`
	TaskID       string   `json:"task_id"`
	AgentDID     string   `json:"agent_did"`
	BuyerDID     string   `json:"buyer_did"`
	PlatformDID  string   `json:"platform_did,omitempty"`
	EscrowRef    string   `json:"escrow_reference,omitempty"`
	Amount       *float64 `json:"amount,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	Category     string   `json:"action_category"`
	ActionType   string   `json:"action_type,omitempty"`
	Outcome      string   `json:"outcome"`
	Dispute      bool     `json:"dispute"`
	ArtifactHash string   `json:"artifact_hash,omitempty"`
	FinalizedAt  string   `json:"finalized_at"`
}

// SigningPayload returns the value whose canonical encoding receipt signatures
// cover. Timestamps are pinned to UTC RFC 3339 so the byte representation is
// stable across producers.
func (r Receipt) SigningPayload() any {
	return signingPayload{
		ReceiptID:   r.ReceiptID.String(),
		TaskID:      r.TaskID,
		AgentDID:    r.AgentDID.String(),
		BuyerDID:    r.BuyerDID.String(),
		PlatformDID: r.PlatformDID.String(),
		EscrowRef:   r.EscrowRef,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Category:    r.Category.String(),
		ActionType:  r.ActionType,
		Outcome:     r.Outcome.String(),
		Dispute:     r.Dispute,
		ArtifactHash: r.ArtifactHash,
		FinalizedAt: r.FinalizedAt.UTC().Format(time.RFC3339),
	}
}

// IsEconomic reports whether this receipt counts toward economic statistics.
func (r Receipt) IsEconomic() bool {
	return r.Category.IsEconomic()
}

// AmountOrZero returns the amount, treating absent as zero.
func (r Receipt) AmountOrZero() float64 {
	if r.Amount == nil {
		return 0
	}
	return *r.Amount
}
