package models

import (
	"time"

	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
)

// RawReceipt is a receipt submission as it arrives from producers, before any
// validation. All fields are raw wire types; Parse is the only way to turn one
// into a Receipt.
type RawReceipt struct {
	ReceiptID   string     `json:"receipt_id"`
	TaskID      string     `json:"task_id"`
	AgentDID    string     `json:"agent_did"`
	BuyerDID    string     `json:"buyer_did"`
	PlatformDID string     `json:"platform_did,omitempty"`
	EscrowRef   string     `json:"escrow_reference,omitempty"`
	Amount      *float64   `json:"amount,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	Category    string     `json:"action_category,omitempty"`
	ActionType  string     `json:"action_type,omitempty"`
	Outcome     string     `json:"outcome"`
	Dispute     bool       `json:"dispute"`
	ArtifactHash string    `json:"artifact_hash,omitempty"`
	Signatures  Signatures `json:"signatures"`
	FinalizedAt time.Time  `json:"finalized_at"`
}

// Parse performs the schema check: required fields, DID shape, closed enums,
// non-negative amount. Signature, threshold, reference, and duplicate checks
// belong to the service pipeline.
func (raw RawReceipt) Parse() (Receipt, error) {
	receiptID, err := id.ParseReceiptID(raw.ReceiptID)
	if err != nil {
		return Receipt{}, dErrors.Wrap(err, dErrors.CodeValidation, "receipt_id is required")
	}
	if raw.TaskID == "" {
		return Receipt{}, dErrors.New(dErrors.CodeValidation, "task_id is required")
	}

	agentDID, err := id.ParseDID(raw.AgentDID)
	if err != nil {
		return Receipt{}, dErrors.Wrap(err, dErrors.CodeValidation, "agent_did is malformed")
	}
	buyerDID, err := id.ParseDID(raw.BuyerDID)
	if err != nil {
		return Receipt{}, dErrors.Wrap(err, dErrors.CodeValidation, "buyer_did is malformed")
	}
	var platformDID id.DID
	if raw.PlatformDID != "" {
		platformDID, err = id.ParseDID(raw.PlatformDID)
		if err != nil {
			return Receipt{}, dErrors.Wrap(err, dErrors.CodeValidation, "platform_did is malformed")
		}
	}

	if raw.Amount != nil && *raw.Amount < 0 {
		return Receipt{}, dErrors.New(dErrors.CodeValidation, "amount must be non-negative")
	}

	category, err := ParseCategory(raw.Category)
	if err != nil {
		return Receipt{}, err
	}
	outcome, err := ParseOutcome(raw.Outcome)
	if err != nil {
		return Receipt{}, err
	}

	finalizedAt := raw.FinalizedAt
	if finalizedAt.IsZero() {
		return Receipt{}, dErrors.New(dErrors.CodeValidation, "finalized_at is required")
	}

	return Receipt{
		ReceiptID:   receiptID,
		TaskID:      raw.TaskID,
		AgentDID:    agentDID,
		BuyerDID:    buyerDID,
		PlatformDID: platformDID,
		EscrowRef:   raw.EscrowRef,
		Amount:      raw.Amount,
		Currency:    raw.Currency,
		Category:    category,
		ActionType:  raw.ActionType,
		Outcome:     outcome,
		Dispute:     raw.Dispute,
		ArtifactHash: raw.ArtifactHash,
		Signatures:  raw.Signatures,
		FinalizedAt: finalizedAt,
	}, nil
}
