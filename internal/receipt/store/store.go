// Package store persists the append-only receipt ledger.
package store

import (
	"context"
	"time"

	"trustledger/internal/receipt/models"
	id "trustledger/pkg/domain"
)

// Ledger is interface-driven to keep the domain logic testable and to allow
// swapping in-memory and PostgreSQL persistence without rewiring business
// code. Implementations must enforce receipt_id uniqueness at the storage
// layer - a check-then-insert in application code would race under concurrent
// submission.
type Ledger interface {
	// Insert appends a receipt. Returns sentinel.ErrConflict when the
	// receipt_id already exists, including when the duplicate is discovered
	// by a storage uniqueness constraint mid-race.
	Insert(ctx context.Context, receipt models.Receipt) error

	// FindByID returns sentinel.ErrNotFound for unknown IDs.
	FindByID(ctx context.Context, receiptID id.ReceiptID) (models.Receipt, error)

	// ListByAgent returns the agent's receipts finalized at or after since
	// (zero = all time), ordered by finalized_at ascending. limit 0 means no
	// limit; a positive limit keeps the newest receipts and drops the
	// oldest.
	ListByAgent(ctx context.Context, agent id.DID, since time.Time, limit int) ([]models.Receipt, error)

	// CountByAgentSince counts the agent's receipts finalized at or after
	// since. Used for burst detection.
	CountByAgentSince(ctx context.Context, agent id.DID, since time.Time) (int, error)

	// ExistsBetween reports whether any receipt names agent as the acting
	// agent and buyer as the paying counterparty. Circular payment detection
	// asks this with the roles reversed.
	ExistsBetween(ctx context.Context, agent, buyer id.DID) (bool, error)
}
