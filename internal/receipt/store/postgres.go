package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"trustledger/internal/receipt/models"
	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// Postgres persists the ledger in PostgreSQL. The primary key on receipt_id is
// the duplicate check: two concurrent submissions of the same id race at the
// constraint, and the loser's violation is mapped to sentinel.ErrConflict.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the ledger table when absent. Deployments with managed
// migrations can skip this; tests rely on it.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS receipts (
			receipt_id    TEXT PRIMARY KEY,
			task_id       TEXT NOT NULL,
			agent_did     TEXT NOT NULL,
			buyer_did     TEXT NOT NULL,
			platform_did  TEXT,
			escrow_ref    TEXT,
			amount        DOUBLE PRECISION,
			currency      TEXT,
			category      TEXT NOT NULL,
			action_type   TEXT,
			outcome       TEXT NOT NULL,
			dispute       BOOLEAN NOT NULL DEFAULT FALSE,
			artifact_hash TEXT,
			signatures    JSONB NOT NULL,
			finalized_at  TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS receipts_agent_finalized_idx
			ON receipts (agent_did, finalized_at);
		CREATE INDEX IF NOT EXISTS receipts_agent_buyer_idx
			ON receipts (agent_did, buyer_did);
	`)
	if err != nil {
		return fmt.Errorf("ensure receipts schema: %w", err)
	}
	return nil
}

func (s *Postgres) Insert(ctx context.Context, receipt models.Receipt) error {
	sigs, err := json.Marshal(receipt.Signatures)
	if err != nil {
		return fmt.Errorf("marshal signatures: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO receipts (
			receipt_id, task_id, agent_did, buyer_did, platform_did, escrow_ref,
			amount, currency, category, action_type, outcome, dispute,
			artifact_hash, signatures, finalized_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		receipt.ReceiptID.String(),
		receipt.TaskID,
		receipt.AgentDID.String(),
		receipt.BuyerDID.String(),
		nullable(receipt.PlatformDID.String()),
		nullable(receipt.EscrowRef),
		receipt.Amount,
		nullable(receipt.Currency),
		receipt.Category.String(),
		nullable(receipt.ActionType),
		receipt.Outcome.String(),
		receipt.Dispute,
		nullable(receipt.ArtifactHash),
		sigs,
		receipt.FinalizedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, receiptID id.ReceiptID) (models.Receipt, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM receipts WHERE receipt_id = $1`, receiptID.String())
	receipt, err := scanReceipt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Receipt{}, sentinel.ErrNotFound
		}
		return models.Receipt{}, fmt.Errorf("find receipt by id: %w", err)
	}
	return receipt, nil
}

func (s *Postgres) ListByAgent(ctx context.Context, agent id.DID, since time.Time, limit int) ([]models.Receipt, error) {
	// A bounded read walks newest-first so the limit drops the oldest
	// receipts, then restores ascending order for callers.
	query := selectColumns + ` FROM receipts WHERE agent_did = $1 AND finalized_at >= $2 ORDER BY finalized_at ASC`
	args := []any{agent.String(), since.UTC()}
	if limit > 0 {
		query = selectColumns + ` FROM receipts WHERE agent_did = $1 AND finalized_at >= $2 ORDER BY finalized_at DESC LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list receipts by agent: %w", err)
	}
	defer rows.Close()

	var out []models.Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if limit > 0 {
		slices.Reverse(out)
	}
	return out, nil
}

func (s *Postgres) CountByAgentSince(ctx context.Context, agent id.DID, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM receipts WHERE agent_did = $1 AND finalized_at >= $2`,
		agent.String(), since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count receipts by agent: %w", err)
	}
	return count, nil
}

func (s *Postgres) ExistsBetween(ctx context.Context, agent, buyer id.DID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM receipts WHERE agent_did = $1 AND buyer_did = $2)`,
		agent.String(), buyer.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check receipts between pair: %w", err)
	}
	return exists, nil
}

const selectColumns = `SELECT receipt_id, task_id, agent_did, buyer_did, platform_did, escrow_ref,
	amount, currency, category, action_type, outcome, dispute, artifact_hash, signatures, finalized_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (models.Receipt, error) {
	var (
		r           models.Receipt
		receiptID   string
		agentDID    string
		buyerDID    string
		platformDID sql.NullString
		escrowRef   sql.NullString
		currency    sql.NullString
		category    string
		actionType  sql.NullString
		outcome     string
		artifact    sql.NullString
		sigs        []byte
	)
	err := row.Scan(&receiptID, &r.TaskID, &agentDID, &buyerDID, &platformDID, &escrowRef,
		&r.Amount, &currency, &category, &actionType, &outcome, &r.Dispute, &artifact, &sigs, &r.FinalizedAt)
	if err != nil {
		return models.Receipt{}, err
	}

	r.ReceiptID = id.ReceiptID(receiptID)
	r.AgentDID = id.DID(agentDID)
	r.BuyerDID = id.DID(buyerDID)
	r.PlatformDID = id.DID(platformDID.String)
	r.EscrowRef = escrowRef.String
	r.Currency = currency.String
	r.Category = models.ActionCategory(category)
	r.ActionType = actionType.String
	r.Outcome = models.Outcome(outcome)
	r.ArtifactHash = artifact.String
	if err := json.Unmarshal(sigs, &r.Signatures); err != nil {
		return models.Receipt{}, fmt.Errorf("unmarshal signatures: %w", err)
	}
	return r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
