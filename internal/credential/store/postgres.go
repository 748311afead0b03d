package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"trustledger/internal/credential/models"
	"trustledger/internal/trust"
	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// Postgres persists credentials in PostgreSQL via the pq driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Open connects with the pq driver and verifies the connection. Returns
// (nil, nil) when url is empty so callers can fall back to the in-memory
// store.
func Open(url string) (*sql.DB, error) {
	if url == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open credential database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping credential database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the credentials table when absent.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS credentials (
			credential_id   TEXT PRIMARY KEY,
			agent_did       TEXT NOT NULL,
			credential_type TEXT NOT NULL,
			category        TEXT,
			data            JSONB NOT NULL,
			window_start    TIMESTAMPTZ NOT NULL,
			window_end      TIMESTAMPTZ NOT NULL,
			issued_at       TIMESTAMPTZ NOT NULL,
			signature       TEXT NOT NULL,
			revoked         BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS credentials_agent_issued_idx
			ON credentials (agent_did, issued_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("ensure credentials schema: %w", err)
	}
	return nil
}

func (s *Postgres) Insert(ctx context.Context, credential models.Credential) error {
	data, err := json.Marshal(credential.Data)
	if err != nil {
		return fmt.Errorf("marshal credential data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (
			credential_id, agent_did, credential_type, category, data,
			window_start, window_end, issued_at, signature, revoked
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		credential.ID.String(),
		credential.AgentDID.String(),
		credential.Type.String(),
		nullable(credential.Category),
		data,
		credential.WindowStart.UTC(),
		credential.WindowEnd.UTC(),
		credential.IssuedAt.UTC(),
		credential.Signature,
		credential.Revoked,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, credentialID id.CredentialID) (models.Credential, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM credentials WHERE credential_id = $1`, credentialID.String())
	credential, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Credential{}, sentinel.ErrNotFound
		}
		return models.Credential{}, fmt.Errorf("find credential by id: %w", err)
	}
	return credential, nil
}

func (s *Postgres) ListByAgent(ctx context.Context, agent id.DID) ([]models.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` FROM credentials WHERE agent_did = $1 ORDER BY issued_at DESC`,
		agent.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list credentials by agent: %w", err)
	}
	defer rows.Close()

	var out []models.Credential
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, credential)
	}
	return out, rows.Err()
}

func (s *Postgres) Revoke(ctx context.Context, credentialID id.CredentialID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET revoked = TRUE WHERE credential_id = $1`,
		credentialID.String(),
	)
	if err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke credential rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const selectColumns = `SELECT credential_id, agent_did, credential_type, category, data,
	window_start, window_end, issued_at, signature, revoked`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (models.Credential, error) {
	var (
		c            models.Credential
		credentialID string
		agentDID     string
		credType     string
		category     sql.NullString
		data         []byte
	)
	err := row.Scan(&credentialID, &agentDID, &credType, &category, &data,
		&c.WindowStart, &c.WindowEnd, &c.IssuedAt, &c.Signature, &c.Revoked)
	if err != nil {
		return models.Credential{}, err
	}

	c.ID = id.CredentialID(credentialID)
	c.AgentDID = id.DID(agentDID)
	c.Type = models.CredentialType(credType)
	c.Category = category.String
	var summary trust.WindowSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return models.Credential{}, fmt.Errorf("unmarshal credential data: %w", err)
	}
	c.Data = summary
	return c, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
