//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trustledger/internal/credential/models"
	"trustledger/internal/trust"
	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/sentinel"
	"trustledger/pkg/testutil/containers"
)

func newPostgresStore(t *testing.T) *Postgres {
	t.Helper()
	pg := containers.NewPostgresContainer(t)

	// The credential store runs on the pq driver; open its own handle.
	db, err := Open(pg.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewPostgres(db)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func sampleCredential(credentialID string) models.Credential {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.Credential{
		ID:       id.CredentialID(credentialID),
		AgentDID: "did:key:agent",
		Type:     models.TypeVolume,
		Data: trust.WindowSummary{
			TaskCount:            10,
			AcceptedCount:        10,
			TotalVolume:          1000,
			AverageVolume:        100,
			UniqueCounterparties: 10,
			Categories: map[string]trust.CategorySummary{
				"economic.transaction": {Count: 10, Volume: 1000},
			},
		},
		WindowStart: issued.AddDate(0, 0, -30),
		WindowEnd:   issued,
		IssuedAt:    issued,
		Signature:   "deadbeef",
	}
}

func TestPostgresStore_InsertAndFind(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	want := sampleCredential("cred-1")
	require.NoError(t, store.Insert(ctx, want))

	got, err := store.FindByID(ctx, "cred-1")
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Type, got.Type)
	require.Equal(t, want.Data, got.Data)
	require.Equal(t, want.Signature, got.Signature)
	require.False(t, got.Revoked)
	require.True(t, want.IssuedAt.Equal(got.IssuedAt))

	_, err = store.FindByID(ctx, "missing")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStore_DuplicateInsert(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	credential := sampleCredential("cred-dup")
	require.NoError(t, store.Insert(ctx, credential))
	require.ErrorIs(t, store.Insert(ctx, credential), sentinel.ErrConflict)
}

func TestPostgresStore_Revoke(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleCredential("cred-1")))
	require.NoError(t, store.Revoke(ctx, "cred-1"))

	got, err := store.FindByID(ctx, "cred-1")
	require.NoError(t, err)
	require.True(t, got.Revoked)

	// Idempotent for known IDs, not-found for unknown ones.
	require.NoError(t, store.Revoke(ctx, "cred-1"))
	require.ErrorIs(t, store.Revoke(ctx, "missing"), sentinel.ErrNotFound)
}

func TestPostgresStore_ListByAgent(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	older := sampleCredential("cred-old")
	newer := sampleCredential("cred-new")
	newer.IssuedAt = older.IssuedAt.Add(24 * time.Hour)
	require.NoError(t, store.Insert(ctx, older))
	require.NoError(t, store.Insert(ctx, newer))

	list, err := store.ListByAgent(ctx, "did:key:agent")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)

	empty, err := store.ListByAgent(ctx, "did:key:other")
	require.NoError(t, err)
	require.Empty(t, empty)
}
