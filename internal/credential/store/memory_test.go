package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trustledger/internal/credential/models"
	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/sentinel"
)

func credential(credentialID string, issuedAt time.Time) models.Credential {
	return models.Credential{
		ID:        id.CredentialID(credentialID),
		AgentDID:  "did:key:agent",
		Type:      models.TypeVolume,
		IssuedAt:  issuedAt,
		Signature: "sig",
	}
}

func TestMemory_InsertAndFind(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.Insert(ctx, credential("cred-1", issued)))

	got, err := m.FindByID(ctx, "cred-1")
	require.NoError(t, err)
	require.Equal(t, id.CredentialID("cred-1"), got.ID)

	_, err = m.FindByID(ctx, "missing")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemory_DuplicateInsert(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	c := credential("cred-1", time.Now())

	require.NoError(t, m.Insert(ctx, c))
	require.ErrorIs(t, m.Insert(ctx, c), sentinel.ErrConflict)
}

func TestMemory_ListByAgentNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.Insert(ctx, credential("cred-old", base)))
	require.NoError(t, m.Insert(ctx, credential("cred-new", base.Add(time.Hour))))

	list, err := m.ListByAgent(ctx, "did:key:agent")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, id.CredentialID("cred-new"), list[0].ID)

	empty, err := m.ListByAgent(ctx, "did:key:other")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestMemory_Revoke(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Insert(ctx, credential("cred-1", time.Now())))
	require.NoError(t, m.Revoke(ctx, "cred-1"))

	got, err := m.FindByID(ctx, "cred-1")
	require.NoError(t, err)
	require.True(t, got.Revoked)

	require.ErrorIs(t, m.Revoke(ctx, "missing"), sentinel.ErrNotFound)
}
