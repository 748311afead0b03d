package store

import (
	"context"
	"sort"
	"sync"

	"trustledger/internal/credential/models"
	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/sentinel"
)

// Memory keeps credentials in process. Intended for development and tests.
type Memory struct {
	mu      sync.RWMutex
	byID    map[id.CredentialID]models.Credential
	byAgent map[id.DID][]id.CredentialID
}

func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[id.CredentialID]models.Credential),
		byAgent: make(map[id.DID][]id.CredentialID),
	}
}

func (m *Memory) Insert(_ context.Context, credential models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[credential.ID]; exists {
		return sentinel.ErrConflict
	}
	m.byID[credential.ID] = credential
	m.byAgent[credential.AgentDID] = append(m.byAgent[credential.AgentDID], credential.ID)
	return nil
}

func (m *Memory) FindByID(_ context.Context, credentialID id.CredentialID) (models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.byID[credentialID]; ok {
		return c, nil
	}
	return models.Credential{}, sentinel.ErrNotFound
}

func (m *Memory) ListByAgent(_ context.Context, agent id.DID) ([]models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Credential, 0, len(m.byAgent[agent]))
	for _, cid := range m.byAgent[agent] {
		out = append(out, m.byID[cid])
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}

func (m *Memory) Revoke(_ context.Context, credentialID id.CredentialID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[credentialID]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.Revoked = true
	m.byID[credentialID] = c
	return nil
}
