package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"trustledger/internal/receipt/models"
	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/sentinel"
)

// Memory keeps the ledger in process. Intended for development and tests; it
// intentionally favors clarity over performance.
type Memory struct {
	mu       sync.RWMutex
	byID     map[id.ReceiptID]models.Receipt
	byAgent  map[id.DID][]id.ReceiptID
}

func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[id.ReceiptID]models.Receipt),
		byAgent: make(map[id.DID][]id.ReceiptID),
	}
}

// Insert holds the write lock across the existence check and the write, which
// is the in-memory equivalent of a uniqueness constraint.
func (m *Memory) Insert(_ context.Context, receipt models.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[receipt.ReceiptID]; exists {
		return sentinel.ErrConflict
	}
	m.byID[receipt.ReceiptID] = receipt
	m.byAgent[receipt.AgentDID] = append(m.byAgent[receipt.AgentDID], receipt.ReceiptID)
	return nil
}

func (m *Memory) FindByID(_ context.Context, receiptID id.ReceiptID) (models.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.byID[receiptID]; ok {
		return r, nil
	}
	return models.Receipt{}, sentinel.ErrNotFound
}

func (m *Memory) ListByAgent(_ context.Context, agent id.DID, since time.Time, limit int) ([]models.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Receipt
	for _, rid := range m.byAgent[agent] {
		r := m.byID[rid]
		if !since.IsZero() && r.FinalizedAt.Before(since) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FinalizedAt.Before(out[j].FinalizedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *Memory) CountByAgentSince(_ context.Context, agent id.DID, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, rid := range m.byAgent[agent] {
		if r := m.byID[rid]; since.IsZero() || !r.FinalizedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) ExistsBetween(_ context.Context, agent, buyer id.DID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rid := range m.byAgent[agent] {
		if m.byID[rid].BuyerDID == buyer {
			return true, nil
		}
	}
	return false, nil
}
