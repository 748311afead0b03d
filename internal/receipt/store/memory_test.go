package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustledger/internal/receipt/models"
	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/sentinel"
)

func testReceipt(receiptID string, agent, buyer string, finalizedAt time.Time) models.Receipt {
	amount := 10.0
	return models.Receipt{
		ReceiptID:   id.ReceiptID(receiptID),
		TaskID:      "task-" + receiptID,
		AgentDID:    id.DID(agent),
		BuyerDID:    id.DID(buyer),
		Amount:      &amount,
		Currency:    "USDC",
		Category:    models.CategoryEconomicTransaction,
		Outcome:     models.OutcomeAccepted,
		Signatures:  models.Signatures{Agent: "sig"},
		FinalizedAt: finalizedAt,
	}
}

func TestMemory_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	r := testReceipt("r1", "did:key:a", "did:key:b", time.Now())
	require.NoError(t, m.Insert(ctx, r))

	found, err := m.FindByID(ctx, r.ReceiptID)
	require.NoError(t, err)
	assert.Equal(t, r.ReceiptID, found.ReceiptID)

	_, err = m.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemory_DuplicateInsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	r := testReceipt("r1", "did:key:a", "did:key:b", time.Now())
	require.NoError(t, m.Insert(ctx, r))
	assert.ErrorIs(t, m.Insert(ctx, r), sentinel.ErrConflict)
}

// TestMemory_ConcurrentDuplicateInsert verifies exactly one winner when many
// goroutines race on the same receipt_id.
func TestMemory_ConcurrentDuplicateInsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Insert(ctx, testReceipt("contested", "did:key:a", "did:key:b", time.Now()))
			switch {
			case err == nil:
				successCount.Add(1)
			case err == sentinel.ErrConflict:
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
	assert.Equal(t, int32(goroutines-1), conflictCount.Load())
}

func TestMemory_ListByAgent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now().Add(-10 * 24 * time.Hour)

	for i := 0; i < 5; i++ {
		r := testReceipt(fmt.Sprintf("r%d", i), "did:key:a", "did:key:b", base.Add(time.Duration(i)*24*time.Hour))
		require.NoError(t, m.Insert(ctx, r))
	}
	require.NoError(t, m.Insert(ctx, testReceipt("other", "did:key:x", "did:key:b", base)))

	t.Run("all receipts, ascending", func(t *testing.T) {
		got, err := m.ListByAgent(ctx, "did:key:a", time.Time{}, 0)
		require.NoError(t, err)
		require.Len(t, got, 5)
		for i := 1; i < len(got); i++ {
			assert.True(t, !got[i].FinalizedAt.Before(got[i-1].FinalizedAt))
		}
	})

	t.Run("since filters", func(t *testing.T) {
		got, err := m.ListByAgent(ctx, "did:key:a", base.Add(3*24*time.Hour), 0)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("limit keeps newest, ascending", func(t *testing.T) {
		got, err := m.ListByAgent(ctx, "did:key:a", time.Time{}, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, id.ReceiptID("r3"), got[0].ReceiptID)
		assert.Equal(t, id.ReceiptID("r4"), got[1].ReceiptID)
	})

	t.Run("unknown agent is empty", func(t *testing.T) {
		got, err := m.ListByAgent(ctx, "did:key:nobody", time.Time{}, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMemory_CountByAgentSince(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Insert(ctx, testReceipt(fmt.Sprintf("old%d", i), "did:key:a", "did:key:b", now.Add(-2*time.Hour))))
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, m.Insert(ctx, testReceipt(fmt.Sprintf("new%d", i), "did:key:a", "did:key:b", now.Add(-time.Minute))))
	}

	count, err := m.CountByAgentSince(ctx, "did:key:a", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestMemory_ExistsBetween(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Insert(ctx, testReceipt("r1", "did:key:a", "did:key:b", time.Now())))

	exists, err := m.ExistsBetween(ctx, "did:key:a", "did:key:b")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = m.ExistsBetween(ctx, "did:key:b", "did:key:a")
	require.NoError(t, err)
	assert.False(t, exists)
}
