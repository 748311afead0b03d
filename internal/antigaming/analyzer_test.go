package antigaming

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustledger/internal/receipt/models"
	"trustledger/internal/receipt/store"
	id "trustledger/pkg/domain"
)

type AnalyzerSuite struct {
	suite.Suite
	ledger   *store.Memory
	analyzer *Analyzer
	now      time.Time
}

func TestAnalyzerSuite(t *testing.T) {
	suite.Run(t, new(AnalyzerSuite))
}

func (s *AnalyzerSuite) SetupTest() {
	s.ledger = store.NewMemory()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var err error
	s.analyzer, err = New(s.ledger, slog.Default(), WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
}

func (s *AnalyzerSuite) insert(receiptID, agent, buyer string, category models.ActionCategory, finalizedAt time.Time) {
	amount := 10.0
	r := models.Receipt{
		ReceiptID:   id.ReceiptID(receiptID),
		TaskID:      "task-" + receiptID,
		AgentDID:    id.DID(agent),
		BuyerDID:    id.DID(buyer),
		Amount:      &amount,
		Category:    category,
		Outcome:     models.OutcomeAccepted,
		Signatures:  models.Signatures{Agent: "sig"},
		FinalizedAt: finalizedAt,
	}
	s.Require().NoError(s.ledger.Insert(context.Background(), r))
}

func (s *AnalyzerSuite) TestCleanAgent() {
	for i := 0; i < 4; i++ {
		s.insert(fmt.Sprintf("r%d", i), "did:key:agent", fmt.Sprintf("did:key:buyer%d", i),
			models.CategoryEconomicTransaction, s.now.Add(-time.Duration(i+1)*24*time.Hour))
	}

	result, err := s.analyzer.Analyze(context.Background(), "did:key:agent")
	s.Require().NoError(err)
	s.False(result.Flagged)
	s.Empty(result.Flags)
	s.Equal(1.0, result.AdjustedWeight)
}

func (s *AnalyzerSuite) TestZeroReceipts() {
	result, err := s.analyzer.Analyze(context.Background(), "did:key:nobody")
	s.Require().NoError(err)
	s.False(result.Flagged)
	s.Equal(1.0, result.AdjustedWeight)
}

func (s *AnalyzerSuite) TestCircularPayment() {
	s.insert("r1", "did:key:a", "did:key:b", models.CategoryEconomicTransaction, s.now.Add(-48*time.Hour))
	// Roles reversed: b pays a back.
	s.insert("r2", "did:key:b", "did:key:a", models.CategoryEconomicTransaction, s.now.Add(-24*time.Hour))

	result, err := s.analyzer.Analyze(context.Background(), "did:key:a")
	s.Require().NoError(err)
	s.True(result.Flagged)
	s.Contains(result.Flags, FlagCircularPayment)
	// Circular payment flags but carries no weight multiplier of its own.
	s.Equal(1.0, result.AdjustedWeight)
}

func (s *AnalyzerSuite) TestBurstDetection() {
	for i := 0; i < 10; i++ {
		s.insert(fmt.Sprintf("r%d", i), "did:key:agent", fmt.Sprintf("did:key:buyer%d", i),
			models.CategoryEconomicTransaction, s.now.Add(-time.Duration(i)*time.Minute))
	}

	result, err := s.analyzer.Analyze(context.Background(), "did:key:agent")
	s.Require().NoError(err)
	s.True(result.Flagged)
	s.Contains(result.Flags, FlagBurstDetected)
	s.Equal(0.5, result.AdjustedWeight)
}

func (s *AnalyzerSuite) TestBurstBelowThresholdNotFlagged() {
	for i := 0; i < 9; i++ {
		s.insert(fmt.Sprintf("r%d", i), "did:key:agent", fmt.Sprintf("did:key:buyer%d", i),
			models.CategoryEconomicTransaction, s.now.Add(-time.Duration(i)*time.Minute))
	}

	result, err := s.analyzer.Analyze(context.Background(), "did:key:agent")
	s.Require().NoError(err)
	s.NotContains(result.Flags, FlagBurstDetected)
}

func (s *AnalyzerSuite) TestOldReceiptsOutsideBurstWindow() {
	for i := 0; i < 15; i++ {
		s.insert(fmt.Sprintf("r%d", i), "did:key:agent", fmt.Sprintf("did:key:buyer%d", i),
			models.CategoryEconomicTransaction, s.now.Add(-2*time.Hour))
	}

	result, err := s.analyzer.Analyze(context.Background(), "did:key:agent")
	s.Require().NoError(err)
	s.NotContains(result.Flags, FlagBurstDetected)
}

func (s *AnalyzerSuite) TestBurstDetectedPastHistoryBound() {
	// Enough old receipts to fill the bounded history walk, then a burst on
	// top. The burst count reads the ledger directly, so the old volume
	// cannot bury it.
	for i := 0; i < maxScanReceipts; i++ {
		s.insert(fmt.Sprintf("old%d", i), "did:key:agent", fmt.Sprintf("did:key:buyer%d", i),
			models.CategoryEconomicTransaction, s.now.Add(-time.Duration(i+1)*time.Hour))
	}
	for i := 0; i < 15; i++ {
		s.insert(fmt.Sprintf("burst%d", i), "did:key:agent", fmt.Sprintf("did:key:fresh%d", i),
			models.CategoryEconomicTransaction, s.now.Add(-time.Duration(i)*time.Minute))
	}

	result, err := s.analyzer.Analyze(context.Background(), "did:key:agent")
	s.Require().NoError(err)
	s.True(result.Flagged)
	s.Contains(result.Flags, FlagBurstDetected)
	s.InDelta(0.5, result.AdjustedWeight, 1e-9)
}

func (s *AnalyzerSuite) TestLowBuyerDiversity() {
	// 6 economic receipts, all from one counterparty: ratio 1/6 < 0.2.
	for i := 0; i < 6; i++ {
		s.insert(fmt.Sprintf("r%d", i), "did:key:agent", "did:key:solo",
			models.CategoryEconomicTransaction, s.now.Add(-time.Duration(i+1)*24*time.Hour))
	}

	result, err := s.analyzer.Analyze(context.Background(), "did:key:agent")
	s.Require().NoError(err)
	s.True(result.Flagged)
	s.Contains(result.Flags, FlagLowBuyerDiversity)
	s.InDelta(0.3, result.AdjustedWeight, 1e-9)
}

func (s *AnalyzerSuite) TestSocialReceiptsCannotMaskDiversity() {
	// 6 economic receipts from one buyer plus many diverse social receipts.
	// Social receipts are excluded from the ratio entirely.
	for i := 0; i < 6; i++ {
		s.insert(fmt.Sprintf("e%d", i), "did:key:agent", "did:key:solo",
			models.CategoryEconomicTransaction, s.now.Add(-time.Duration(i+1)*24*time.Hour))
	}
	for i := 0; i < 10; i++ {
		s.insert(fmt.Sprintf("s%d", i), "did:key:agent", fmt.Sprintf("did:key:fan%d", i),
			models.CategorySocialEndorsement, s.now.Add(-time.Duration(i+1)*24*time.Hour))
	}

	result, err := s.analyzer.Analyze(context.Background(), "did:key:agent")
	s.Require().NoError(err)
	s.Contains(result.Flags, FlagLowBuyerDiversity)
}

func (s *AnalyzerSuite) TestFiveEconomicReceiptsNotEnoughForDiversity() {
	for i := 0; i < 5; i++ {
		s.insert(fmt.Sprintf("r%d", i), "did:key:agent", "did:key:solo",
			models.CategoryEconomicTransaction, s.now.Add(-time.Duration(i+1)*24*time.Hour))
	}

	result, err := s.analyzer.Analyze(context.Background(), "did:key:agent")
	s.Require().NoError(err)
	s.NotContains(result.Flags, FlagLowBuyerDiversity)
}

func (s *AnalyzerSuite) TestCompoundedPenalties() {
	// Burst and low diversity together: 1.0 * 0.5 * 0.3.
	for i := 0; i < 12; i++ {
		s.insert(fmt.Sprintf("r%d", i), "did:key:agent", "did:key:solo",
			models.CategoryEconomicTransaction, s.now.Add(-time.Duration(i)*time.Minute))
	}

	result, err := s.analyzer.Analyze(context.Background(), "did:key:agent")
	s.Require().NoError(err)
	s.True(result.Flagged)
	s.Contains(result.Flags, FlagBurstDetected)
	s.Contains(result.Flags, FlagLowBuyerDiversity)
	s.InDelta(0.15, result.AdjustedWeight, 1e-9)
}
