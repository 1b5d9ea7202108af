package bot

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"kalshibot/internal/exchange"
	"kalshibot/internal/models"
	"kalshibot/pkg/logger"
)

func newTracker(ex *MockExchange, trades *MockTradeStore, metrics *MockMetricsStore) *PositionTracker {
	return NewPositionTracker(ex, trades, metrics, 1000, logger.NewNop())
}

func TestBankrollSources(t *testing.T) {
	t.Run("live balance preferred", func(t *testing.T) {
		ex := NewMockExchange()
		ex.balance = 1234.56
		metrics := &MockMetricsStore{latest: &models.PerformanceMetric{Bankroll: 900}}
		tracker := newTracker(ex, &MockTradeStore{}, metrics)

		bankroll, source := tracker.Bankroll(context.Background())
		if bankroll != 1234.56 || source != BankrollSourceLive {
			t.Errorf("expected live 1234.56, got %f from %s", bankroll, source)
		}
	})

	t.Run("metrics fallback", func(t *testing.T) {
		ex := NewMockExchange()
		ex.balanceErr = errors.New("exchange down")
		metrics := &MockMetricsStore{latest: &models.PerformanceMetric{Bankroll: 900}}
		tracker := newTracker(ex, &MockTradeStore{}, metrics)

		bankroll, source := tracker.Bankroll(context.Background())
		if bankroll != 900 || source != BankrollSourceMetrics {
			t.Errorf("expected metrics 900, got %f from %s", bankroll, source)
		}
	})

	t.Run("initial fallback", func(t *testing.T) {
		ex := NewMockExchange()
		ex.balanceErr = errors.New("exchange down")
		tracker := newTracker(ex, &MockTradeStore{}, &MockMetricsStore{})

		bankroll, source := tracker.Bankroll(context.Background())
		if bankroll != 1000 || source != BankrollSourceInitial {
			t.Errorf("expected initial 1000, got %f from %s", bankroll, source)
		}
	})
}

func TestCash(t *testing.T) {
	ex := NewMockExchange()
	ex.balance = 1000
	trades := &MockTradeStore{open: []*models.Trade{
		{PositionSize: 50},
		{PositionSize: 30},
	}}
	tracker := newTracker(ex, trades, &MockMetricsStore{})

	cash, err := tracker.Cash(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cash != 920 {
		t.Errorf("expected 920, got %f", cash)
	}
}

func TestCashStoreError(t *testing.T) {
	ex := NewMockExchange()
	trades := &MockTradeStore{openErr: errors.New("db down")}
	tracker := newTracker(ex, trades, &MockMetricsStore{})

	if _, err := tracker.Cash(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenPositionsLiveValuation(t *testing.T) {
	ex := NewMockExchange()
	ex.markets["KXA"] = &exchange.Market{Ticker: "KXA", YesPrice: 0.97}
	ex.markets["KXB"] = &exchange.Market{Ticker: "KXB", YesPrice: 0.10}
	trades := &MockTradeStore{open: []*models.Trade{
		{MarketID: "KXA", Side: models.SideYes, EntryOdds: 0.93, ContractsPurchased: 50, PositionSize: 46.5},
		{MarketID: "KXB", Side: models.SideNo, EntryOdds: 0.95, ContractsPurchased: 20, PositionSize: 19},
	}}
	tracker := newTracker(ex, trades, &MockMetricsStore{})

	positions, err := tracker.OpenPositions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}

	if positions[0].CurrentOdds != 0.97 {
		t.Errorf("yes side should take yes price, got %f", positions[0].CurrentOdds)
	}
	// 50 × 0.97 − 46.5 = 2.0
	if math.Abs(positions[0].UnrealizedPnL-2.0) > 1e-9 {
		t.Errorf("expected unrealized 2.0, got %f", positions[0].UnrealizedPnL)
	}

	// NO-сторона оценивается как 1 − yesPrice
	if math.Abs(positions[1].CurrentOdds-0.90) > 1e-9 {
		t.Errorf("no side should take 1-yesPrice, got %f", positions[1].CurrentOdds)
	}
}

func TestOpenPositionsFallbackToEntryOdds(t *testing.T) {
	ex := NewMockExchange()
	// рынок KXA не задан: живая цена недоступна
	trades := &MockTradeStore{open: []*models.Trade{
		{MarketID: "KXA", Side: models.SideYes, EntryOdds: 0.93, ContractsPurchased: 50, PositionSize: 46.5},
	}}
	tracker := newTracker(ex, trades, &MockMetricsStore{})

	positions, err := tracker.OpenPositions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if positions[0].CurrentOdds != 0.93 {
		t.Errorf("expected entry odds fallback, got %f", positions[0].CurrentOdds)
	}
	if math.Abs(positions[0].UnrealizedPnL) > 1e-9 {
		t.Errorf("fallback valuation must give zero unrealized, got %f", positions[0].UnrealizedPnL)
	}
}

func TestSnapshot(t *testing.T) {
	ex := NewMockExchange()
	ex.balance = 987.65
	tracker := newTracker(ex, &MockTradeStore{}, &MockMetricsStore{})

	stats := &models.TradeStats{TotalTrades: 10, Wins: 7, Losses: 3}
	metric := tracker.Snapshot(context.Background(), stats, -4.2)

	if metric.Bankroll != 987.65 {
		t.Errorf("expected bankroll 987.65, got %f", metric.Bankroll)
	}
	if metric.DailyPnL != -4.2 || metric.TotalTrades != 10 || metric.Wins != 7 || metric.Losses != 3 {
		t.Errorf("snapshot fields mismatch: %+v", metric)
	}
	if time.Since(metric.RecordedAt) > time.Minute {
		t.Error("recorded_at should be current time")
	}
}
