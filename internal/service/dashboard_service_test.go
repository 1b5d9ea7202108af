package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"kalshibot/internal/bot"
	"kalshibot/internal/models"
	"kalshibot/pkg/logger"
)

func TestDashboardGetStats(t *testing.T) {
	tracker := &MockTracker{
		bankroll: 1234.56,
		source:   bot.BankrollSourceLive,
		cash:     987.65,
		positions: []models.Position{
			{
				Trade:         models.Trade{ID: 1, MarketID: "KXA", Side: models.SideYes},
				CurrentOdds:   0.97,
				UnrealizedPnL: 2.0,
			},
		},
	}
	trades := NewMockTradeRepo()
	trades.stats = &models.TradeStats{
		TotalTrades: 10,
		Wins:        7,
		Losses:      3,
		WinRate:     70,
		TotalPnL:    42.5,
	}
	svc := NewDashboardService(tracker, trades, NewMockDecisionRepo(), logger.NewNop())

	stats, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	if stats.Bankroll != 1234.56 {
		t.Errorf("bankroll = %v, want 1234.56", stats.Bankroll)
	}
	if stats.BankrollSource != bot.BankrollSourceLive {
		t.Errorf("bankroll source = %q, want %q", stats.BankrollSource, bot.BankrollSourceLive)
	}
	if stats.Cash != 987.65 {
		t.Errorf("cash = %v, want 987.65", stats.Cash)
	}
	if len(stats.OpenPositions) != 1 || stats.OpenPositions[0].Trade.MarketID != "KXA" {
		t.Errorf("open positions = %+v", stats.OpenPositions)
	}
	if stats.TotalTrades != 10 || stats.Wins != 7 || stats.Losses != 3 {
		t.Errorf("trade counts = %d/%d/%d", stats.TotalTrades, stats.Wins, stats.Losses)
	}
	if stats.WinRate != 70 || stats.TotalPnL != 42.5 {
		t.Errorf("win rate/pnl = %v/%v", stats.WinRate, stats.TotalPnL)
	}
	if time.Since(stats.GeneratedAt) > time.Minute {
		t.Errorf("generated_at = %v, want recent", stats.GeneratedAt)
	}
}

func TestDashboardGetStatsErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tracker *MockTracker, trades *MockTradeRepo)
	}{
		{
			name: "cash unavailable",
			setup: func(tracker *MockTracker, _ *MockTradeRepo) {
				tracker.cashErr = errors.New("exchange down")
			},
		},
		{
			name: "positions unavailable",
			setup: func(tracker *MockTracker, _ *MockTradeRepo) {
				tracker.positionsErr = errors.New("db down")
			},
		},
		{
			name: "stats unavailable",
			setup: func(_ *MockTracker, trades *MockTradeRepo) {
				trades.statsErr = errors.New("db down")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := &MockTracker{bankroll: 1000, source: bot.BankrollSourceInitial}
			trades := NewMockTradeRepo()
			tt.setup(tracker, trades)

			svc := NewDashboardService(tracker, trades, NewMockDecisionRepo(), logger.NewNop())
			if _, err := svc.GetStats(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDashboardGetDecisionsLimit(t *testing.T) {
	decisions := NewMockDecisionRepo()
	for i := 0; i < 250; i++ {
		decisions.recent = append(decisions.recent, &models.AIDecision{
			ID:       i + 1,
			MarketID: fmt.Sprintf("KX%03d", i),
			Side:     models.SideYes,
		})
	}
	svc := NewDashboardService(&MockTracker{}, NewMockTradeRepo(), decisions, logger.NewNop())

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default when zero", 0, 50},
		{"default when negative", -5, 50},
		{"explicit", 20, 20},
		{"capped", 250, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.GetDecisions(tt.limit)
			if err != nil {
				t.Fatalf("GetDecisions(%d): %v", tt.limit, err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}
