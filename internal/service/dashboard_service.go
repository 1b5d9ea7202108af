package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"kalshibot/internal/models"
)

// DashboardService собирает сводку состояния для внешнего дашборда.
//
// Только чтение: банкролл, свободные средства, открытые позиции
// с живой оценкой и агрегаты по закрытым сделкам. Деградация живых
// данных (биржа недоступна) отражается в поле bankroll_source.
type DashboardService struct {
	tracker   PositionTrackerInterface
	trades    TradeRepositoryInterface
	decisions DecisionRepositoryInterface
	logger    *zap.Logger
}

// NewDashboardService создает сервис дашборда
func NewDashboardService(
	tracker PositionTrackerInterface,
	trades TradeRepositoryInterface,
	decisions DecisionRepositoryInterface,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		tracker:   tracker,
		trades:    trades,
		decisions: decisions,
		logger:    logger,
	}
}

// GetStats возвращает полную сводку состояния.
func (s *DashboardService) GetStats(ctx context.Context) (*models.DashboardStats, error) {
	bankroll, source := s.tracker.Bankroll(ctx)

	cash, err := s.tracker.Cash(ctx)
	if err != nil {
		return nil, err
	}

	positions, err := s.tracker.OpenPositions(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := s.trades.GetStats()
	if err != nil {
		return nil, err
	}

	return &models.DashboardStats{
		Bankroll:       bankroll,
		BankrollSource: source,
		Cash:           cash,
		OpenPositions:  positions,
		TotalTrades:    stats.TotalTrades,
		Wins:           stats.Wins,
		Losses:         stats.Losses,
		WinRate:        stats.WinRate,
		TotalPnL:       stats.TotalPnL,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}

// GetDecisions возвращает последние решения движка аллокации.
func (s *DashboardService) GetDecisions(limit int) ([]*models.AIDecision, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.decisions.GetRecent(limit)
}
