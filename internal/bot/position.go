package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kalshibot/internal/exchange"
	"kalshibot/internal/models"
	"kalshibot/internal/repository"
)

// Источники банкролла в порядке надёжности
const (
	BankrollSourceLive    = "live"
	BankrollSourceMetrics = "metrics"
	BankrollSourceInitial = "initial"
)

// openTrades - источник открытых позиций.
// Реализуется repository.TradeRepository.
type openTrades interface {
	GetOpen() ([]*models.Trade, error)
}

// metricsSource - последняя записанная метрика банкролла.
// Реализуется repository.MetricsRepository.
type metricsSource interface {
	GetLatestMetric() (*models.PerformanceMetric, error)
}

// PositionTracker считает банкролл, свободные средства и нереализованный
// P&L открытых позиций.
type PositionTracker struct {
	exchange        exchange.Exchange
	trades          openTrades
	metrics         metricsSource
	initialBankroll float64
	logger          *zap.Logger
}

// NewPositionTracker создает трекер позиций
func NewPositionTracker(ex exchange.Exchange, trades openTrades, metrics metricsSource, initialBankroll float64, logger *zap.Logger) *PositionTracker {
	return &PositionTracker{
		exchange:        ex,
		trades:          trades,
		metrics:         metrics,
		initialBankroll: initialBankroll,
		logger:          logger,
	}
}

// Bankroll возвращает текущий банкролл и источник значения.
//
// Порядок: живой баланс биржи, затем последняя записанная метрика,
// затем стартовый банкролл из конфигурации. Деградация логируется,
// но не считается ошибкой: дашборд и риск-контроль должны работать
// и при недоступной бирже.
func (p *PositionTracker) Bankroll(ctx context.Context) (float64, string) {
	balance, err := p.exchange.GetBalance(ctx)
	if err == nil {
		return balance, BankrollSourceLive
	}
	p.logger.Warn("Live balance unavailable, falling back to metrics", zap.Error(err))

	metric, err := p.metrics.GetLatestMetric()
	if err == nil {
		return metric.Bankroll, BankrollSourceMetrics
	}
	if !errors.Is(err, repository.ErrMetricNotFound) {
		p.logger.Warn("Metrics fallback failed", zap.Error(err))
	}

	return p.initialBankroll, BankrollSourceInitial
}

// Cash возвращает свободные средства: банкролл за вычетом стоимости
// открытых позиций.
func (p *PositionTracker) Cash(ctx context.Context) (float64, error) {
	bankroll, _ := p.Bankroll(ctx)

	open, err := p.trades.GetOpen()
	if err != nil {
		return 0, fmt.Errorf("load open trades: %w", err)
	}

	invested := 0.0
	for _, t := range open {
		invested += t.PositionSize
	}

	return bankroll - invested, nil
}

// OpenPositions возвращает открытые позиции с живой оценкой.
//
// Недоступная живая цена не роняет расчёт: для такой позиции
// берётся цена входа, нереализованный P&L получается нулевым.
func (p *PositionTracker) OpenPositions(ctx context.Context) ([]models.Position, error) {
	open, err := p.trades.GetOpen()
	if err != nil {
		return nil, fmt.Errorf("load open trades: %w", err)
	}

	positions := make([]models.Position, 0, len(open))
	for _, t := range open {
		currentOdds := t.EntryOdds

		market, err := p.exchange.GetMarket(ctx, t.MarketID)
		if err != nil {
			p.logger.Warn("Live price unavailable for position",
				zap.String("market_id", t.MarketID),
				zap.Error(err))
		} else {
			currentOdds = sidePrice(market.YesPrice, t.Side)
		}

		positions = append(positions, models.Position{
			Trade:         *t,
			CurrentOdds:   currentOdds,
			UnrealizedPnL: t.ContractsPurchased*currentOdds - t.PositionSize,
		})
	}

	return positions, nil
}

// Snapshot собирает метрику банкролла для записи в performance_metrics.
func (p *PositionTracker) Snapshot(ctx context.Context, stats *models.TradeStats, dailyPnL float64) *models.PerformanceMetric {
	bankroll, _ := p.Bankroll(ctx)
	return &models.PerformanceMetric{
		Bankroll:    bankroll,
		DailyPnL:    dailyPnL,
		TotalTrades: stats.TotalTrades,
		Wins:        stats.Wins,
		Losses:      stats.Losses,
		RecordedAt:  time.Now().UTC(),
	}
}

// sidePrice возвращает цену удерживаемой стороны из YES-цены рынка.
func sidePrice(yesPrice float64, side string) float64 {
	if side == models.SideYes {
		return yesPrice
	}
	return 1 - yesPrice
}
