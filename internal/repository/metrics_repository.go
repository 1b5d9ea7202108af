package repository

import (
	"database/sql"
	"errors"
	"time"

	"kalshibot/internal/models"
)

// Ошибки репозитория метрик
var (
	ErrMetricNotFound   = errors.New("performance metric not found")
	ErrAnalysisNotFound = errors.New("monthly analysis not found")
)

// MetricsRepository - работа с таблицами performance_metrics,
// stop_loss_events и monthly_analysis
type MetricsRepository struct {
	db *sql.DB
}

// NewMetricsRepository создает новый экземпляр репозитория
func NewMetricsRepository(db *sql.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// RecordMetric сохраняет точку временного ряда банкролла
func (r *MetricsRepository) RecordMetric(metric *models.PerformanceMetric) error {
	query := `
		INSERT INTO performance_metrics (bankroll, daily_pnl, total_trades, wins, losses, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if metric.RecordedAt.IsZero() {
		metric.RecordedAt = time.Now().UTC()
	}

	return r.db.QueryRow(
		query,
		metric.Bankroll,
		metric.DailyPnL,
		metric.TotalTrades,
		metric.Wins,
		metric.Losses,
		metric.RecordedAt,
	).Scan(&metric.ID)
}

// GetLatestMetric возвращает последнюю записанную метрику.
// Fallback-источник банкролла при недоступном живом балансе.
func (r *MetricsRepository) GetLatestMetric() (*models.PerformanceMetric, error) {
	query := `
		SELECT id, bankroll, daily_pnl, total_trades, wins, losses, recorded_at
		FROM performance_metrics
		ORDER BY recorded_at DESC
		LIMIT 1`

	metric := &models.PerformanceMetric{}
	err := r.db.QueryRow(query).Scan(
		&metric.ID,
		&metric.Bankroll,
		&metric.DailyPnL,
		&metric.TotalTrades,
		&metric.Wins,
		&metric.Losses,
		&metric.RecordedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMetricNotFound
		}
		return nil, err
	}

	return metric, nil
}

// RecordStopLoss сохраняет событие принудительного закрытия
func (r *MetricsRepository) RecordStopLoss(event *models.StopLossEvent) error {
	query := `
		INSERT INTO stop_loss_events (trade_id, market_id, entry_odds, exit_odds, loss_amount, reason, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	if event.TriggeredAt.IsZero() {
		event.TriggeredAt = time.Now().UTC()
	}

	return r.db.QueryRow(
		query,
		event.TradeID,
		event.MarketID,
		event.EntryOdds,
		event.ExitOdds,
		event.LossAmount,
		event.Reason,
		event.TriggeredAt,
	).Scan(&event.ID)
}

// CountStopLossesSince возвращает число стоп-лоссов начиная с since.
// Ограничитель частоты принудительных закрытий за окно.
func (r *MetricsRepository) CountStopLossesSince(since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM stop_loss_events WHERE triggered_at >= $1`

	var count int
	err := r.db.QueryRow(query, since).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// UpsertMonthlyAnalysis вставляет или обновляет отчёт за месяц.
// Повторный запуск за тот же месяц перезаписывает агрегаты.
func (r *MetricsRepository) UpsertMonthlyAnalysis(analysis *models.MonthlyAnalysis) error {
	query := `
		INSERT INTO monthly_analysis (month, trades, wins, losses, win_rate, total_pnl, roi, best_pnl, worst_pnl, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (month) DO UPDATE SET
			trades = EXCLUDED.trades,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			win_rate = EXCLUDED.win_rate,
			total_pnl = EXCLUDED.total_pnl,
			roi = EXCLUDED.roi,
			best_pnl = EXCLUDED.best_pnl,
			worst_pnl = EXCLUDED.worst_pnl
		RETURNING id`

	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = time.Now().UTC()
	}

	return r.db.QueryRow(
		query,
		analysis.Month,
		analysis.Trades,
		analysis.Wins,
		analysis.Losses,
		analysis.WinRate,
		analysis.TotalPnL,
		analysis.ROI,
		analysis.BestPnL,
		analysis.WorstPnL,
		analysis.CreatedAt,
	).Scan(&analysis.ID)
}

// GetMonthlyAnalysis возвращает отчёт за указанный месяц (YYYY-MM)
func (r *MetricsRepository) GetMonthlyAnalysis(month string) (*models.MonthlyAnalysis, error) {
	query := `
		SELECT id, month, trades, wins, losses, win_rate, total_pnl, roi, best_pnl, worst_pnl, created_at
		FROM monthly_analysis
		WHERE month = $1`

	analysis := &models.MonthlyAnalysis{}
	err := r.db.QueryRow(query, month).Scan(
		&analysis.ID,
		&analysis.Month,
		&analysis.Trades,
		&analysis.Wins,
		&analysis.Losses,
		&analysis.WinRate,
		&analysis.TotalPnL,
		&analysis.ROI,
		&analysis.BestPnL,
		&analysis.WorstPnL,
		&analysis.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}

	return analysis, nil
}
