package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"kalshibot/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeRepository - работа с таблицей trades
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create сохраняет новую позицию и заполняет ID
func (r *TradeRepository) Create(trade *models.Trade) error {
	query := `
		INSERT INTO trades (market_id, question, side, entry_odds, contracts_purchased, position_size, status, exchange_order_id, ai_reasoning, ai_confidence, risk_factors, dry_run, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	if trade.ExecutedAt.IsZero() {
		trade.ExecutedAt = time.Now().UTC()
	}

	return r.db.QueryRow(
		query,
		trade.MarketID,
		trade.Question,
		trade.Side,
		trade.EntryOdds,
		trade.ContractsPurchased,
		trade.PositionSize,
		trade.Status,
		trade.ExchangeOrderID,
		trade.AIReasoning,
		trade.AIConfidence,
		pq.Array(trade.RiskFactors),
		trade.DryRun,
		trade.ExecutedAt,
	).Scan(&trade.ID)
}

// GetByID возвращает позицию по ID
func (r *TradeRepository) GetByID(id int) (*models.Trade, error) {
	query := `
		SELECT id, market_id, question, side, entry_odds, contracts_purchased, position_size, status, pnl, exit_odds, exchange_order_id, ai_reasoning, ai_confidence, risk_factors, dry_run, executed_at, resolved_at
		FROM trades
		WHERE id = $1`

	trade := &models.Trade{}
	err := r.db.QueryRow(query, id).Scan(
		&trade.ID,
		&trade.MarketID,
		&trade.Question,
		&trade.Side,
		&trade.EntryOdds,
		&trade.ContractsPurchased,
		&trade.PositionSize,
		&trade.Status,
		&trade.PnL,
		&trade.ExitOdds,
		&trade.ExchangeOrderID,
		&trade.AIReasoning,
		&trade.AIConfidence,
		pq.Array(&trade.RiskFactors),
		&trade.DryRun,
		&trade.ExecutedAt,
		&trade.ResolvedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return trade, nil
}

// GetOpen возвращает все открытые позиции
func (r *TradeRepository) GetOpen() ([]*models.Trade, error) {
	return r.queryTrades(`
		SELECT id, market_id, question, side, entry_odds, contracts_purchased, position_size, status, pnl, exit_odds, exchange_order_id, ai_reasoning, ai_confidence, risk_factors, dry_run, executed_at, resolved_at
		FROM trades
		WHERE status = 'open'
		ORDER BY executed_at DESC`)
}

// GetOpenSince возвращает открытые позиции, исполненные не раньше since.
// Используется реконсиляцией, чтобы не гонять по API давно брошенные строки.
func (r *TradeRepository) GetOpenSince(since time.Time) ([]*models.Trade, error) {
	return r.queryTrades(`
		SELECT id, market_id, question, side, entry_odds, contracts_purchased, position_size, status, pnl, exit_odds, exchange_order_id, ai_reasoning, ai_confidence, risk_factors, dry_run, executed_at, resolved_at
		FROM trades
		WHERE status = 'open' AND executed_at >= $1
		ORDER BY executed_at DESC`, since)
}

// GetClosedInRange возвращает позиции, закрытые в окне [from, to).
// Основа месячного отчёта.
func (r *TradeRepository) GetClosedInRange(from, to time.Time) ([]*models.Trade, error) {
	return r.queryTrades(`
		SELECT id, market_id, question, side, entry_odds, contracts_purchased, position_size, status, pnl, exit_odds, exchange_order_id, ai_reasoning, ai_confidence, risk_factors, dry_run, executed_at, resolved_at
		FROM trades
		WHERE status != 'open' AND resolved_at >= $1 AND resolved_at < $2
		ORDER BY resolved_at ASC`, from, to)
}

// GetRecentClosed возвращает последние закрытые позиции (новые первыми).
// Исторический контекст для движка аллокации.
func (r *TradeRepository) GetRecentClosed(limit int) ([]*models.Trade, error) {
	return r.queryTrades(`
		SELECT id, market_id, question, side, entry_odds, contracts_purchased, position_size, status, pnl, exit_odds, exchange_order_id, ai_reasoning, ai_confidence, risk_factors, dry_run, executed_at, resolved_at
		FROM trades
		WHERE status != 'open'
		ORDER BY resolved_at DESC
		LIMIT $1`, limit)
}

// Close переводит открытую позицию в конечный статус с фиксацией P&L.
//
// pnl и exitOdds допускают nil (отменённый ордер без исполнения).
// Повторный вызов по уже закрытой позиции вернёт ErrTradeNotFound,
// что делает реконсиляцию идемпотентной.
func (r *TradeRepository) Close(id int, status string, pnl, exitOdds *float64, resolvedAt time.Time) error {
	query := `
		UPDATE trades
		SET status = $1, pnl = $2, exit_odds = $3, resolved_at = $4
		WHERE id = $5 AND status = 'open'`

	result, err := r.db.Exec(query, status, pnl, exitOdds, resolvedAt, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrTradeNotFound
	}

	return nil
}

// SetExchangeOrderID привязывает биржевой ордер к позиции
func (r *TradeRepository) SetExchangeOrderID(id int, orderID string) error {
	query := `UPDATE trades SET exchange_order_id = $1 WHERE id = $2`

	result, err := r.db.Exec(query, orderID, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrTradeNotFound
	}

	return nil
}

// GetStats возвращает агрегаты по закрытым позициям.
//
// ROI считается по позициям с ненулевым размером, win_rate по сумме
// побед и поражений (отменённые строки в знаменатель не входят).
func (r *TradeRepository) GetStats() (*models.TradeStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status != 'open'),
			COUNT(*) FILTER (WHERE status = 'won'),
			COUNT(*) FILTER (WHERE status IN ('lost', 'stop_loss')),
			COALESCE(SUM(pnl) FILTER (WHERE status != 'open'), 0),
			COALESCE(AVG(pnl / NULLIF(position_size, 0) * 100) FILTER (WHERE status != 'open'), 0)
		FROM trades`

	stats := &models.TradeStats{}
	err := r.db.QueryRow(query).Scan(
		&stats.TotalTrades,
		&stats.Wins,
		&stats.Losses,
		&stats.TotalPnL,
		&stats.AvgROI,
	)
	if err != nil {
		return nil, err
	}

	if decided := stats.Wins + stats.Losses; decided > 0 {
		stats.WinRate = float64(stats.Wins) / float64(decided) * 100
	}

	return stats, nil
}

// CountConsecutiveLosses возвращает длину текущей серии поражений.
// Серия обрывается первой победой среди закрытых позиций (новые первыми).
func (r *TradeRepository) CountConsecutiveLosses() (int, error) {
	query := `
		SELECT status
		FROM trades
		WHERE status IN ('won', 'lost', 'stop_loss')
		ORDER BY resolved_at DESC
		LIMIT 20`

	rows, err := r.db.Query(query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return 0, err
		}
		if status == models.TradeStatusWon {
			break
		}
		count++
	}

	if err = rows.Err(); err != nil {
		return 0, err
	}

	return count, nil
}

// queryTrades выполняет запрос со стандартным набором колонок trades
func (r *TradeRepository) queryTrades(query string, args ...interface{}) ([]*models.Trade, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		trade := &models.Trade{}
		err := rows.Scan(
			&trade.ID,
			&trade.MarketID,
			&trade.Question,
			&trade.Side,
			&trade.EntryOdds,
			&trade.ContractsPurchased,
			&trade.PositionSize,
			&trade.Status,
			&trade.PnL,
			&trade.ExitOdds,
			&trade.ExchangeOrderID,
			&trade.AIReasoning,
			&trade.AIConfidence,
			pq.Array(&trade.RiskFactors),
			&trade.DryRun,
			&trade.ExecutedAt,
			&trade.ResolvedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}
