package models

import "time"

// PerformanceMetric представляет точку временного ряда банкролла.
//
// Записывается после каждого торгового цикла и каждой резолюции.
// Последняя запись служит fallback-источником банкролла, когда
// живой запрос баланса к бирже недоступен.
type PerformanceMetric struct {
	ID          int       `json:"id" db:"id"`
	Bankroll    float64   `json:"bankroll" db:"bankroll"`
	DailyPnL    float64   `json:"daily_pnl" db:"daily_pnl"`
	TotalTrades int       `json:"total_trades" db:"total_trades"`
	Wins        int       `json:"wins" db:"wins"`
	Losses      int       `json:"losses" db:"losses"`
	RecordedAt  time.Time `json:"recorded_at" db:"recorded_at"`
}

// StopLossEvent представляет событие принудительного закрытия позиции.
type StopLossEvent struct {
	ID          int       `json:"id" db:"id"`
	TradeID     int       `json:"trade_id" db:"trade_id"`
	MarketID    string    `json:"market_id" db:"market_id"`
	EntryOdds   float64   `json:"entry_odds" db:"entry_odds"`
	ExitOdds    float64   `json:"exit_odds" db:"exit_odds"`
	LossAmount  float64   `json:"loss_amount" db:"loss_amount"`
	Reason      string    `json:"reason" db:"reason"`
	TriggeredAt time.Time `json:"triggered_at" db:"triggered_at"`
}

// MonthlyAnalysis представляет агрегированный отчёт за календарный месяц.
type MonthlyAnalysis struct {
	ID         int       `json:"id" db:"id"`
	Month      string    `json:"month" db:"month"` // формат YYYY-MM
	Trades     int       `json:"trades" db:"trades"`
	Wins       int       `json:"wins" db:"wins"`
	Losses     int       `json:"losses" db:"losses"`
	WinRate    float64   `json:"win_rate" db:"win_rate"` // 0..100
	TotalPnL   float64   `json:"total_pnl" db:"total_pnl"`
	ROI        float64   `json:"roi" db:"roi"` // в процентах от вложенного
	BestPnL    float64   `json:"best_pnl" db:"best_pnl"`
	WorstPnL   float64   `json:"worst_pnl" db:"worst_pnl"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Position представляет открытую позицию с живой оценкой для дашборда.
type Position struct {
	Trade         Trade   `json:"trade"`
	CurrentOdds   float64 `json:"current_odds"`   // живая цена удерживаемой стороны
	UnrealizedPnL float64 `json:"unrealized_pnl"` // contracts × current − position_size
}

// DashboardStats представляет сводку состояния для внешнего дашборда.
type DashboardStats struct {
	Bankroll       float64    `json:"bankroll"`
	BankrollSource string     `json:"bankroll_source"` // live, metrics, initial
	Cash           float64    `json:"cash"`
	OpenPositions  []Position `json:"open_positions"`
	TotalTrades    int        `json:"total_trades"`
	Wins           int        `json:"wins"`
	Losses         int        `json:"losses"`
	WinRate        float64    `json:"win_rate"`
	TotalPnL       float64    `json:"total_pnl"`
	GeneratedAt    time.Time  `json:"generated_at"`
}

// TradeStats представляет агрегаты по завершённым позициям.
// Используется историческим контекстом движка аллокации и дашбордом.
type TradeStats struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"` // 0..100
	TotalPnL    float64 `json:"total_pnl"`
	AvgROI      float64 `json:"avg_roi"` // средний ROI закрытых позиций, %
}
