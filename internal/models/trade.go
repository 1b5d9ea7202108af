package models

import "time"

// Trade представляет открытую или завершённую позицию по контракту.
type Trade struct {
	ID                 int        `json:"id" db:"id"`
	MarketID           string     `json:"market_id" db:"market_id"`
	Question           string     `json:"question" db:"question"`
	Side               string     `json:"side" db:"side"` // yes, no
	EntryOdds          float64    `json:"entry_odds" db:"entry_odds"`
	ContractsPurchased float64    `json:"contracts_purchased" db:"contracts_purchased"`
	PositionSize       float64    `json:"position_size" db:"position_size"` // в долларах
	Status             string     `json:"status" db:"status"`
	PnL                *float64   `json:"pnl,omitempty" db:"pnl"`
	ExitOdds           *float64   `json:"exit_odds,omitempty" db:"exit_odds"`
	ExchangeOrderID    *string    `json:"exchange_order_id,omitempty" db:"exchange_order_id"`
	AIReasoning        string     `json:"ai_reasoning,omitempty" db:"ai_reasoning"`
	AIConfidence       float64    `json:"ai_confidence" db:"ai_confidence"` // 0..1 на момент входа
	RiskFactors        []string   `json:"risk_factors,omitempty" db:"risk_factors"`
	DryRun             bool       `json:"dry_run" db:"dry_run"`
	ExecutedAt         time.Time  `json:"executed_at" db:"executed_at"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Стороны контракта
const (
	SideYes = "yes"
	SideNo  = "no"
)

// Статусы позиции
const (
	TradeStatusOpen      = "open"
	TradeStatusWon       = "won"
	TradeStatusLost      = "lost"
	TradeStatusCancelled = "cancelled"
	TradeStatusStopLoss  = "stop_loss"
)

// IsOpen сообщает, остаётся ли позиция открытой.
func (t *Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}

// WonBy сообщает, выиграла ли позиция при данном исходе рынка ("yes"/"no").
func (t *Trade) WonBy(resolution string) bool {
	return t.Side == resolution
}

// SettlePnL возвращает P&L при резолюции рынка:
// выигрыш платит $1 за контракт минус стоимость позиции,
// проигрыш теряет всю стоимость позиции.
func (t *Trade) SettlePnL(won bool) float64 {
	if won {
		return t.ContractsPurchased*1.0 - t.PositionSize
	}
	return -t.PositionSize
}

// TradeResult представляет итог исполнения одного элемента аллокации.
//
// Ошибки исполнения изолированы по элементам: неудача одного контракта
// не отменяет остальные.
type TradeResult struct {
	MarketID   string   `json:"market_id"`
	Success    bool     `json:"success"`
	TradeID    int      `json:"trade_id,omitempty"`
	OrderID    string   `json:"order_id,omitempty"`
	Side       string   `json:"side,omitempty"`
	Price      float64  `json:"price,omitempty"`
	Contracts  float64  `json:"contracts,omitempty"`
	Filled     bool     `json:"filled"`              // исполнился ли ордер в окне ожидания
	Error      string   `json:"error,omitempty"`
}
