package models

import "time"

// AIDecision представляет одно решение сервиса рассуждений по контракту.
//
// Записывается для каждого выбранного контракта (allocation > 0) и для
// отклонённых кандидатов (allocation = 0), чтобы накапливать материал
// для исторического контекста следующих запросов.
type AIDecision struct {
	ID               int        `json:"id" db:"id"`
	MarketID         string     `json:"market_id" db:"market_id"`
	Question         string     `json:"question" db:"question"`
	Side             string     `json:"side" db:"side"`             // сторона ставки на момент решения
	Allocation       float64    `json:"allocation" db:"allocation"` // в долларах, 0 для отклонённых
	Confidence       float64    `json:"confidence" db:"confidence"` // 0..1
	Reasoning        string     `json:"reasoning" db:"reasoning"`
	RiskFactors      []string   `json:"risk_factors" db:"risk_factors"`
	StrategyNotes    string     `json:"strategy_notes" db:"strategy_notes"`
	Outcome          *string    `json:"outcome,omitempty" db:"outcome"` // "win"/"loss", null пока рынок не разрешён
	ResolutionSource string     `json:"resolution_source,omitempty" db:"resolution_source"`
	DecidedAt        time.Time  `json:"decided_at" db:"decided_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Исходы решения
const (
	OutcomeWin  = "win"
	OutcomeLoss = "loss"
)

// AllocationItem представляет одну позицию в плане аллокации.
type AllocationItem struct {
	Candidate   Candidate `json:"candidate"`
	Allocation  float64   `json:"allocation"` // в долларах, clamped [MinAllocation, MaxAllocation]
	Confidence  float64   `json:"confidence"` // 0..1
	Reasoning   string    `json:"reasoning"`
	RiskFactors []string  `json:"risk_factors"`
}

// AllocationPlan представляет результат работы движка аллокации:
// не более трёх позиций, суммарная аллокация не превышает бюджет.
type AllocationPlan struct {
	Items          []AllocationItem `json:"items"`
	TotalAllocated float64          `json:"total_allocated"`
	StrategyNotes  string           `json:"strategy_notes"`
}

// Empty сообщает, пуст ли план (нет позиций для исполнения).
func (p *AllocationPlan) Empty() bool {
	return len(p.Items) == 0
}

// AnalysisRequest представляет вход движка аллокации.
type AnalysisRequest struct {
	Candidates  []Candidate `json:"candidates"`
	Bankroll    float64     `json:"bankroll"`
	DailyBudget float64     `json:"daily_budget"`
}
