package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"kalshibot/internal/models"
)

// Ошибки репозитория решений
var (
	ErrDecisionNotFound = errors.New("decision not found")
)

// DecisionRepository - работа с таблицей ai_decisions.
//
// Таблица накапливает историю решений движка аллокации вместе
// с фактическими исходами и служит источником обучающего контекста
// для последующих запросов.
type DecisionRepository struct {
	db *sql.DB
}

// NewDecisionRepository создает новый экземпляр репозитория
func NewDecisionRepository(db *sql.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Create сохраняет решение и заполняет ID
func (r *DecisionRepository) Create(decision *models.AIDecision) error {
	query := `
		INSERT INTO ai_decisions (market_id, question, side, allocation, confidence, reasoning, risk_factors, strategy_notes, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = time.Now().UTC()
	}

	return r.db.QueryRow(
		query,
		decision.MarketID,
		decision.Question,
		decision.Side,
		decision.Allocation,
		decision.Confidence,
		decision.Reasoning,
		pq.Array(decision.RiskFactors),
		decision.StrategyNotes,
		decision.DecidedAt,
	).Scan(&decision.ID)
}

// GetPendingOutcomeSince возвращает решения без записанного исхода,
// принятые не раньше since. Отклонённые кандидаты (allocation = 0)
// тоже попадают в выборку: их исходы калибруют качество отказов.
// Батч ограничен limit строками, чтобы одна cron-итерация
// укладывалась в бюджет запросов к бирже.
func (r *DecisionRepository) GetPendingOutcomeSince(since time.Time, limit int) ([]*models.AIDecision, error) {
	query := `
		SELECT id, market_id, question, side, allocation, confidence, reasoning, risk_factors, strategy_notes, outcome, resolution_source, decided_at, resolved_at
		FROM ai_decisions
		WHERE outcome IS NULL AND decided_at >= $1
		ORDER BY decided_at ASC
		LIMIT $2`

	return r.queryDecisions(query, since, limit)
}

// SetOutcome записывает фактический исход решения.
// Строки с уже заполненным исходом не трогаются (идемпотентность).
func (r *DecisionRepository) SetOutcome(id int, outcome, source string, resolvedAt time.Time) error {
	query := `
		UPDATE ai_decisions
		SET outcome = $1, resolution_source = $2, resolved_at = $3
		WHERE id = $4 AND outcome IS NULL`

	result, err := r.db.Exec(query, outcome, source, resolvedAt, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrDecisionNotFound
	}

	return nil
}

// GetRecent возвращает последние решения (новые первыми)
func (r *DecisionRepository) GetRecent(limit int) ([]*models.AIDecision, error) {
	query := `
		SELECT id, market_id, question, side, allocation, confidence, reasoning, risk_factors, strategy_notes, outcome, resolution_source, decided_at, resolved_at
		FROM ai_decisions
		ORDER BY decided_at DESC
		LIMIT $1`

	return r.queryDecisions(query, limit)
}

// GetResolved возвращает последние решения с записанным исходом.
// Материал для обучающего контекста движка аллокации.
func (r *DecisionRepository) GetResolved(limit int) ([]*models.AIDecision, error) {
	query := `
		SELECT id, market_id, question, side, allocation, confidence, reasoning, risk_factors, strategy_notes, outcome, resolution_source, decided_at, resolved_at
		FROM ai_decisions
		WHERE outcome IS NOT NULL
		ORDER BY resolved_at DESC
		LIMIT $1`

	return r.queryDecisions(query, limit)
}

// queryDecisions выполняет запрос со стандартным набором колонок ai_decisions
func (r *DecisionRepository) queryDecisions(query string, args ...interface{}) ([]*models.AIDecision, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*models.AIDecision
	for rows.Next() {
		decision := &models.AIDecision{}
		var source sql.NullString
		err := rows.Scan(
			&decision.ID,
			&decision.MarketID,
			&decision.Question,
			&decision.Side,
			&decision.Allocation,
			&decision.Confidence,
			&decision.Reasoning,
			pq.Array(&decision.RiskFactors),
			&decision.StrategyNotes,
			&decision.Outcome,
			&source,
			&decision.DecidedAt,
			&decision.ResolvedAt,
		)
		if err != nil {
			return nil, err
		}
		decision.ResolutionSource = source.String
		decisions = append(decisions, decision)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return decisions, nil
}
