package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kalshibot/internal/config"
	"kalshibot/internal/models"
)

// Completer - источник ответов сервиса рассуждений.
// Реализуется Client, в тестах подменяется заглушкой.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Analyzer - движок аллокации: собирает промпт из кандидатов
// и исторического контекста, получает ответ модели и приводит его
// к исполняемому плану.
type Analyzer struct {
	completer Completer
	cfg       config.TradingConfig
	logger    *zap.Logger
}

// NewAnalyzer создает движок аллокации
func NewAnalyzer(completer Completer, cfg config.TradingConfig, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		completer: completer,
		cfg:       cfg,
		logger:    logger,
	}
}

// Analyze выбирает позиции из списка кандидатов.
//
// Пустой список кандидатов даёт пустой план без обращения к модели.
// Ошибка модели или неразборчивый ответ прерывают цикл: без плана
// исполнять нечего, а выдумывать аллокации самим нельзя.
func (a *Analyzer) Analyze(ctx context.Context, req *models.AnalysisRequest, historicalContext string) (*models.AllocationPlan, error) {
	if len(req.Candidates) == 0 {
		return &models.AllocationPlan{StrategyNotes: "no candidates passed the scan"}, nil
	}

	a.logger.Info("Analyzing candidates",
		zap.Int("candidates", len(req.Candidates)),
		zap.Float64("bankroll", req.Bankroll),
		zap.Float64("daily_budget", req.DailyBudget))

	completion, err := a.completer.Complete(ctx, systemPrompt, buildUserPrompt(req, historicalContext))
	if err != nil {
		return nil, fmt.Errorf("reasoning service: %w", err)
	}

	plan, err := DecodePlan(completion, req.Candidates, DecodeLimits{
		MinAllocation: a.cfg.MinAllocation,
		MaxAllocation: a.cfg.MaxAllocation,
		MaxPositions:  a.cfg.MaxPositions,
		Budget:        req.DailyBudget,
	})
	if err != nil {
		return nil, fmt.Errorf("decode allocation plan: %w", err)
	}

	a.logger.Info("Allocation plan ready",
		zap.Int("positions", len(plan.Items)),
		zap.Float64("total_allocated", plan.TotalAllocated))

	return plan, nil
}
