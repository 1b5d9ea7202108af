package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kalshibot/internal/ai"
	"kalshibot/internal/bot"
	"kalshibot/internal/config"
	"kalshibot/internal/models"
)

// Размер выборки истории для обучающего контекста движка аллокации
const historyLimit = 50

// CycleResult - итог одного торгового цикла для cron-ответа и дашборда.
type CycleResult struct {
	Candidates     int                  `json:"candidates"`
	Warnings       []string             `json:"warnings,omitempty"`
	PlanItems      int                  `json:"plan_items"`
	TotalAllocated float64              `json:"total_allocated"`
	StrategyNotes  string               `json:"strategy_notes,omitempty"`
	Bankroll       float64              `json:"bankroll"`
	BankrollSource string               `json:"bankroll_source"`
	Results        []models.TradeResult `json:"results,omitempty"`
	Executed       int                  `json:"executed"`
	Halted         string               `json:"halted,omitempty"` // причина срабатывания риск-контроля
	StartedAt      time.Time            `json:"started_at"`
	Duration       string               `json:"duration"`
}

// TradeBroadcaster - интерфейс для отправки торговых событий через WebSocket
//
// Позволяет избежать циклических зависимостей между пакетами
// и упрощает тестирование (можно подставить mock)
type TradeBroadcaster interface {
	BroadcastTradeExecuted(result *models.TradeResult)
	BroadcastCycleComplete(result *CycleResult)
}

// TradingService запускает полный торговый цикл: скан кэша рынков,
// запрос плана аллокации у сервиса рассуждений, исполнение плана
// и запись метрики банкролла.
//
// Цикл строго последовательный: ордера не отправляются параллельно,
// чтобы учёт бюджета и rate-limit биржи оставались детерминированными.
type TradingService struct {
	scanner   ScannerInterface
	analyzer  AnalyzerInterface
	executor  ExecutorInterface
	tracker   PositionTrackerInterface
	trades    TradeRepositoryInterface
	decisions DecisionRepositoryInterface
	metrics   MetricsRepositoryInterface
	cfg       config.TradingConfig
	wsHub     TradeBroadcaster
	logger    *zap.Logger
}

// NewTradingService создает торговый сервис
func NewTradingService(
	scanner ScannerInterface,
	analyzer AnalyzerInterface,
	executor ExecutorInterface,
	tracker PositionTrackerInterface,
	trades TradeRepositoryInterface,
	decisions DecisionRepositoryInterface,
	metrics MetricsRepositoryInterface,
	cfg config.TradingConfig,
	logger *zap.Logger,
) *TradingService {
	return &TradingService{
		scanner:   scanner,
		analyzer:  analyzer,
		executor:  executor,
		tracker:   tracker,
		trades:    trades,
		decisions: decisions,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast торговых событий.
//
// Вызывается после инициализации Hub в main.go.
func (s *TradingService) SetWebSocketHub(hub TradeBroadcaster) {
	s.wsHub = hub
}

// RunCycle выполняет один торговый цикл.
//
// В режиме forced исполнение останавливается после первой успешной
// позиции. Срабатывание риск-контроля не считается ошибкой цикла:
// причина остановки записывается в результат и в метрики.
func (s *TradingService) RunCycle(ctx context.Context, forced bool) (*CycleResult, error) {
	started := time.Now()
	result := &CycleResult{StartedAt: started.UTC()}
	defer func() {
		result.Duration = time.Since(started).Round(time.Millisecond).String()
	}()

	candidates, warnings, err := s.scanner.Scan(ctx, s.scanCriteria())
	if err != nil {
		return nil, fmt.Errorf("scan markets: %w", err)
	}
	result.Candidates = len(candidates)
	result.Warnings = warnings

	bankroll, source := s.tracker.Bankroll(ctx)
	result.Bankroll = bankroll
	result.BankrollSource = source

	if len(candidates) == 0 {
		s.logger.Info("No candidates passed the scan, cycle finished")
		s.recordSnapshot(ctx)
		s.broadcastCycle(result)
		return result, nil
	}

	plan, err := s.analyzer.Analyze(ctx, &models.AnalysisRequest{
		Candidates:  candidates,
		Bankroll:    bankroll,
		DailyBudget: s.cfg.DailyBudget,
	}, s.historicalContext())
	if err != nil {
		return nil, fmt.Errorf("allocate budget: %w", err)
	}
	result.PlanItems = len(plan.Items)
	result.TotalAllocated = plan.TotalAllocated
	result.StrategyNotes = plan.StrategyNotes

	s.recordRejections(candidates, plan)

	results, err := s.executor.Execute(ctx, plan, bankroll, forced)
	if err != nil {
		reason := riskReason(err)
		if reason == "" {
			return nil, fmt.Errorf("execute plan: %w", err)
		}
		// Сработавший предохранитель - штатная остановка, не сбой
		bot.RiskGateRefusals.WithLabelValues(reason).Inc()
		result.Halted = err.Error()
		s.logger.Warn("Cycle halted by risk gate", zap.String("reason", reason))
		s.broadcastCycle(result)
		return result, nil
	}

	result.Results = results
	for i := range results {
		if results[i].Success {
			result.Executed++
		}
		if s.wsHub != nil {
			s.wsHub.BroadcastTradeExecuted(&results[i])
		}
	}

	s.recordSnapshot(ctx)
	s.broadcastCycle(result)

	s.logger.Info("Trading cycle finished",
		zap.Int("candidates", result.Candidates),
		zap.Int("plan_items", result.PlanItems),
		zap.Int("executed", result.Executed))

	return result, nil
}

// scanCriteria собирает критерии сканера из конфигурации.
func (s *TradingService) scanCriteria() models.ScanCriteria {
	return models.ScanCriteria{
		MinOdds:           s.cfg.MinOdds,
		MaxOdds:           s.cfg.MaxOdds,
		MaxDays:           s.cfg.MaxDays,
		MinLiquidity:      s.cfg.MinLiquidity,
		ExcludeCategories: s.cfg.ExcludeCategories,
		ExcludeKeywords:   s.cfg.ExcludeKeywords,
	}
}

// historicalContext собирает обучающий контекст из закрытых позиций
// и разрешённых решений. Недоступная история не срывает цикл:
// движок аллокации получает блок "fresh start".
func (s *TradingService) historicalContext() string {
	trades, err := s.trades.GetRecentClosed(historyLimit)
	if err != nil {
		s.logger.Warn("Failed to load closed trades for context", zap.Error(err))
	}
	decisions, err := s.decisions.GetResolved(historyLimit)
	if err != nil {
		s.logger.Warn("Failed to load resolved decisions for context", zap.Error(err))
	}
	return ai.BuildHistoricalContext(trades, decisions)
}

// recordRejections пишет решения с нулевой аллокацией для кандидатов,
// не попавших в план. История отказов кормит обучающий контекст так же,
// как история выбранных позиций.
func (s *TradingService) recordRejections(candidates []models.Candidate, plan *models.AllocationPlan) {
	selected := make(map[string]struct{}, len(plan.Items))
	for _, item := range plan.Items {
		selected[item.Candidate.Contract.MarketID] = struct{}{}
	}

	now := time.Now().UTC()
	for i := range candidates {
		contract := &candidates[i].Contract
		if _, ok := selected[contract.MarketID]; ok {
			continue
		}
		decision := &models.AIDecision{
			MarketID:      contract.MarketID,
			Question:      contract.Question,
			Side:          contract.FavoredSide(),
			Allocation:    0,
			Confidence:    0,
			Reasoning:     "Not selected for allocation",
			RiskFactors:   []string{},
			StrategyNotes: plan.StrategyNotes,
			DecidedAt:     now,
		}
		if err := s.decisions.Create(decision); err != nil {
			s.logger.Warn("Failed to record rejected candidate",
				zap.String("market_id", contract.MarketID),
				zap.Error(err))
		}
	}
}

// recordSnapshot записывает точку временного ряда банкролла.
// Сбой записи логируется, но цикл не срывает: метрика лишь fallback.
func (s *TradingService) recordSnapshot(ctx context.Context) {
	stats, err := s.trades.GetStats()
	if err != nil {
		s.logger.Warn("Failed to load trade stats for snapshot", zap.Error(err))
		return
	}

	metric := s.tracker.Snapshot(ctx, stats, s.dailyPnL())
	if err := s.metrics.RecordMetric(metric); err != nil {
		s.logger.Warn("Failed to record performance metric", zap.Error(err))
	}
}

// dailyPnL возвращает реализованный P&L позиций, закрытых сегодня (UTC).
func (s *TradingService) dailyPnL() float64 {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	closed, err := s.trades.GetClosedInRange(dayStart, now)
	if err != nil {
		s.logger.Warn("Failed to load today's closed trades", zap.Error(err))
		return 0
	}

	total := 0.0
	for _, t := range closed {
		if t.PnL != nil {
			total += *t.PnL
		}
	}
	return total
}

func (s *TradingService) broadcastCycle(result *CycleResult) {
	if s.wsHub != nil {
		s.wsHub.BroadcastCycleComplete(result)
	}
}

// riskReason возвращает метку сработавшего предохранителя либо пустую
// строку, если ошибка не относится к риск-контролю.
func riskReason(err error) string {
	switch {
	case errors.Is(err, bot.ErrDrawdownStop):
		return "drawdown"
	case errors.Is(err, bot.ErrConsecutiveLosses):
		return "consecutive_losses"
	case errors.Is(err, bot.ErrStopLossLimit):
		return "stop_loss_limit"
	default:
		return ""
	}
}
