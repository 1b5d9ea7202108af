package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kalshibot/internal/config"
	"kalshibot/internal/exchange"
	"kalshibot/internal/models"
	"kalshibot/pkg/utils"
)

// tradeStore - персистенция позиций. Реализуется repository.TradeRepository.
type tradeStore interface {
	Create(trade *models.Trade) error
}

// contractStore - персистенция снапшотов контрактов.
// Реализуется repository.ContractRepository.
type contractStore interface {
	Upsert(contract *models.Contract) error
}

// decisionStore - журнал решений движка аллокации.
// Реализуется repository.DecisionRepository.
type decisionStore interface {
	Create(decision *models.AIDecision) error
}

// Executor превращает план аллокации в ордера на бирже.
//
// Ошибки изолированы по позициям: неудача одного контракта не отменяет
// остальные. Позиция записывается в статусе open и при неисполненном
// ордере: лимитный ордер остаётся в стакане, реконсиляция разберётся.
type Executor struct {
	exchange  exchange.Exchange
	trades    tradeStore
	contracts contractStore
	decisions decisionStore
	risk      *RiskGate
	cfg       config.TradingConfig
	dryRun    bool
	logger    *zap.Logger
}

// NewExecutor создает исполнитель ордеров
func NewExecutor(ex exchange.Exchange, trades tradeStore, contracts contractStore, decisions decisionStore, risk *RiskGate, cfg config.TradingConfig, dryRun bool, logger *zap.Logger) *Executor {
	return &Executor{
		exchange:  ex,
		trades:    trades,
		contracts: contracts,
		decisions: decisions,
		risk:      risk,
		cfg:       cfg,
		dryRun:    dryRun,
		logger:    logger,
	}
}

// Execute исполняет план аллокации и возвращает результат по каждой позиции.
//
// Перед отправкой чего-либо проверяется риск-контроль: сработавший
// предохранитель возвращается ошибкой, ни один ордер не уходит.
// В режиме forced исполнение останавливается после первого успеха.
func (e *Executor) Execute(ctx context.Context, plan *models.AllocationPlan, bankroll float64, forced bool) ([]models.TradeResult, error) {
	if plan.Empty() {
		return nil, nil
	}

	if err := e.risk.Check(bankroll); err != nil {
		return nil, err
	}

	e.logger.Info("Executing allocation plan",
		zap.Int("positions", len(plan.Items)),
		zap.Float64("total_allocated", plan.TotalAllocated),
		zap.Bool("forced", forced),
		zap.Bool("dry_run", e.dryRun))

	results := make([]models.TradeResult, 0, len(plan.Items))
	for _, item := range plan.Items {
		if forced && anySuccess(results) {
			e.logger.Info("Forced trade succeeded, skipping remaining items")
			break
		}

		result := e.executeItem(ctx, &item, plan.StrategyNotes)
		results = append(results, result)
		TradesExecuted.WithLabelValues(resultLabel(result.Success)).Inc()
	}

	e.logger.Info("Execution finished",
		zap.Int("succeeded", countSuccesses(results)),
		zap.Int("total", len(results)))

	return results, nil
}

// executeItem проводит одну позицию через все шаги исполнения.
func (e *Executor) executeItem(ctx context.Context, item *models.AllocationItem, strategyNotes string) models.TradeResult {
	marketID := item.Candidate.Contract.MarketID
	fail := func(err error) models.TradeResult {
		e.logger.Error("Trade failed", zap.String("market_id", marketID), zap.Error(err))
		return models.TradeResult{MarketID: marketID, Success: false, Error: err.Error()}
	}

	// Кэшу нельзя доверять цену: между сканом и исполнением она могла уйти
	market, err := e.exchange.GetMarket(ctx, marketID)
	if err != nil {
		return fail(fmt.Errorf("refresh live market: %w", err))
	}
	if market.YesPrice <= 0 || market.YesPrice > 1 {
		return fail(fmt.Errorf("invalid live price %.4f", market.YesPrice))
	}

	contract := item.Candidate.Contract
	contract.YesPrice = market.YesPrice
	contract.Volume = market.Volume
	if err := e.contracts.Upsert(&contract); err != nil {
		return fail(fmt.Errorf("persist contract: %w", err))
	}

	orderbook, err := e.exchange.GetOrderbook(ctx, marketID)
	if err != nil {
		return fail(fmt.Errorf("fetch orderbook: %w", err))
	}

	// Ставка всегда на фаворита. Лимитная цена равна лучшему ask,
	// чтобы ордер сматчился с существующими заявками немедленно.
	side := contract.FavoredSide()
	price, _ := orderbook.BestAsk(side)
	if price <= 0 {
		price = sidePrice(market.YesPrice, side)
	}

	contracts := utils.FloorContracts(item.Allocation / price)
	if contracts <= 0 {
		return fail(fmt.Errorf("allocation %.2f too small at price %.4f", item.Allocation, price))
	}

	order, err := e.exchange.PlaceOrder(ctx, exchange.OrderRequest{
		Ticker:     marketID,
		Side:       side,
		Count:      int(contracts),
		PriceCents: utils.ProbToCents(price),
	})
	if err != nil {
		return fail(fmt.Errorf("place order: %w", err))
	}

	e.logger.Info("Order placed",
		zap.String("market_id", marketID),
		zap.String("order_id", order.OrderID),
		zap.String("side", side),
		zap.Float64("price", price),
		zap.Float64("contracts", contracts))

	filled := e.waitForFill(ctx, order.OrderID)

	// Позиция записывается независимо от исполнения: ордер уже в стакане,
	// отзывать его из-за ошибок ниже по течению нельзя
	trade := &models.Trade{
		MarketID:           marketID,
		Question:           contract.Question,
		Side:               side,
		EntryOdds:          price,
		ContractsPurchased: contracts,
		PositionSize:       item.Allocation,
		Status:             models.TradeStatusOpen,
		ExchangeOrderID:    &order.OrderID,
		AIReasoning:        item.Reasoning,
		AIConfidence:       item.Confidence,
		RiskFactors:        item.RiskFactors,
		DryRun:             e.dryRun,
		ExecutedAt:         time.Now().UTC(),
	}
	if err := e.trades.Create(trade); err != nil {
		return fail(fmt.Errorf("persist trade: %w", err))
	}

	e.recordDecision(item, side, strategyNotes)

	return models.TradeResult{
		MarketID:  marketID,
		Success:   true,
		TradeID:   trade.ID,
		OrderID:   order.OrderID,
		Side:      side,
		Price:     price,
		Contracts: contracts,
		Filled:    filled,
	}
}

// waitForFill опрашивает статус ордера до исполнения или истечения окна.
//
// Таймаут не считается неудачей: лимитный ордер остаётся в стакане
// и может исполниться позже, реконсиляция его отследит.
func (e *Executor) waitForFill(ctx context.Context, orderID string) bool {
	deadline := time.NewTimer(e.cfg.FillWaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.cfg.FillPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			FillTimeouts.Inc()
			e.logger.Warn("Order did not fill within window, leaving resting",
				zap.String("order_id", orderID),
				zap.Duration("window", e.cfg.FillWaitTimeout))
			return false
		case <-ticker.C:
			order, err := e.exchange.GetOrder(ctx, orderID)
			if err != nil {
				e.logger.Warn("Fill poll failed", zap.String("order_id", orderID), zap.Error(err))
				continue
			}
			if order.IsFilled() {
				e.logger.Info("Order filled", zap.String("order_id", orderID))
				return true
			}
			if order.IsCanceled() {
				e.logger.Warn("Order canceled during fill wait", zap.String("order_id", orderID))
				return false
			}
		}
	}
}

// recordDecision пишет решение движка в журнал. Сбой журнала не считается
// провалом сделки: ордер уже размещён.
func (e *Executor) recordDecision(item *models.AllocationItem, side, strategyNotes string) {
	decision := &models.AIDecision{
		MarketID:      item.Candidate.Contract.MarketID,
		Question:      item.Candidate.Contract.Question,
		Side:          side,
		Allocation:    item.Allocation,
		Confidence:    item.Confidence,
		Reasoning:     item.Reasoning,
		RiskFactors:   item.RiskFactors,
		StrategyNotes: strategyNotes,
		DecidedAt:     time.Now().UTC(),
	}
	if err := e.decisions.Create(decision); err != nil {
		e.logger.Error("Failed to record decision",
			zap.String("market_id", decision.MarketID),
			zap.Error(err))
	}
}

func anySuccess(results []models.TradeResult) bool {
	for _, r := range results {
		if r.Success {
			return true
		}
	}
	return false
}

func countSuccesses(results []models.TradeResult) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
