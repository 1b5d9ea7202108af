package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kalshibot/internal/bot"
	"kalshibot/internal/config"
	"kalshibot/internal/exchange"
	"kalshibot/internal/models"
	"kalshibot/internal/repository"
	"kalshibot/pkg/utils"
)

// Источник записи исхода решения
const outcomeSourceCron = "sync-outcomes-cron"

// CheckFillsSummary - итог прогона сверки исполнения.
type CheckFillsSummary struct {
	Checked   int `json:"checked"`
	Won       int `json:"won"`
	Lost      int `json:"lost"`
	Filled    int `json:"filled"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
}

// SyncOrdersSummary - итог сверки отменённых ордеров.
type SyncOrdersSummary struct {
	Checked   int `json:"checked"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
}

// SyncOutcomesSummary - итог синхронизации исходов решений.
type SyncOutcomesSummary struct {
	Checked int `json:"checked"`
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
}

// CleanupSummary - итог очистки кэша снапшотов.
type CleanupSummary struct {
	Deleted int64 `json:"deleted"`
}

// CancelOrdersSummary - итог принудительной отмены открытых ордеров.
type CancelOrdersSummary struct {
	Checked   int `json:"checked"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

// ReconcileBroadcaster - интерфейс для отправки событий реконсиляции
// через WebSocket
type ReconcileBroadcaster interface {
	BroadcastTradeClosed(trade *models.Trade)
}

// ReconcileService сверяет персистентное состояние позиций с биржей.
//
// Состояние биржи наблюдаемо только с задержкой: исполнения,
// отмены и резолюции обнаруживаются опросом. Все джобы идемпотентны
// и безопасны при пересекающихся расписаниях: переходы выполняются
// только из открытого состояния (guard в SQL), повторный прогон
// по уже закрытой позиции ничего не меняет.
type ReconcileService struct {
	exchange  exchange.Exchange
	trades    TradeRepositoryInterface
	contracts ContractRepositoryInterface
	decisions DecisionRepositoryInterface
	cfg       config.TradingConfig
	wsHub     ReconcileBroadcaster
	logger    *zap.Logger
}

// NewReconcileService создает сервис реконсиляции
func NewReconcileService(
	ex exchange.Exchange,
	trades TradeRepositoryInterface,
	contracts ContractRepositoryInterface,
	decisions DecisionRepositoryInterface,
	cfg config.TradingConfig,
	logger *zap.Logger,
) *ReconcileService {
	return &ReconcileService{
		exchange:  ex,
		trades:    trades,
		contracts: contracts,
		decisions: decisions,
		cfg:       cfg,
		logger:    logger,
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast закрытий позиций.
func (s *ReconcileService) SetWebSocketHub(hub ReconcileBroadcaster) {
	s.wsHub = hub
}

// CheckFills сверяет открытые позиции с биржей.
//
// Для каждой открытой позиции в окне lookback:
//   - рынок разрешён: расчёт P&L и перевод в won/lost;
//   - ордер отменён на бирже: перевод в cancelled;
//   - ордер resting дольше StaleOrderAge: отмена и перевод в cancelled;
//   - ордер исполнен: позиция остаётся открытой до резолюции рынка.
//
// Ошибки по отдельным позициям не прерывают прогон.
func (s *ReconcileService) CheckFills(ctx context.Context) (*CheckFillsSummary, error) {
	summary := &CheckFillsSummary{}

	open, err := s.trades.GetOpenSince(time.Now().Add(-s.cfg.OpenTradeLookback))
	if err != nil {
		return nil, err
	}

	for _, trade := range open {
		summary.Checked++

		market, err := s.exchange.GetMarket(ctx, trade.MarketID)
		if err != nil {
			s.logger.Warn("Failed to fetch market for open trade",
				zap.String("market_id", trade.MarketID),
				zap.Error(err))
			summary.Skipped++
			continue
		}

		if market.Resolved && market.Result != "" {
			s.settleTrade(trade, market.Result, summary)
			continue
		}

		// Симулированные ордера на бирже не существуют, сверять нечего
		if trade.DryRun {
			summary.Skipped++
			continue
		}

		order, err := s.matchOrder(ctx, trade)
		if err != nil || order == nil {
			summary.Skipped++
			continue
		}

		switch {
		case order.IsFilled():
			// Исполнение не меняет статус: позицию закрывает только резолюция
			summary.Filled++
		case order.IsCanceled():
			s.closeCancelled(trade, summary)
		case time.Since(order.CreatedTime) > s.cfg.StaleOrderAge:
			// Принудительная отмена не раньше минимального времени удержания
			if time.Since(trade.ExecutedAt) < s.cfg.MinHoldTime {
				summary.Skipped++
				continue
			}
			if err := s.exchange.CancelOrder(ctx, order.OrderID); err != nil {
				s.logger.Warn("Failed to cancel stale order",
					zap.String("order_id", order.OrderID),
					zap.Error(err))
				summary.Skipped++
				continue
			}
			s.logger.Info("Cancelled stale resting order",
				zap.String("order_id", order.OrderID),
				zap.String("market_id", trade.MarketID))
			s.closeCancelled(trade, summary)
		default:
			// Ордер resting в пределах допустимого возраста
			summary.Skipped++
		}
	}

	s.logger.Info("Fill check finished",
		zap.Int("checked", summary.Checked),
		zap.Int("won", summary.Won),
		zap.Int("lost", summary.Lost),
		zap.Int("cancelled", summary.Cancelled))

	return summary, nil
}

// SyncOrders сверяет отменённые на бирже ордера с открытыми позициями.
//
// Страховка от дрейфа между CheckFills и биржей: отмена, пропущенная
// почасовой сверкой, будет подхвачена здесь.
func (s *ReconcileService) SyncOrders(ctx context.Context) (*SyncOrdersSummary, error) {
	summary := &SyncOrdersSummary{}

	open, err := s.trades.GetOpen()
	if err != nil {
		return nil, err
	}

	cancelled, err := s.exchange.GetOrders(ctx, "", exchange.OrderStatusCanceled)
	if err != nil {
		return nil, err
	}

	for _, trade := range open {
		summary.Checked++
		if trade.DryRun {
			summary.Skipped++
			continue
		}

		if order := matchTradeToOrders(trade, cancelled); order != nil {
			fills := &CheckFillsSummary{}
			s.closeCancelled(trade, fills)
			summary.Cancelled += fills.Cancelled
			summary.Skipped += fills.Skipped
		} else {
			summary.Skipped++
		}
	}

	return summary, nil
}

// SyncOutcomes записывает фактические исходы в решения движка аллокации.
//
// Решения без исхода (окно lookback, батч ограничен) сверяются
// с текущим состоянием рынка. Исход win/loss определяется стороной
// ставки на момент решения, независимо от расчёта самой позиции.
func (s *ReconcileService) SyncOutcomes(ctx context.Context) (*SyncOutcomesSummary, error) {
	summary := &SyncOutcomesSummary{}

	pending, err := s.decisions.GetPendingOutcomeSince(
		time.Now().Add(-s.cfg.OutcomeSyncLookback), s.cfg.OutcomeSyncBatch)
	if err != nil {
		return nil, err
	}

	for _, decision := range pending {
		summary.Checked++

		market, err := s.exchange.GetMarket(ctx, decision.MarketID)
		if err != nil {
			s.logger.Warn("Failed to fetch market for decision",
				zap.String("market_id", decision.MarketID),
				zap.Error(err))
			summary.Skipped++
			continue
		}

		if !market.Resolved || market.Result == "" {
			summary.Skipped++
			continue
		}

		outcome := models.OutcomeLoss
		if decision.Side == market.Result {
			outcome = models.OutcomeWin
		}

		err = s.decisions.SetOutcome(decision.ID, outcome, outcomeSourceCron, time.Now().UTC())
		if err != nil {
			if !errors.Is(err, repository.ErrDecisionNotFound) {
				s.logger.Warn("Failed to set decision outcome",
					zap.Int("decision_id", decision.ID),
					zap.Error(err))
			}
			summary.Skipped++
			continue
		}
		summary.Synced++
	}

	return summary, nil
}

// Cleanup удаляет устаревшие разрешённые снапшоты из кэша.
func (s *ReconcileService) Cleanup(ctx context.Context) (*CleanupSummary, error) {
	deleted, err := s.contracts.DeleteResolvedBefore(time.Now().Add(-s.cfg.CleanupRetention))
	if err != nil {
		return nil, err
	}

	s.logger.Info("Snapshot cleanup finished", zap.Int64("deleted", deleted))
	return &CleanupSummary{Deleted: deleted}, nil
}

// CancelAllOrders отменяет все покоящиеся ордера на бирже.
//
// Аварийный рычаг для admin endpoint: снимает неисполненные заявки,
// не трогая позиции в БД. Закрытие записей позиций выполнит
// следующий прогон CheckFills, увидев отменённые ордера.
func (s *ReconcileService) CancelAllOrders(ctx context.Context) (*CancelOrdersSummary, error) {
	resting, err := s.exchange.GetOrders(ctx, "", exchange.OrderStatusResting)
	if err != nil {
		return nil, fmt.Errorf("list resting orders: %w", err)
	}

	summary := &CancelOrdersSummary{Checked: len(resting)}
	for i := range resting {
		if err := s.exchange.CancelOrder(ctx, resting[i].OrderID); err != nil {
			s.logger.Warn("Failed to cancel order",
				zap.String("order_id", resting[i].OrderID),
				zap.Error(err))
			summary.Failed++
			continue
		}
		summary.Cancelled++
	}

	s.logger.Info("Cancel-all finished",
		zap.Int("checked", summary.Checked),
		zap.Int("cancelled", summary.Cancelled),
		zap.Int("failed", summary.Failed))

	return summary, nil
}

// settleTrade закрывает позицию по резолюции рынка.
func (s *ReconcileService) settleTrade(trade *models.Trade, result string, summary *CheckFillsSummary) {
	won := trade.WonBy(result)
	pnl := trade.SettlePnL(won)
	now := time.Now().UTC()

	status := models.TradeStatusLost
	exitOdds := 0.0
	if won {
		status = models.TradeStatusWon
		exitOdds = 1.0
	}

	if err := s.trades.Close(trade.ID, status, &pnl, &exitOdds, now); err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			// Уже закрыта параллельной джобой
			summary.Skipped++
			return
		}
		s.logger.Error("Failed to settle trade",
			zap.Int("trade_id", trade.ID),
			zap.Error(err))
		summary.Skipped++
		return
	}

	if err := s.contracts.MarkResolved(trade.MarketID, result, now); err != nil &&
		!errors.Is(err, repository.ErrContractNotFound) {
		s.logger.Warn("Failed to mark contract resolved",
			zap.String("market_id", trade.MarketID),
			zap.Error(err))
	}

	if won {
		summary.Won++
		bot.ReconcileTransitions.WithLabelValues("won").Inc()
	} else {
		summary.Lost++
		bot.ReconcileTransitions.WithLabelValues("lost").Inc()
	}

	s.logger.Info("Trade settled",
		zap.Int("trade_id", trade.ID),
		zap.String("market_id", trade.MarketID),
		zap.String("status", status),
		zap.Float64("pnl", pnl))

	s.broadcastClosed(trade, status, &pnl, &now)
}

// closeCancelled переводит позицию в cancelled (нулевой P&L, без цены выхода).
func (s *ReconcileService) closeCancelled(trade *models.Trade, summary *CheckFillsSummary) {
	pnl := 0.0
	now := time.Now().UTC()

	if err := s.trades.Close(trade.ID, models.TradeStatusCancelled, &pnl, nil, now); err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			summary.Skipped++
			return
		}
		s.logger.Error("Failed to cancel trade",
			zap.Int("trade_id", trade.ID),
			zap.Error(err))
		summary.Skipped++
		return
	}

	summary.Cancelled++
	bot.ReconcileTransitions.WithLabelValues("cancelled").Inc()

	s.logger.Info("Trade cancelled",
		zap.Int("trade_id", trade.ID),
		zap.String("market_id", trade.MarketID))

	s.broadcastClosed(trade, models.TradeStatusCancelled, &pnl, &now)
}

// matchOrder находит живой ордер позиции.
//
// Сначала по сохранённому идентификатору ордера; для старых строк
// без идентификатора остаётся эвристика: ордер того же тикера,
// созданный в пределах минуты от времени исполнения позиции.
func (s *ReconcileService) matchOrder(ctx context.Context, trade *models.Trade) (*exchange.Order, error) {
	if trade.ExchangeOrderID != nil && *trade.ExchangeOrderID != "" {
		order, err := s.exchange.GetOrder(ctx, *trade.ExchangeOrderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, exchange.ErrOrderNotFound) {
			return nil, err
		}
		// Идентификатор протух, пробуем эвристику
	}

	orders, err := s.exchange.GetOrders(ctx, trade.MarketID, "")
	if err != nil {
		return nil, err
	}
	order := matchTradeToOrders(trade, orders)
	if order != nil {
		s.learnOrderID(trade, order)
	}
	return order, nil
}

// learnOrderID сохраняет идентификатор ордера, найденного эвристикой.
// Следующие прогоны сверяют такую позицию напрямую по идентификатору,
// без перебора ордеров тикера.
func (s *ReconcileService) learnOrderID(trade *models.Trade, order *exchange.Order) {
	if trade.ExchangeOrderID != nil && *trade.ExchangeOrderID == order.OrderID {
		return
	}
	if err := s.trades.SetExchangeOrderID(trade.ID, order.OrderID); err != nil {
		s.logger.Warn("Failed to persist matched order id",
			zap.Int("trade_id", trade.ID),
			zap.String("order_id", order.OrderID),
			zap.Error(err))
		return
	}
	id := order.OrderID
	trade.ExchangeOrderID = &id
	s.logger.Info("Linked order to trade",
		zap.Int("trade_id", trade.ID),
		zap.String("order_id", order.OrderID))
}

// matchTradeToOrders применяет сопоставление позиция-ордер к списку.
func matchTradeToOrders(trade *models.Trade, orders []exchange.Order) *exchange.Order {
	if trade.ExchangeOrderID != nil && *trade.ExchangeOrderID != "" {
		for i := range orders {
			if orders[i].OrderID == *trade.ExchangeOrderID {
				return &orders[i]
			}
		}
	}

	window := utils.WindowAround(trade.ExecutedAt, time.Minute)
	for i := range orders {
		if orders[i].Ticker == trade.MarketID && window.Contains(orders[i].CreatedTime) {
			return &orders[i]
		}
	}
	return nil
}

func (s *ReconcileService) broadcastClosed(trade *models.Trade, status string, pnl *float64, resolvedAt *time.Time) {
	if s.wsHub == nil {
		return
	}
	// Предпочитаем строку из БД: параллельный прогон мог закрыть позицию
	// с другим исходом, рассылается фактическое состояние.
	if fresh, err := s.trades.GetByID(trade.ID); err == nil && fresh.Status != models.TradeStatusOpen {
		s.wsHub.BroadcastTradeClosed(fresh)
		return
	}
	closed := *trade
	closed.Status = status
	closed.PnL = pnl
	closed.ResolvedAt = resolvedAt
	s.wsHub.BroadcastTradeClosed(&closed)
}
