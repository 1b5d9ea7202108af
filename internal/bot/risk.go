package bot

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kalshibot/internal/config"
)

// Ошибки риск-контроля. Типизированы, чтобы обработчики могли отличить
// сработавший предохранитель от технического сбоя.
var (
	ErrDrawdownStop      = errors.New("trading halted: bankroll below drawdown threshold")
	ErrConsecutiveLosses = errors.New("trading halted: consecutive loss limit reached")
	ErrStopLossLimit     = errors.New("trading halted: stop-loss limit for 24h reached")
)

// lossHistory - статистика потерь для риск-контроля.
// Реализуется repository.TradeRepository.
type lossHistory interface {
	CountConsecutiveLosses() (int, error)
}

// stopLossHistory - счётчик недавних стоп-лоссов.
// Реализуется repository.MetricsRepository.
type stopLossHistory interface {
	CountStopLossesSince(since time.Time) (int, error)
}

// RiskGate - предохранители, проверяемые перед каждой отправкой ордеров.
//
// Любой сработавший лимит останавливает исполнение цикла целиком:
// серия потерь или просадка банкролла означают, что стратегия
// систематически ошибается и докупать позиции нельзя.
type RiskGate struct {
	trades     lossHistory
	stopLosses stopLossHistory
	cfg        config.TradingConfig
	logger     *zap.Logger
}

// NewRiskGate создает риск-контроль
func NewRiskGate(trades lossHistory, stopLosses stopLossHistory, cfg config.TradingConfig, logger *zap.Logger) *RiskGate {
	return &RiskGate{
		trades:     trades,
		stopLosses: stopLosses,
		cfg:        cfg,
		logger:     logger,
	}
}

// Check проверяет все предохранители для текущего банкролла.
// Возвращает типизированную ошибку сработавшего лимита либо nil.
func (g *RiskGate) Check(bankroll float64) error {
	threshold := g.cfg.DrawdownStopRatio * g.cfg.InitialBankroll
	if bankroll < threshold {
		g.logger.Warn("Drawdown stop triggered",
			zap.Float64("bankroll", bankroll),
			zap.Float64("threshold", threshold))
		return fmt.Errorf("%w: bankroll %.2f < %.2f", ErrDrawdownStop, bankroll, threshold)
	}

	streak, err := g.trades.CountConsecutiveLosses()
	if err != nil {
		return fmt.Errorf("count consecutive losses: %w", err)
	}
	if streak >= g.cfg.MaxConsecutiveLosses {
		g.logger.Warn("Consecutive loss stop triggered", zap.Int("streak", streak))
		return fmt.Errorf("%w: %d in a row", ErrConsecutiveLosses, streak)
	}

	stopLosses, err := g.stopLosses.CountStopLossesSince(time.Now().Add(-24 * time.Hour))
	if err != nil {
		return fmt.Errorf("count stop losses: %w", err)
	}
	if stopLosses >= g.cfg.MaxStopLosses24h {
		g.logger.Warn("Stop-loss frequency stop triggered", zap.Int("stop_losses_24h", stopLosses))
		return fmt.Errorf("%w: %d in 24h", ErrStopLossLimit, stopLosses)
	}

	return nil
}
