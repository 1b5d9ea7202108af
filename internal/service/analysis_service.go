package service

import (
	"time"

	"go.uber.org/zap"

	"kalshibot/internal/models"
	"kalshibot/pkg/utils"
)

// AnalysisService строит месячные отчёты по завершённым позициям.
//
// Отчёт агрегирует позиции, разрешённые за календарный месяц:
// количество, win rate, суммарный P&L, ROI от вложенного, лучшая
// и худшая сделка. Результат хранится в monthly_analysis и отдаётся
// дашборду.
type AnalysisService struct {
	trades  TradeRepositoryInterface
	metrics MetricsRepositoryInterface
	logger  *zap.Logger
}

// NewAnalysisService создает сервис месячной аналитики
func NewAnalysisService(trades TradeRepositoryInterface, metrics MetricsRepositoryInterface, logger *zap.Logger) *AnalysisService {
	return &AnalysisService{
		trades:  trades,
		metrics: metrics,
		logger:  logger,
	}
}

// RunMonthly строит и сохраняет отчёт за предыдущий календарный месяц.
//
// Повторный запуск за тот же месяц перезаписывает отчёт (upsert):
// джобу можно безопасно перезапускать при сбое расписания.
func (s *AnalysisService) RunMonthly(now time.Time) (*models.MonthlyAnalysis, error) {
	rng := utils.GetPreviousMonthRange(now)

	closed, err := s.trades.GetClosedInRange(rng.Start, rng.End)
	if err != nil {
		return nil, err
	}

	analysis := aggregateMonth(utils.MonthKey(rng.Start), closed)

	if err := s.metrics.UpsertMonthlyAnalysis(analysis); err != nil {
		return nil, err
	}

	s.logger.Info("Monthly analysis stored",
		zap.String("month", analysis.Month),
		zap.Int("trades", analysis.Trades),
		zap.Float64("total_pnl", analysis.TotalPnL))

	return analysis, nil
}

// GetMonth возвращает сохранённый отчёт за месяц (формат YYYY-MM).
func (s *AnalysisService) GetMonth(month string) (*models.MonthlyAnalysis, error) {
	return s.metrics.GetMonthlyAnalysis(month)
}

// aggregateMonth агрегирует закрытые позиции в месячный отчёт.
// Отменённые позиции не учитываются: они не несут исхода.
func aggregateMonth(month string, closed []*models.Trade) *models.MonthlyAnalysis {
	analysis := &models.MonthlyAnalysis{Month: month}

	invested := 0.0
	first := true
	for _, t := range closed {
		switch t.Status {
		case models.TradeStatusWon:
			analysis.Wins++
		case models.TradeStatusLost, models.TradeStatusStopLoss:
			analysis.Losses++
		default:
			continue
		}

		analysis.Trades++
		invested += t.PositionSize

		pnl := 0.0
		if t.PnL != nil {
			pnl = *t.PnL
		}
		analysis.TotalPnL += pnl

		if first {
			analysis.BestPnL = pnl
			analysis.WorstPnL = pnl
			first = false
			continue
		}
		if pnl > analysis.BestPnL {
			analysis.BestPnL = pnl
		}
		if pnl < analysis.WorstPnL {
			analysis.WorstPnL = pnl
		}
	}

	analysis.WinRate = utils.WinRate(analysis.Wins, analysis.Trades)
	analysis.ROI = utils.CalculateROI(analysis.TotalPnL, invested)

	return analysis
}
