package service

import (
	"context"
	"time"

	"kalshibot/internal/ai"
	"kalshibot/internal/bot"
	"kalshibot/internal/models"
	"kalshibot/internal/repository"
)

// ContractRepositoryInterface определяет интерфейс репозитория контрактов
type ContractRepositoryInterface interface {
	Upsert(contract *models.Contract) error
	GetByMarketID(marketID string) (*models.Contract, error)
	GetUnresolved() ([]*models.Contract, error)
	MarkResolved(marketID, resolution string, resolvedAt time.Time) error
	DeleteResolvedBefore(cutoff time.Time) (int64, error)
	Count() (int, error)
}

// TradeRepositoryInterface определяет интерфейс репозитория позиций
type TradeRepositoryInterface interface {
	Create(trade *models.Trade) error
	GetByID(id int) (*models.Trade, error)
	GetOpen() ([]*models.Trade, error)
	GetOpenSince(since time.Time) ([]*models.Trade, error)
	GetClosedInRange(from, to time.Time) ([]*models.Trade, error)
	GetRecentClosed(limit int) ([]*models.Trade, error)
	Close(id int, status string, pnl, exitOdds *float64, resolvedAt time.Time) error
	SetExchangeOrderID(id int, orderID string) error
	GetStats() (*models.TradeStats, error)
	CountConsecutiveLosses() (int, error)
}

// DecisionRepositoryInterface определяет интерфейс репозитория решений
type DecisionRepositoryInterface interface {
	Create(decision *models.AIDecision) error
	GetPendingOutcomeSince(since time.Time, limit int) ([]*models.AIDecision, error)
	SetOutcome(id int, outcome, source string, resolvedAt time.Time) error
	GetRecent(limit int) ([]*models.AIDecision, error)
	GetResolved(limit int) ([]*models.AIDecision, error)
}

// MetricsRepositoryInterface определяет интерфейс репозитория метрик
type MetricsRepositoryInterface interface {
	RecordMetric(metric *models.PerformanceMetric) error
	GetLatestMetric() (*models.PerformanceMetric, error)
	RecordStopLoss(event *models.StopLossEvent) error
	CountStopLossesSince(since time.Time) (int, error)
	UpsertMonthlyAnalysis(analysis *models.MonthlyAnalysis) error
	GetMonthlyAnalysis(month string) (*models.MonthlyAnalysis, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ ContractRepositoryInterface = (*repository.ContractRepository)(nil)
var _ TradeRepositoryInterface = (*repository.TradeRepository)(nil)
var _ DecisionRepositoryInterface = (*repository.DecisionRepository)(nil)
var _ MetricsRepositoryInterface = (*repository.MetricsRepository)(nil)

// ============ Интерфейсы торгового конвейера ============

// ScannerInterface определяет интерфейс сканера рынков
type ScannerInterface interface {
	Scan(ctx context.Context, criteria models.ScanCriteria) ([]models.Candidate, []string, error)
}

// AnalyzerInterface определяет интерфейс движка аллокации
type AnalyzerInterface interface {
	Analyze(ctx context.Context, req *models.AnalysisRequest, historicalContext string) (*models.AllocationPlan, error)
}

// ExecutorInterface определяет интерфейс исполнителя ордеров
type ExecutorInterface interface {
	Execute(ctx context.Context, plan *models.AllocationPlan, bankroll float64, forced bool) ([]models.TradeResult, error)
}

// PositionTrackerInterface определяет интерфейс трекера позиций
type PositionTrackerInterface interface {
	Bankroll(ctx context.Context) (float64, string)
	Cash(ctx context.Context) (float64, error)
	OpenPositions(ctx context.Context) ([]models.Position, error)
	Snapshot(ctx context.Context, stats *models.TradeStats, dailyPnL float64) *models.PerformanceMetric
}

// Проверяем, что реальные компоненты реализуют интерфейсы
var _ ScannerInterface = (*bot.Scanner)(nil)
var _ AnalyzerInterface = (*ai.Analyzer)(nil)
var _ ExecutorInterface = (*bot.Executor)(nil)
var _ PositionTrackerInterface = (*bot.PositionTracker)(nil)

// ============ Интерфейсы сервисов для HTTP handlers ============

// MarketServiceInterface определяет интерфейс обновления кэша снапшотов
type MarketServiceInterface interface {
	Refresh(ctx context.Context) (*RefreshSummary, error)
}

// TradingServiceInterface определяет интерфейс торгового цикла
type TradingServiceInterface interface {
	RunCycle(ctx context.Context, forced bool) (*CycleResult, error)
}

// ReconcileServiceInterface определяет интерфейс джобов реконсиляции
type ReconcileServiceInterface interface {
	CheckFills(ctx context.Context) (*CheckFillsSummary, error)
	SyncOrders(ctx context.Context) (*SyncOrdersSummary, error)
	SyncOutcomes(ctx context.Context) (*SyncOutcomesSummary, error)
	Cleanup(ctx context.Context) (*CleanupSummary, error)
	CancelAllOrders(ctx context.Context) (*CancelOrdersSummary, error)
}

// AnalysisServiceInterface определяет интерфейс месячной аналитики
type AnalysisServiceInterface interface {
	RunMonthly(now time.Time) (*models.MonthlyAnalysis, error)
	GetMonth(month string) (*models.MonthlyAnalysis, error)
}

// DashboardServiceInterface определяет интерфейс сервиса дашборда
type DashboardServiceInterface interface {
	GetStats(ctx context.Context) (*models.DashboardStats, error)
	GetDecisions(limit int) ([]*models.AIDecision, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ MarketServiceInterface = (*MarketService)(nil)
var _ TradingServiceInterface = (*TradingService)(nil)
var _ ReconcileServiceInterface = (*ReconcileService)(nil)
var _ AnalysisServiceInterface = (*AnalysisService)(nil)
var _ DashboardServiceInterface = (*DashboardService)(nil)
