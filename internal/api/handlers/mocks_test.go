package handlers

import (
	"context"
	"time"

	"kalshibot/internal/models"
	"kalshibot/internal/service"
)

// ============ Mock сервисы для handler-тестов ============

type MockMarketService struct {
	summary *service.RefreshSummary
	err     error
	calls   int
}

func (m *MockMarketService) Refresh(_ context.Context) (*service.RefreshSummary, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.summary, nil
}

type MockTradingService struct {
	result     *service.CycleResult
	err        error
	calls      int
	lastForced bool
}

func (m *MockTradingService) RunCycle(_ context.Context, forced bool) (*service.CycleResult, error) {
	m.calls++
	m.lastForced = forced
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type MockReconcileService struct {
	fills     *service.CheckFillsSummary
	fillsErr  error
	orders    *service.SyncOrdersSummary
	ordersErr error
	outcomes  *service.SyncOutcomesSummary
	cleanup   *service.CleanupSummary
	cancelAll *service.CancelOrdersSummary
	cancelErr error
}

func (m *MockReconcileService) CheckFills(_ context.Context) (*service.CheckFillsSummary, error) {
	if m.fillsErr != nil {
		return nil, m.fillsErr
	}
	return m.fills, nil
}

func (m *MockReconcileService) SyncOrders(_ context.Context) (*service.SyncOrdersSummary, error) {
	if m.ordersErr != nil {
		return nil, m.ordersErr
	}
	return m.orders, nil
}

func (m *MockReconcileService) SyncOutcomes(_ context.Context) (*service.SyncOutcomesSummary, error) {
	return m.outcomes, nil
}

func (m *MockReconcileService) Cleanup(_ context.Context) (*service.CleanupSummary, error) {
	return m.cleanup, nil
}

func (m *MockReconcileService) CancelAllOrders(_ context.Context) (*service.CancelOrdersSummary, error) {
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	return m.cancelAll, nil
}

type MockAnalysisService struct {
	analysis *models.MonthlyAnalysis
	err      error
	lastNow  time.Time
}

func (m *MockAnalysisService) RunMonthly(now time.Time) (*models.MonthlyAnalysis, error) {
	m.lastNow = now
	if m.err != nil {
		return nil, m.err
	}
	return m.analysis, nil
}

func (m *MockAnalysisService) GetMonth(_ string) (*models.MonthlyAnalysis, error) {
	return m.analysis, nil
}

type MockDashboardService struct {
	stats     *models.DashboardStats
	statsErr  error
	decisions []*models.AIDecision
	decErr    error
	lastLimit int
}

func (m *MockDashboardService) GetStats(_ context.Context) (*models.DashboardStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

func (m *MockDashboardService) GetDecisions(limit int) ([]*models.AIDecision, error) {
	m.lastLimit = limit
	if m.decErr != nil {
		return nil, m.decErr
	}
	return m.decisions, nil
}

// Проверяем, что моки реализуют интерфейсы сервисов
var _ service.MarketServiceInterface = (*MockMarketService)(nil)
var _ service.TradingServiceInterface = (*MockTradingService)(nil)
var _ service.ReconcileServiceInterface = (*MockReconcileService)(nil)
var _ service.AnalysisServiceInterface = (*MockAnalysisService)(nil)
var _ service.DashboardServiceInterface = (*MockDashboardService)(nil)
