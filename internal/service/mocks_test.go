package service

import (
	"context"
	"time"

	"kalshibot/internal/exchange"
	"kalshibot/internal/models"
	"kalshibot/internal/repository"
)

// ============ Mock торгового конвейера ============

type MockScanner struct {
	candidates []models.Candidate
	warnings   []string
	err        error
	lastCrit   models.ScanCriteria
}

func (m *MockScanner) Scan(_ context.Context, criteria models.ScanCriteria) ([]models.Candidate, []string, error) {
	m.lastCrit = criteria
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.candidates, m.warnings, nil
}

type MockAnalyzer struct {
	plan        *models.AllocationPlan
	err         error
	calls       int
	lastReq     *models.AnalysisRequest
	lastContext string
}

func (m *MockAnalyzer) Analyze(_ context.Context, req *models.AnalysisRequest, historicalContext string) (*models.AllocationPlan, error) {
	m.calls++
	m.lastReq = req
	m.lastContext = historicalContext
	if m.err != nil {
		return nil, m.err
	}
	return m.plan, nil
}

type MockExecutor struct {
	results      []models.TradeResult
	err          error
	calls        int
	lastPlan     *models.AllocationPlan
	lastBankroll float64
	lastForced   bool
}

func (m *MockExecutor) Execute(_ context.Context, plan *models.AllocationPlan, bankroll float64, forced bool) ([]models.TradeResult, error) {
	m.calls++
	m.lastPlan = plan
	m.lastBankroll = bankroll
	m.lastForced = forced
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

type MockTracker struct {
	bankroll     float64
	source       string
	cash         float64
	cashErr      error
	positions    []models.Position
	positionsErr error
}

func (m *MockTracker) Bankroll(_ context.Context) (float64, string) {
	return m.bankroll, m.source
}

func (m *MockTracker) Cash(_ context.Context) (float64, error) {
	if m.cashErr != nil {
		return 0, m.cashErr
	}
	return m.cash, nil
}

func (m *MockTracker) OpenPositions(_ context.Context) ([]models.Position, error) {
	if m.positionsErr != nil {
		return nil, m.positionsErr
	}
	return m.positions, nil
}

func (m *MockTracker) Snapshot(_ context.Context, stats *models.TradeStats, dailyPnL float64) *models.PerformanceMetric {
	return &models.PerformanceMetric{
		Bankroll:    m.bankroll,
		DailyPnL:    dailyPnL,
		TotalTrades: stats.TotalTrades,
		Wins:        stats.Wins,
		Losses:      stats.Losses,
		RecordedAt:  time.Now().UTC(),
	}
}

// ============ Mock репозитории ============

type MockContractRepo struct {
	upserted    []*models.Contract
	upsertErr   error
	byMarketID  map[string]*models.Contract
	unresolved  []*models.Contract
	resolved    map[string]string // market_id -> resolution
	markErr     error
	deleted     int64
	deleteErr   error
	deleteCalls []time.Time
}

func NewMockContractRepo() *MockContractRepo {
	return &MockContractRepo{
		byMarketID: make(map[string]*models.Contract),
		resolved:   make(map[string]string),
	}
}

func (m *MockContractRepo) Upsert(contract *models.Contract) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, contract)
	return nil
}

func (m *MockContractRepo) GetByMarketID(marketID string) (*models.Contract, error) {
	c, ok := m.byMarketID[marketID]
	if !ok {
		return nil, repository.ErrContractNotFound
	}
	return c, nil
}

func (m *MockContractRepo) GetUnresolved() ([]*models.Contract, error) {
	return m.unresolved, nil
}

func (m *MockContractRepo) MarkResolved(marketID, resolution string, _ time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.resolved[marketID] = resolution
	return nil
}

func (m *MockContractRepo) DeleteResolvedBefore(cutoff time.Time) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deleteCalls = append(m.deleteCalls, cutoff)
	return m.deleted, nil
}

func (m *MockContractRepo) Count() (int, error) {
	return len(m.byMarketID), nil
}

type closeCall struct {
	id       int
	status   string
	pnl      *float64
	exitOdds *float64
}

type linkCall struct {
	id      int
	orderID string
}

type MockTradeRepo struct {
	created      []*models.Trade
	open         []*models.Trade
	openErr      error
	byID         map[int]*models.Trade // переопределяет поиск GetByID
	closed       []*models.Trade
	closedErr    error
	closedFrom   time.Time
	closedTo     time.Time
	recentClosed []*models.Trade
	closeCalls   []closeCall
	closeErr     error
	closedIDs    map[int]bool // уже закрытые: Close вернёт ErrTradeNotFound
	linkCalls    []linkCall
	linkErr      error
	stats        *models.TradeStats
	statsErr     error
}

func NewMockTradeRepo() *MockTradeRepo {
	return &MockTradeRepo{
		closedIDs: make(map[int]bool),
		byID:      make(map[int]*models.Trade),
	}
}

func (m *MockTradeRepo) Create(trade *models.Trade) error {
	trade.ID = len(m.created) + 1
	m.created = append(m.created, trade)
	return nil
}

func (m *MockTradeRepo) GetByID(id int) (*models.Trade, error) {
	if t, ok := m.byID[id]; ok {
		return t, nil
	}
	for _, t := range m.open {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, repository.ErrTradeNotFound
}

func (m *MockTradeRepo) GetOpen() ([]*models.Trade, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.open, nil
}

func (m *MockTradeRepo) GetOpenSince(_ time.Time) ([]*models.Trade, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.open, nil
}

func (m *MockTradeRepo) GetClosedInRange(from, to time.Time) ([]*models.Trade, error) {
	m.closedFrom = from
	m.closedTo = to
	if m.closedErr != nil {
		return nil, m.closedErr
	}
	return m.closed, nil
}

func (m *MockTradeRepo) GetRecentClosed(_ int) ([]*models.Trade, error) {
	return m.recentClosed, nil
}

func (m *MockTradeRepo) Close(id int, status string, pnl, exitOdds *float64, _ time.Time) error {
	if m.closeErr != nil {
		return m.closeErr
	}
	if m.closedIDs[id] {
		return repository.ErrTradeNotFound
	}
	m.closedIDs[id] = true
	m.closeCalls = append(m.closeCalls, closeCall{id: id, status: status, pnl: pnl, exitOdds: exitOdds})
	return nil
}

func (m *MockTradeRepo) SetExchangeOrderID(id int, orderID string) error {
	if m.linkErr != nil {
		return m.linkErr
	}
	m.linkCalls = append(m.linkCalls, linkCall{id: id, orderID: orderID})
	return nil
}

func (m *MockTradeRepo) GetStats() (*models.TradeStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	if m.stats == nil {
		return &models.TradeStats{}, nil
	}
	return m.stats, nil
}

func (m *MockTradeRepo) CountConsecutiveLosses() (int, error) { return 0, nil }

type outcomeCall struct {
	id      int
	outcome string
	source  string
}

type MockDecisionRepo struct {
	created      []*models.AIDecision
	createErr    error
	pending      []*models.AIDecision
	pendingErr   error
	recent       []*models.AIDecision
	resolved     []*models.AIDecision
	outcomeCalls []outcomeCall
	outcomeErr   error
	resolvedIDs  map[int]bool
}

func NewMockDecisionRepo() *MockDecisionRepo {
	return &MockDecisionRepo{resolvedIDs: make(map[int]bool)}
}

func (m *MockDecisionRepo) Create(decision *models.AIDecision) error {
	if m.createErr != nil {
		return m.createErr
	}
	decision.ID = len(m.created) + 1
	m.created = append(m.created, decision)
	return nil
}

func (m *MockDecisionRepo) GetPendingOutcomeSince(_ time.Time, limit int) ([]*models.AIDecision, error) {
	if m.pendingErr != nil {
		return nil, m.pendingErr
	}
	if len(m.pending) > limit {
		return m.pending[:limit], nil
	}
	return m.pending, nil
}

func (m *MockDecisionRepo) SetOutcome(id int, outcome, source string, _ time.Time) error {
	if m.outcomeErr != nil {
		return m.outcomeErr
	}
	if m.resolvedIDs[id] {
		return repository.ErrDecisionNotFound
	}
	m.resolvedIDs[id] = true
	m.outcomeCalls = append(m.outcomeCalls, outcomeCall{id: id, outcome: outcome, source: source})
	return nil
}

func (m *MockDecisionRepo) GetRecent(limit int) ([]*models.AIDecision, error) {
	if len(m.recent) > limit {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}

func (m *MockDecisionRepo) GetResolved(_ int) ([]*models.AIDecision, error) {
	return m.resolved, nil
}

type MockMetricsRepo struct {
	recorded  []*models.PerformanceMetric
	recordErr error
	latest    *models.PerformanceMetric
	analyses  map[string]*models.MonthlyAnalysis
	upsertErr error
}

func NewMockMetricsRepo() *MockMetricsRepo {
	return &MockMetricsRepo{analyses: make(map[string]*models.MonthlyAnalysis)}
}

func (m *MockMetricsRepo) RecordMetric(metric *models.PerformanceMetric) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.recorded = append(m.recorded, metric)
	return nil
}

func (m *MockMetricsRepo) GetLatestMetric() (*models.PerformanceMetric, error) {
	if m.latest == nil {
		return nil, repository.ErrMetricNotFound
	}
	return m.latest, nil
}

func (m *MockMetricsRepo) RecordStopLoss(_ *models.StopLossEvent) error { return nil }

func (m *MockMetricsRepo) CountStopLossesSince(_ time.Time) (int, error) { return 0, nil }

func (m *MockMetricsRepo) UpsertMonthlyAnalysis(analysis *models.MonthlyAnalysis) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.analyses[analysis.Month] = analysis
	return nil
}

func (m *MockMetricsRepo) GetMonthlyAnalysis(month string) (*models.MonthlyAnalysis, error) {
	a, ok := m.analyses[month]
	if !ok {
		return nil, repository.ErrAnalysisNotFound
	}
	return a, nil
}

// ============ Mock биржа ============

type MockExchange struct {
	markets    map[string]*exchange.Market
	marketErr  error
	pages      []exchange.MarketsPage
	pageIdx    int
	pagesErr   error
	pageCalls  int
	orders     map[string]*exchange.Order
	listOrders []exchange.Order
	listErr    error
	cancelled  []string
	cancelErr  error
}

func NewMockServiceExchange() *MockExchange {
	return &MockExchange{
		markets: make(map[string]*exchange.Market),
		orders:  make(map[string]*exchange.Order),
	}
}

func (m *MockExchange) GetMarkets(_ context.Context, _ string, _ int) (*exchange.MarketsPage, error) {
	m.pageCalls++
	if m.pagesErr != nil {
		return nil, m.pagesErr
	}
	if m.pageIdx >= len(m.pages) {
		return &exchange.MarketsPage{}, nil
	}
	page := m.pages[m.pageIdx]
	m.pageIdx++
	return &page, nil
}

func (m *MockExchange) GetMarket(_ context.Context, ticker string) (*exchange.Market, error) {
	if m.marketErr != nil {
		return nil, m.marketErr
	}
	mk, ok := m.markets[ticker]
	if !ok {
		return nil, exchange.ErrMarketNotFound
	}
	return mk, nil
}

func (m *MockExchange) GetOrderbook(_ context.Context, _ string) (*exchange.Orderbook, error) {
	return &exchange.Orderbook{}, nil
}

func (m *MockExchange) GetBalance(_ context.Context) (float64, error) {
	return 1000, nil
}

func (m *MockExchange) PlaceOrder(_ context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	return &exchange.Order{OrderID: "order-1", Ticker: req.Ticker, Status: exchange.OrderStatusResting}, nil
}

func (m *MockExchange) GetOrder(_ context.Context, orderID string) (*exchange.Order, error) {
	order, ok := m.orders[orderID]
	if !ok {
		return nil, exchange.ErrOrderNotFound
	}
	return order, nil
}

func (m *MockExchange) GetOrders(_ context.Context, ticker, status string) ([]exchange.Order, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []exchange.Order
	for _, o := range m.listOrders {
		if ticker != "" && o.Ticker != ticker {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		result = append(result, o)
	}
	return result, nil
}

func (m *MockExchange) CancelOrder(_ context.Context, orderID string) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelled = append(m.cancelled, orderID)
	if order, ok := m.orders[orderID]; ok {
		order.Status = exchange.OrderStatusCanceled
	}
	return nil
}

var _ exchange.Exchange = (*MockExchange)(nil)

// ============ Mock broadcaster ============

type MockBroadcaster struct {
	tradeEvents  []*models.TradeResult
	cycleEvents  []*CycleResult
	closedTrades []*models.Trade
}

func (m *MockBroadcaster) BroadcastTradeExecuted(result *models.TradeResult) {
	m.tradeEvents = append(m.tradeEvents, result)
}

func (m *MockBroadcaster) BroadcastCycleComplete(result *CycleResult) {
	m.cycleEvents = append(m.cycleEvents, result)
}

func (m *MockBroadcaster) BroadcastTradeClosed(trade *models.Trade) {
	m.closedTrades = append(m.closedTrades, trade)
}
