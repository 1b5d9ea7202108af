package bot

import (
	"context"
	"fmt"
	"time"

	"kalshibot/internal/exchange"
	"kalshibot/internal/models"
	"kalshibot/internal/repository"
)

// ============ Mock Exchange ============

type MockExchange struct {
	markets      map[string]*exchange.Market
	orderbooks   map[string]*exchange.Orderbook
	orders       map[string]*exchange.Order
	balance      float64
	balanceErr   error
	marketErr    error
	orderbookErr map[string]error
	placeErr     error
	placedOrders []exchange.OrderRequest
	getOrderErr  error
	pollStatuses []string // последовательность статусов, отдаваемых GetOrder
	pollIdx      int
	cancelled    []string
	nextOrderID  int
}

func NewMockExchange() *MockExchange {
	return &MockExchange{
		markets:      make(map[string]*exchange.Market),
		orderbooks:   make(map[string]*exchange.Orderbook),
		orders:       make(map[string]*exchange.Order),
		orderbookErr: make(map[string]error),
		balance:      1000,
		nextOrderID:  1,
	}
}

func (m *MockExchange) GetMarkets(_ context.Context, _ string, _ int) (*exchange.MarketsPage, error) {
	page := &exchange.MarketsPage{}
	for _, mk := range m.markets {
		page.Markets = append(page.Markets, *mk)
	}
	return page, nil
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

func (m *MockExchange) GetOrderbook(_ context.Context, ticker string) (*exchange.Orderbook, error) {
	if err, ok := m.orderbookErr[ticker]; ok {
		return nil, err
	}
	ob, ok := m.orderbooks[ticker]
	if !ok {
		return nil, exchange.ErrMarketNotFound
	}
	return ob, nil
}

func (m *MockExchange) GetBalance(_ context.Context) (float64, error) {
	if m.balanceErr != nil {
		return 0, m.balanceErr
	}
	return m.balance, nil
}

func (m *MockExchange) PlaceOrder(_ context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	m.placedOrders = append(m.placedOrders, req)
	order := &exchange.Order{
		OrderID:     fmt.Sprintf("order-%d", m.nextOrderID),
		Ticker:      req.Ticker,
		Side:        req.Side,
		Action:      "buy",
		Status:      exchange.OrderStatusResting,
		PriceCents:  req.PriceCents,
		Count:       req.Count,
		CreatedTime: time.Now(),
	}
	m.nextOrderID++
	m.orders[order.OrderID] = order
	return order, nil
}

func (m *MockExchange) GetOrder(_ context.Context, orderID string) (*exchange.Order, error) {
	if m.getOrderErr != nil {
		return nil, m.getOrderErr
	}
	order, ok := m.orders[orderID]
	if !ok {
		return nil, exchange.ErrOrderNotFound
	}
	if m.pollIdx < len(m.pollStatuses) {
		order.Status = m.pollStatuses[m.pollIdx]
		m.pollIdx++
	}
	return order, nil
}

func (m *MockExchange) GetOrders(_ context.Context, ticker, status string) ([]exchange.Order, error) {
	var result []exchange.Order
	for _, o := range m.orders {
		if ticker != "" && o.Ticker != ticker {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		result = append(result, *o)
	}
	return result, nil
}

func (m *MockExchange) CancelOrder(_ context.Context, orderID string) error {
	order, ok := m.orders[orderID]
	if !ok {
		return exchange.ErrOrderNotFound
	}
	order.Status = exchange.OrderStatusCanceled
	m.cancelled = append(m.cancelled, orderID)
	return nil
}

var _ exchange.Exchange = (*MockExchange)(nil)

// ============ Mock хранилища ============

type MockContractStore struct {
	unresolved []*models.Contract
	loadErr    error
	upserted   []*models.Contract
	upsertErr  error
}

func (m *MockContractStore) GetUnresolved() ([]*models.Contract, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.unresolved, nil
}

func (m *MockContractStore) Upsert(contract *models.Contract) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, contract)
	return nil
}

type MockTradeStore struct {
	created   []*models.Trade
	createErr error
	open      []*models.Trade
	openErr   error
	streak    int
	streakErr error
}

func (m *MockTradeStore) Create(trade *models.Trade) error {
	if m.createErr != nil {
		return m.createErr
	}
	trade.ID = len(m.created) + 1
	m.created = append(m.created, trade)
	return nil
}

func (m *MockTradeStore) GetOpen() ([]*models.Trade, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.open, nil
}

func (m *MockTradeStore) CountConsecutiveLosses() (int, error) {
	if m.streakErr != nil {
		return 0, m.streakErr
	}
	return m.streak, nil
}

type MockDecisionStore struct {
	created   []*models.AIDecision
	createErr error
}

func (m *MockDecisionStore) Create(decision *models.AIDecision) error {
	if m.createErr != nil {
		return m.createErr
	}
	decision.ID = len(m.created) + 1
	m.created = append(m.created, decision)
	return nil
}

type MockMetricsStore struct {
	latest        *models.PerformanceMetric
	latestErr     error
	stopLosses24h int
	stopLossErr   error
}

func (m *MockMetricsStore) GetLatestMetric() (*models.PerformanceMetric, error) {
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	if m.latest == nil {
		return nil, repository.ErrMetricNotFound
	}
	return m.latest, nil
}

func (m *MockMetricsStore) CountStopLossesSince(_ time.Time) (int, error) {
	if m.stopLossErr != nil {
		return 0, m.stopLossErr
	}
	return m.stopLosses24h, nil
}
