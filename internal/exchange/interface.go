package exchange

import (
	"context"
)

// Exchange определяет интерфейс биржи, потребляемый ботом и сервисами.
//
// Вынесен в интерфейс ради тестов: сканер, исполнитель и реконсиляция
// работают с mock-реализацией без сетевых вызовов.
type Exchange interface {
	// GetMarkets возвращает страницу открытых рынков (cursor-пагинация)
	GetMarkets(ctx context.Context, cursor string, limit int) (*MarketsPage, error)

	// GetMarket возвращает один рынок по тикеру
	GetMarket(ctx context.Context, ticker string) (*Market, error)

	// GetOrderbook возвращает стакан рынка
	GetOrderbook(ctx context.Context, ticker string) (*Orderbook, error)

	// GetBalance возвращает доступный баланс счёта в долларах
	GetBalance(ctx context.Context) (float64, error)

	// PlaceOrder размещает лимитный ордер на покупку
	PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error)

	// GetOrder возвращает ордер по идентификатору
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// GetOrders возвращает ордера счёта с фильтрами по рынку и статусу
	GetOrders(ctx context.Context, ticker, status string) ([]Order, error)

	// CancelOrder отменяет ордер
	CancelOrder(ctx context.Context, orderID string) error
}

// Проверка соответствия интерфейсу на этапе компиляции
var _ Exchange = (*Client)(nil)
