package exchange

import (
	"time"

	"kalshibot/pkg/utils"
)

// types.go - типы данных API биржи
//
// API отдаёт цены в центах (int, 1..99). Конвертация в доли единицы
// выполняется здесь, на границе клиента: остальное приложение
// работает только с вероятностями 0..1.

// Market представляет рынок в терминах приложения (цены в долях единицы).
type Market struct {
	Ticker     string
	Title      string
	Category   string
	YesPrice   float64 // цена YES, 0..1
	Volume     float64
	Liquidity  float64 // оценка ликвидности из снапшота рынка
	CloseTime  *time.Time
	Resolved   bool
	Result     string // "yes"/"no" после резолюции, иначе ""
}

// MarketsPage представляет страницу пагинации списка рынков.
type MarketsPage struct {
	Markets []Market
	Cursor  string // пустой курсор - страниц больше нет
}

// PriceLevel представляет один уровень стакана: цена в центах и количество контрактов.
type PriceLevel struct {
	PriceCents int
	Count      float64
}

// Orderbook представляет стакан бинарного рынка.
//
// Биржа хранит только bid-стороны: заявки на покупку YES и заявки
// на покупку NO. Ask по одной стороне восстанавливается из bid
// противоположной: askYes = 100 - bestBidNo.
type Orderbook struct {
	YesBids []PriceLevel // отсортированы по возрастанию цены
	NoBids  []PriceLevel
}

// BestAsk возвращает лучшую цену покупки указанной стороны в долях единицы
// и количество контрактов, доступных по этой цене.
//
// Возвращает (0, 0), если противоположная сторона стакана пуста.
func (ob *Orderbook) BestAsk(side string) (price float64, count float64) {
	var opposite []PriceLevel
	if side == "yes" {
		opposite = ob.NoBids
	} else {
		opposite = ob.YesBids
	}

	if len(opposite) == 0 {
		return 0, 0
	}

	// Лучший bid противоположной стороны - последний уровень (максимальная цена)
	best := opposite[len(opposite)-1]
	return utils.CentsToProb(100 - best.PriceCents), best.Count
}

// ContractsAtBestPrice возвращает количество контрактов, доступных
// по лучшей цене на указанной стороне. Мера живой ликвидности для сканера.
func (ob *Orderbook) ContractsAtBestPrice(side string) float64 {
	_, count := ob.BestAsk(side)
	return count
}

// Order представляет ордер на бирже.
type Order struct {
	OrderID     string
	Ticker      string
	Side        string // yes, no
	Action      string // buy, sell
	Status      string // resting, executed, canceled
	PriceCents  int
	Count       int
	CreatedTime time.Time
}

// Статусы ордеров биржи
const (
	OrderStatusResting  = "resting"
	OrderStatusExecuted = "executed"
	OrderStatusCanceled = "canceled"
)

// IsFilled сообщает, исполнен ли ордер полностью.
func (o *Order) IsFilled() bool {
	return o.Status == OrderStatusExecuted
}

// IsCanceled сообщает, отменён ли ордер.
func (o *Order) IsCanceled() bool {
	return o.Status == OrderStatusCanceled
}

// OrderRequest представляет запрос на размещение лимитного ордера.
type OrderRequest struct {
	Ticker     string
	Side       string // yes, no
	Count      int    // целое количество контрактов
	PriceCents int    // лимитная цена в центах, 1..99
}

// ============================================================
// Wire-структуры (формат JSON от API)
// ============================================================

type marketWire struct {
	Ticker    string  `json:"ticker"`
	Title     string  `json:"title"`
	Category  string  `json:"category"`
	YesBid    int     `json:"yes_bid"`
	YesAsk    int     `json:"yes_ask"`
	LastPrice int     `json:"last_price"`
	Volume    float64 `json:"volume"`
	Liquidity float64 `json:"liquidity"`
	CloseTime string  `json:"close_time"`
	Status    string  `json:"status"`
	Result    string  `json:"result"`
}

// toMarket конвертирует wire-формат в доменный тип.
//
// Цена YES берётся из last_price; если сделок ещё не было,
// используется середина bid/ask.
func (w *marketWire) toMarket() Market {
	yesCents := w.LastPrice
	if yesCents == 0 && (w.YesBid > 0 || w.YesAsk > 0) {
		yesCents = (w.YesBid + w.YesAsk) / 2
	}

	m := Market{
		Ticker:    w.Ticker,
		Title:     w.Title,
		Category:  w.Category,
		YesPrice:  utils.CentsToProb(yesCents),
		Volume:    w.Volume,
		Liquidity: w.Liquidity,
		Resolved:  w.Status == "settled" || w.Result != "",
		Result:    w.Result,
	}

	if w.CloseTime != "" {
		if t, err := time.Parse(time.RFC3339, w.CloseTime); err == nil {
			m.CloseTime = &t
		}
	}

	return m
}

type orderWire struct {
	OrderID     string `json:"order_id"`
	Ticker      string `json:"ticker"`
	Side        string `json:"side"`
	Action      string `json:"action"`
	Status      string `json:"status"`
	YesPrice    int    `json:"yes_price"`
	NoPrice     int    `json:"no_price"`
	Count       int    `json:"count"`
	CreatedTime string `json:"created_time"`
}

func (w *orderWire) toOrder() Order {
	o := Order{
		OrderID: w.OrderID,
		Ticker:  w.Ticker,
		Side:    w.Side,
		Action:  w.Action,
		Status:  w.Status,
		Count:   w.Count,
	}

	if w.Side == "yes" {
		o.PriceCents = w.YesPrice
	} else {
		o.PriceCents = w.NoPrice
	}

	if w.CreatedTime != "" {
		if t, err := time.Parse(time.RFC3339, w.CreatedTime); err == nil {
			o.CreatedTime = t
		}
	}

	return o
}

type orderbookWire struct {
	Yes [][]float64 `json:"yes"`
	No  [][]float64 `json:"no"`
}

func (w *orderbookWire) toOrderbook() Orderbook {
	toLevels := func(raw [][]float64) []PriceLevel {
		levels := make([]PriceLevel, 0, len(raw))
		for _, pair := range raw {
			if len(pair) < 2 {
				continue
			}
			levels = append(levels, PriceLevel{
				PriceCents: int(pair[0]),
				Count:      pair[1],
			})
		}
		return levels
	}

	return Orderbook{
		YesBids: toLevels(w.Yes),
		NoBids:  toLevels(w.No),
	}
}
