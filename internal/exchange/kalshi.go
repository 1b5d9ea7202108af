package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"kalshibot/pkg/crypto"
	"kalshibot/pkg/ratelimit"
)

// Используем jsoniter для ускорения сериализации
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Заголовки аутентификации API
const (
	headerAccessKey       = "KALSHI-ACCESS-KEY"
	headerAccessSignature = "KALSHI-ACCESS-SIGNATURE"
	headerAccessTimestamp = "KALSHI-ACCESS-TIMESTAMP"
)

// dryRunOrderPrefix - префикс идентификаторов симулированных ордеров
const dryRunOrderPrefix = "dry-run-"

// ClientConfig - настройки клиента биржи
type ClientConfig struct {
	BaseURL        string
	AccessKeyID    string
	PrivateKeyPEM  string
	DryRun         bool
	RequestsPerSec float64
}

// Client - REST клиент биржи Kalshi.
//
// Каждый запрос подписывается RSA-PSS (timestamp + METHOD + path, для
// POST дополнительно тело) и проходит через token-bucket limiter.
//
// В режиме DryRun мутирующие операции (размещение и отмена ордеров)
// не обращаются к бирже: PlaceOrder возвращает симулированный ордер,
// а опрос его статуса сразу сообщает об исполнении. Читающие операции
// работают как обычно.
type Client struct {
	baseURL    *url.URL
	accessKey  string
	signer     *crypto.RequestSigner
	dryRun     bool
	httpClient *HTTPClient
	limiter    *ratelimit.RateLimiter
	logger     *zap.Logger
}

// NewClient создает клиента биржи.
//
// Приватный ключ обязателен, если DryRun выключен: без подписи
// биржа не принимает ни одного запроса к portfolio endpoints.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	var signer *crypto.RequestSigner
	if cfg.PrivateKeyPEM != "" {
		signer, err = crypto.NewRequestSigner(cfg.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("init request signer: %w", err)
		}
	}

	if signer == nil && !cfg.DryRun {
		return nil, fmt.Errorf("private key is required when dry run is disabled")
	}

	return &Client{
		baseURL:    base,
		accessKey:  cfg.AccessKeyID,
		signer:     signer,
		dryRun:     cfg.DryRun,
		httpClient: GetGlobalHTTPClient(),
		limiter:    ratelimit.NewRateLimiter(cfg.RequestsPerSec, cfg.RequestsPerSec*2),
		logger:     logger.Named("kalshi"),
	}, nil
}

// doRequest выполняет подписанный запрос к API.
//
// Параметры:
//   - method: HTTP метод
//   - path: путь относительно базового URL (например "/markets")
//   - query: параметры строки запроса (может быть nil)
//   - body: тело запроса для POST (может быть nil)
//
// Возвращает тело ответа или типизированную ошибку:
// RateLimitError при 429, APIError при прочих не-2xx статусах.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	// Превентивный rate limit перед каждым запросом
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := *c.baseURL
	u.Path += path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var bodyBytes []byte
	var err error
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.signRequest(req, method, u.Path, bodyBytes); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if err := c.checkStatus(resp, path, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// signRequest добавляет заголовки аутентификации.
//
// Подписываемое сообщение: timestamp(мс) + METHOD + path.
// Для запросов с телом (POST) тело дописывается в конец сообщения.
func (c *Client) signRequest(req *http.Request, method, path string, body []byte) error {
	if c.signer == nil {
		return nil // dry-run без ключа: читающие запросы публичного API
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	message := ts + method + path
	if len(body) > 0 {
		message += string(body)
	}

	signature, err := c.signer.Sign(message)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	req.Header.Set(headerAccessKey, c.accessKey)
	req.Header.Set(headerAccessSignature, signature)
	req.Header.Set(headerAccessTimestamp, ts)

	return nil
}

// checkStatus конвертирует не-2xx ответы в типизированные ошибки
func (c *Client) checkStatus(resp *http.Response, endpoint string, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Second
		if header := resp.Header.Get("Retry-After"); header != "" {
			if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}

		c.logger.Warn("rate limited by exchange",
			zap.String("endpoint", endpoint),
			zap.Duration("retry_after", retryAfter))

		return &RateLimitError{Endpoint: endpoint, RetryAfter: retryAfter}
	}

	// Пытаемся извлечь сообщение об ошибке из тела
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}

// ============================================================
// Рыночные данные
// ============================================================

// GetMarkets возвращает страницу открытых рынков.
//
// Пагинация через cursor: пустой cursor в ответе означает конец списка.
func (c *Client) GetMarkets(ctx context.Context, cursor string, limit int) (*MarketsPage, error) {
	query := url.Values{}
	query.Set("status", "open")
	query.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/markets", query, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Markets []marketWire `json:"markets"`
		Cursor  string       `json:"cursor"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal markets: %w", err)
	}

	page := &MarketsPage{
		Markets: make([]Market, 0, len(result.Markets)),
		Cursor:  result.Cursor,
	}
	for i := range result.Markets {
		page.Markets = append(page.Markets, result.Markets[i].toMarket())
	}

	return page, nil
}

// GetMarket возвращает один рынок по тикеру.
func (c *Client) GetMarket(ctx context.Context, ticker string) (*Market, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/markets/"+ticker, nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, ticker)
		}
		return nil, err
	}

	var result struct {
		Market marketWire `json:"market"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal market: %w", err)
	}

	market := result.Market.toMarket()
	return &market, nil
}

// GetOrderbook возвращает стакан рынка.
func (c *Client) GetOrderbook(ctx context.Context, ticker string) (*Orderbook, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/markets/"+ticker+"/orderbook", nil, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Orderbook orderbookWire `json:"orderbook"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal orderbook: %w", err)
	}

	ob := result.Orderbook.toOrderbook()
	return &ob, nil
}

// ============================================================
// Портфель
// ============================================================

// GetBalance возвращает доступный баланс счёта в долларах.
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/portfolio/balance", nil, nil)
	if err != nil {
		return 0, err
	}

	var result struct {
		Balance int64 `json:"balance"` // в центах
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("unmarshal balance: %w", err)
	}

	return float64(result.Balance) / 100, nil
}

// PlaceOrder размещает лимитный ордер на покупку.
//
// В режиме DryRun запрос к бирже не выполняется: возвращается
// симулированный resting-ордер с префиксированным идентификатором.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if c.dryRun {
		order := &Order{
			OrderID:     dryRunOrderPrefix + uuid.NewString(),
			Ticker:      req.Ticker,
			Side:        req.Side,
			Action:      "buy",
			Status:      OrderStatusResting,
			PriceCents:  req.PriceCents,
			Count:       req.Count,
			CreatedTime: time.Now().UTC(),
		}
		c.logger.Info("dry run: order simulated",
			zap.String("ticker", req.Ticker),
			zap.String("side", req.Side),
			zap.Int("count", req.Count),
			zap.Int("price_cents", req.PriceCents))
		return order, nil
	}

	payload := map[string]interface{}{
		"ticker":          req.Ticker,
		"client_order_id": uuid.NewString(),
		"action":          "buy",
		"side":            req.Side,
		"count":           req.Count,
		"type":            "limit",
	}
	if req.Side == "yes" {
		payload["yes_price"] = req.PriceCents
	} else {
		payload["no_price"] = req.PriceCents
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/portfolio/orders", nil, payload)
	if err != nil {
		return nil, err
	}

	var result struct {
		Order orderWire `json:"order"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}

	order := result.Order.toOrder()
	return &order, nil
}

// GetOrder возвращает ордер по идентификатору.
//
// Статус симулированных dry-run ордеров не запрашивается у биржи:
// они считаются исполненными сразу.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if isDryRunOrderID(orderID) {
		return &Order{OrderID: orderID, Status: OrderStatusExecuted}, nil
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/portfolio/orders/"+orderID, nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, err
	}

	var result struct {
		Order orderWire `json:"order"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}

	order := result.Order.toOrder()
	return &order, nil
}

// GetOrders возвращает ордера счёта с фильтрами.
//
// Параметры:
//   - ticker: фильтр по рынку (пустая строка - все рынки)
//   - status: фильтр по статусу (пустая строка - все статусы)
//
// Собирает все страницы пагинации.
func (c *Client) GetOrders(ctx context.Context, ticker, status string) ([]Order, error) {
	var orders []Order
	cursor := ""

	for {
		query := url.Values{}
		query.Set("limit", "100")
		if ticker != "" {
			query.Set("ticker", ticker)
		}
		if status != "" {
			query.Set("status", status)
		}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		body, err := c.doRequest(ctx, http.MethodGet, "/portfolio/orders", query, nil)
		if err != nil {
			return nil, err
		}

		var result struct {
			Orders []orderWire `json:"orders"`
			Cursor string      `json:"cursor"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}

		for i := range result.Orders {
			orders = append(orders, result.Orders[i].toOrder())
		}

		if result.Cursor == "" {
			break
		}
		cursor = result.Cursor
	}

	return orders, nil
}

// CancelOrder отменяет ордер.
//
// Симулированные dry-run ордера отменяются локально без запроса.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if isDryRunOrderID(orderID) {
		c.logger.Info("dry run: cancel simulated", zap.String("order_id", orderID))
		return nil
	}

	_, err := c.doRequest(ctx, http.MethodDelete, "/portfolio/orders/"+orderID, nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return err
	}

	return nil
}

// isDryRunOrderID распознаёт идентификаторы симулированных ордеров
func isDryRunOrderID(orderID string) bool {
	return len(orderID) > len(dryRunOrderPrefix) && orderID[:len(dryRunOrderPrefix)] == dryRunOrderPrefix
}
