package exchange

import (
	"errors"
	"fmt"
	"time"
)

// Сентинельные ошибки биржи
var (
	ErrMarketNotFound = errors.New("market not found")
	ErrOrderNotFound  = errors.New("order not found")
)

// APIError представляет ошибку, возвращённую API биржи.
//
// Сохраняет HTTP статус и тело ответа для диагностики.
// Оборачивается в %w, чтобы вызывающий код мог разбирать через errors.As.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kalshi api error: status=%d endpoint=%s message=%s",
		e.StatusCode, e.Endpoint, e.Message)
}

// Retryable сообщает retry-логике, имеет ли смысл повторять запрос.
// Серверные ошибки (5xx) временные, клиентские (4xx) - нет.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500
}

// RateLimitError возвращается при HTTP 429.
//
// RetryAfter извлекается из заголовка Retry-After; если биржа его
// не прислала, используется консервативный дефолт в 1 секунду.
type RateLimitError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("kalshi rate limit exceeded: endpoint=%s retry_after=%v",
		e.Endpoint, e.RetryAfter)
}

// Retryable - rate limit всегда временный
func (e *RateLimitError) Retryable() bool {
	return true
}

// DelayHint возвращает задержку, запрошенную биржей.
// Используется pkg/retry вместо экспоненциального backoff.
func (e *RateLimitError) DelayHint() time.Duration {
	return e.RetryAfter
}

// IsRateLimited сообщает, является ли ошибка превышением лимита запросов.
func IsRateLimited(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}
