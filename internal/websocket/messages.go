package websocket

import (
	"time"

	"kalshibot/internal/models"
	"kalshibot/internal/service"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeTradeExecuted - размещена новая позиция
	// Отправляется торговым циклом после каждого успешного ордера
	MessageTypeTradeExecuted MessageType = "tradeExecuted"

	// MessageTypeCycleComplete - торговый цикл завершён
	// Отправляется после каждого прогона /api/cron/trade, в том числе
	// пустого (без кандидатов) и остановленного риск-шлюзом
	MessageTypeCycleComplete MessageType = "cycleComplete"

	// MessageTypeTradeClosed - позиция закрыта реконсиляцией
	// Отправляется при резолюции рынка или отмене ордера
	MessageTypeTradeClosed MessageType = "tradeClosed"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// TradeExecutedMessage - сообщение о размещённой позиции
type TradeExecutedMessage struct {
	BaseMessage
	Data *models.TradeResult `json:"data"`
}

// CycleCompleteMessage - итог торгового цикла
type CycleCompleteMessage struct {
	BaseMessage
	Data *service.CycleResult `json:"data"`
}

// TradeClosedMessage - сообщение о закрытой позиции
type TradeClosedMessage struct {
	BaseMessage
	Data *models.Trade `json:"data"`
}

// NewTradeExecutedMessage создает сообщение о размещённой позиции
func NewTradeExecutedMessage(result *models.TradeResult) *TradeExecutedMessage {
	return &TradeExecutedMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTradeExecuted,
			Timestamp: time.Now().UTC(),
		},
		Data: result,
	}
}

// NewCycleCompleteMessage создает сообщение об итоге цикла
func NewCycleCompleteMessage(result *service.CycleResult) *CycleCompleteMessage {
	return &CycleCompleteMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeCycleComplete,
			Timestamp: time.Now().UTC(),
		},
		Data: result,
	}
}

// NewTradeClosedMessage создает сообщение о закрытой позиции
func NewTradeClosedMessage(trade *models.Trade) *TradeClosedMessage {
	return &TradeClosedMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTradeClosed,
			Timestamp: time.Now().UTC(),
		},
		Data: trade,
	}
}
