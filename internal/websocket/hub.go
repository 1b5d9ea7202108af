package websocket

import (
	"bytes"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"kalshibot/internal/models"
	"kalshibot/internal/service"
)

// Используем jsoniter для сериализации broadcast сообщений
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Пул JSON буферов: убирает аллокации при каждом Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями
//
// Назначение:
// Центральный менеджер для broadcast уведомлений всем подключенным
// клиентам дашборда. Обеспечивает real-time обновления без polling.
//
// Типы сообщений:
// - tradeExecuted: размещена новая позиция
// - cycleComplete: завершён торговый цикл
// - tradeClosed: позиция закрыта реконсиляцией
//
// Использование:
// 1. Создать hub: hub := NewHub(origins, logger)
// 2. Запустить в горутине: go hub.Run()
// 3. Передать hub сервисам через SetWebSocketHub
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	// Остановка главного цикла
	done chan struct{}

	// Счётчик сообщений, отброшенных при переполнении канала
	dropped atomic.Int64

	// Mutex для потокобезопасного доступа к clients
	mu sync.RWMutex

	origins *originChecker
	logger  *zap.Logger
}

// Hub реализует broadcast-интерфейсы сервисов
var _ service.TradeBroadcaster = (*Hub)(nil)
var _ service.ReconcileBroadcaster = (*Hub)(nil)

// NewHub создает новый Hub.
// allowedOrigins - origins дашборда, которым разрешён upgrade;
// пустой список разрешает все (локальное развертывание).
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		origins:    newOriginChecker(allowedOrigins),
		logger:     logger,
	}
}

// Stop завершает главный цикл Hub. Клиентские соединения закроются
// сами при остановке HTTP сервера.
func (h *Hub) Stop() {
	close(h.done)
}

// DroppedMessages возвращает число сообщений, отброшенных
// при переполнении broadcast канала
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
// Обрабатывает регистрацию, отмену регистрации и broadcast.
//
// Рассылка идёт без блокировки реестра: список клиентов копируется
// под коротким RLock, медленные клиенты удаляются после рассылки.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("WebSocket client connected", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("WebSocket client disconnected", zap.Int("total", total))

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			// Отправляем без блокировки, чтобы не тормозить register/unregister
			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает читать - помечаем для удаления
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.logger.Warn("Removed slow WebSocket clients",
					zap.Int("removed", len(toRemove)),
					zap.Int("total", total))
			}
		}
	}
}

// Broadcast отправляет сообщение всем подключенным клиентам.
// Использует sync.Pool для буферов сериализации.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		jsonBufferPool.Put(buf)
		return
	}

	// Убираем trailing newline от Encode
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// Копируем данные, буфер возвращается в пул
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	// Broadcast не блокирует отправителя: торговый цикл не должен
	// ждать медленный hub, переполнение считаем и отбрасываем
	select {
	case h.broadcast <- msgCopy:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastTradeExecuted отправляет уведомление о размещённой позиции
func (h *Hub) BroadcastTradeExecuted(result *models.TradeResult) {
	h.Broadcast(NewTradeExecutedMessage(result))
}

// BroadcastCycleComplete отправляет итог торгового цикла
func (h *Hub) BroadcastCycleComplete(result *service.CycleResult) {
	h.Broadcast(NewCycleCompleteMessage(result))
}

// BroadcastTradeClosed отправляет уведомление о закрытой позиции
func (h *Hub) BroadcastTradeClosed(trade *models.Trade) {
	h.Broadcast(NewTradeClosedMessage(trade))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
