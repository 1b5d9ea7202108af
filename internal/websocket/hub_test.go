package websocket

import (
	"sync"
	"testing"
	"time"

	"kalshibot/internal/models"
	"kalshibot/internal/service"
	"kalshibot/pkg/logger"
)

func newTestHub() *Hub {
	return NewHub(nil, logger.NewNop())
}

func TestNewHub(t *testing.T) {
	hub := newTestHub()

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.DroppedMessages() != 0 {
		t.Errorf("expected 0 dropped messages, got %d", hub.DroppedMessages())
	}
}

func TestOriginChecker(t *testing.T) {
	checker := newOriginChecker([]string{
		"http://localhost:3000",
		"https://example.com",
	})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true}, // non-browser клиенты
		{"http://localhost:3000", true},
		{"https://example.com", true},
		{"http://evil.example.org", false},
		{"http://localhost:8080", false},
	}

	for _, tt := range tests {
		if got := checker.check(tt.origin); got != tt.want {
			t.Errorf("check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginCheckerAllowAll(t *testing.T) {
	for _, origins := range [][]string{nil, {"*"}} {
		checker := newOriginChecker(origins)
		if !checker.check("http://anything.example.org") {
			t.Errorf("origins %v must allow everything", origins)
		}
	}
}

func TestHubDeliversToClient(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{hub: hub, send: make(chan []byte, clientSendBufferSize)}
	hub.register <- client

	trade := &models.Trade{ID: 7, MarketID: "KXTEST", Side: models.SideYes, Status: models.TradeStatusWon}
	hub.BroadcastTradeClosed(trade)

	select {
	case raw := <-client.send:
		var msg TradeClosedMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		if msg.Type != MessageTypeTradeClosed {
			t.Errorf("type = %q, want %q", msg.Type, MessageTypeTradeClosed)
		}
		if msg.Data == nil || msg.Data.ID != 7 {
			t.Errorf("unexpected payload: %+v", msg.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	hub.unregister <- client
}

func TestHubBroadcastNonBlocking(t *testing.T) {
	// Run не запущен: канал заполнится и Broadcast должен отбрасывать,
	// а не блокировать отправителя
	hub := newTestHub()

	result := &models.TradeResult{MarketID: "KXTEST", Success: true}
	for i := 0; i < 500; i++ {
		hub.BroadcastTradeExecuted(result)
	}

	if hub.DroppedMessages() == 0 {
		t.Error("expected dropped messages with no running hub")
	}
}

func TestHubStop(t *testing.T) {
	hub := newTestHub()

	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	hub.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Run did not exit after Stop")
	}
}

func TestHubConcurrentOperations(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	var wg sync.WaitGroup
	const goroutines = 10
	const operations = 200

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				hub.BroadcastCycleComplete(&service.CycleResult{Candidates: id, Executed: j})
			}
		}(i)
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				_ = hub.ClientCount()
			}
		}()
	}

	wg.Wait()
}

func BenchmarkHubBroadcast(b *testing.B) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	result := &models.TradeResult{
		MarketID:  "KXTEST",
		Success:   true,
		Side:      models.SideYes,
		Price:     0.95,
		Contracts: 52.6315,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.BroadcastTradeExecuted(result)
	}
}

func BenchmarkClientPool(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client := clientPool.Get().(*Client)
		clientPool.Put(client)
	}
}
