package handlers

import (
	"net/http"
	"strconv"

	"kalshibot/internal/models"
	"kalshibot/internal/service"
)

// DashboardHandler обрабатывает read-only запросы внешнего дашборда.
//
// Endpoints:
// - GET /api/v1/dashboard - сводка: банкролл, кэш, открытые позиции, агрегаты
// - GET /api/v1/decisions?limit=N - последние решения движка аллокации
type DashboardHandler struct {
	dashboard service.DashboardServiceInterface
}

// NewDashboardHandler создает новый DashboardHandler с внедрением зависимостей.
func NewDashboardHandler(dashboard service.DashboardServiceInterface) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// GetDashboard возвращает сводку состояния бота.
//
// GET /api/v1/dashboard
//
// Response 200 OK:
//
//	{
//	  "bankroll": 1234.56,
//	  "bankroll_source": "live",
//	  "cash": 987.65,
//	  "open_positions": [...],
//	  "total_trades": 42,
//	  "wins": 30,
//	  "losses": 12,
//	  "win_rate": 71.4,
//	  "total_pnl": 156.20,
//	  "generated_at": "2026-08-31T12:00:00Z"
//	}
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetDecisions возвращает последние решения движка аллокации.
//
// GET /api/v1/decisions?limit=N
//
// limit по умолчанию 50, максимум 200. Невалидное значение - 400.
func (h *DashboardHandler) GetDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit parameter", err)
			return
		}
		limit = parsed
	}

	decisions, err := h.dashboard.GetDecisions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load decisions", err)
		return
	}

	// Пустой список сериализуется как [], а не null
	if decisions == nil {
		decisions = []*models.AIDecision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}
