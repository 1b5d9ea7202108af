package handlers

import (
	"net/http"
	"time"

	"kalshibot/internal/service"
)

// CronHandler обрабатывает запросы планировщика торговых джобов.
//
// Endpoints (все POST, защищены bearer-токеном CRON_SECRET):
// - /api/cron/refresh-markets - обновить кэш снапшотов рынков
// - /api/cron/trade?forced=true - торговый цикл scan → allocate → execute
// - /api/cron/check-fills - сверка исполнения и резолюций открытых позиций
// - /api/cron/sync-orders - сверка отменённых на бирже ордеров
// - /api/cron/sync-outcomes - синхронизация исходов решений движка
// - /api/cron/cleanup - очистка устаревших снапшотов
// - /api/cron/monthly-analysis - месячный отчёт за предыдущий месяц
//
// Каждый endpoint возвращает JSON-итог прогона. Джобы идемпотентны:
// пересекающиеся запуски планировщика безопасны.
type CronHandler struct {
	markets   service.MarketServiceInterface
	trading   service.TradingServiceInterface
	reconcile service.ReconcileServiceInterface
	analysis  service.AnalysisServiceInterface
}

// NewCronHandler создает новый CronHandler с внедрением зависимостей.
func NewCronHandler(
	markets service.MarketServiceInterface,
	trading service.TradingServiceInterface,
	reconcile service.ReconcileServiceInterface,
	analysis service.AnalysisServiceInterface,
) *CronHandler {
	return &CronHandler{
		markets:   markets,
		trading:   trading,
		reconcile: reconcile,
		analysis:  analysis,
	}
}

// RefreshMarkets обновляет кэш снапшотов рынков.
//
// POST /api/cron/refresh-markets
//
// Response 200 OK:
//
//	{"pages": 3, "fetched": 540, "upserted": 538, "skipped": 2}
func (h *CronHandler) RefreshMarkets(w http.ResponseWriter, r *http.Request) {
	summary, err := h.markets.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "market refresh failed", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Trade запускает торговый цикл.
//
// POST /api/cron/trade
// POST /api/cron/trade?forced=true - форсированный режим: риск-лимиты
// числа позиций игнорируются, исполняется первая успешная позиция
//
// Response 200 OK: итог цикла (кандидаты, план, результаты исполнения).
// Остановка риск-шлюзом не считается ошибкой: цикл возвращает 200
// с заполненным полем halted.
func (h *CronHandler) Trade(w http.ResponseWriter, r *http.Request) {
	forced := r.URL.Query().Get("forced") == "true"

	result, err := h.trading.RunCycle(r.Context(), forced)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "trading cycle failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CheckFills сверяет открытые позиции с биржей.
//
// POST /api/cron/check-fills
//
// Response 200 OK:
//
//	{"checked": 4, "won": 1, "lost": 1, "filled": 1, "cancelled": 0, "skipped": 1}
func (h *CronHandler) CheckFills(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reconcile.CheckFills(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fill check failed", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SyncOrders сверяет отменённые на бирже ордера с открытыми позициями.
//
// POST /api/cron/sync-orders
func (h *CronHandler) SyncOrders(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reconcile.SyncOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "order sync failed", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SyncOutcomes записывает исходы разрешённых рынков в решения движка.
//
// POST /api/cron/sync-outcomes
func (h *CronHandler) SyncOutcomes(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reconcile.SyncOutcomes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "outcome sync failed", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Cleanup удаляет устаревшие разрешённые снапшоты.
//
// POST /api/cron/cleanup
func (h *CronHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reconcile.Cleanup(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cleanup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// MonthlyAnalysis строит отчёт за предыдущий календарный месяц.
//
// POST /api/cron/monthly-analysis
func (h *CronHandler) MonthlyAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.analysis.RunMonthly(time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "monthly analysis failed", err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}
