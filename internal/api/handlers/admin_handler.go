package handlers

import (
	"net/http"

	"kalshibot/internal/service"
)

// AdminHandler обрабатывает административные операции.
//
// Endpoints (защищены HTTP Basic Auth против bcrypt-хэша):
// - POST /api/v1/admin/orders/cancel-all - отменить все покоящиеся ордера
type AdminHandler struct {
	reconcile service.ReconcileServiceInterface
}

// NewAdminHandler создает новый AdminHandler с внедрением зависимостей.
func NewAdminHandler(reconcile service.ReconcileServiceInterface) *AdminHandler {
	return &AdminHandler{reconcile: reconcile}
}

// CancelAllOrders снимает все неисполненные заявки на бирже.
//
// POST /api/v1/admin/orders/cancel-all
//
// Response 200 OK:
//
//	{"checked": 3, "cancelled": 3, "failed": 0}
//
// Записи позиций в БД не трогаются: их закроет следующий прогон
// check-fills, увидев отменённые ордера.
func (h *AdminHandler) CancelAllOrders(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reconcile.CancelAllOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cancel-all failed", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
