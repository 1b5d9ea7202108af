package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"kalshibot/internal/service"
)

func TestCancelAllOrdersHandler(t *testing.T) {
	mock := &MockReconcileService{
		cancelAll: &service.CancelOrdersSummary{Checked: 3, Cancelled: 2, Failed: 1},
	}
	h := NewAdminHandler(mock)

	rec := httptest.NewRecorder()
	h.CancelAllOrders(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/cancel-all", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got service.CancelOrdersSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.Checked != 3 || got.Cancelled != 2 || got.Failed != 1 {
		t.Errorf("unexpected summary: %+v", got)
	}
}

func TestCancelAllOrdersHandlerError(t *testing.T) {
	mock := &MockReconcileService{cancelErr: errors.New("exchange down")}
	h := NewAdminHandler(mock)

	rec := httptest.NewRecorder()
	h.CancelAllOrders(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/cancel-all", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
