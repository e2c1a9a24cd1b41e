package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ordertrack/ordertrack/internal/domain"
	"github.com/ordertrack/ordertrack/internal/kvstore"
	"github.com/ordertrack/ordertrack/internal/tracker"
)

func newTestHandler(t *testing.T) *http.ServeMux {
	t.Helper()

	kv := kvstore.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := tracker.NewStore(kv, logger)

	handler, err := NewHandler(store, kv, nil, logger)
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", handler.HandleStartSession)
	mux.HandleFunc("DELETE /session", handler.HandleEndSession)
	mux.HandleFunc("POST /orders", handler.HandleCreate)
	mux.HandleFunc("GET /orders", handler.HandleList)
	mux.HandleFunc("GET /orders/summary", handler.HandleSummary)
	mux.HandleFunc("GET /orders/{id}", handler.HandleGet)
	mux.HandleFunc("POST /orders/{id}/pick", handler.HandlePick)
	mux.HandleFunc("POST /orders/{id}/expire", handler.HandleExpire)
	mux.HandleFunc("DELETE /orders/{id}", handler.HandleDelete)
	mux.HandleFunc("DELETE /orders", handler.HandleClearAll)
	mux.HandleFunc("POST /orders/reload", handler.HandleReload)

	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Session(t *testing.T) {
	t.Run("starts a session and reports the loaded count", func(t *testing.T) {
		mux := newTestHandler(t)

		rec := do(mux, http.MethodPost, "/session", `{"phone":"+1555"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["user_key"] != "+1555" {
			t.Errorf("expected user_key '+1555', got %v", resp["user_key"])
		}
		if resp["count"] != float64(0) {
			t.Errorf("expected count 0, got %v", resp["count"])
		}
	})

	t.Run("rejects a missing phone", func(t *testing.T) {
		mux := newTestHandler(t)

		rec := do(mux, http.MethodPost, "/session", `{"name":"Sam"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("ending the session keeps persisted orders", func(t *testing.T) {
		mux := newTestHandler(t)

		do(mux, http.MethodPost, "/session", `{"phone":"+1555"}`)
		do(mux, http.MethodPost, "/orders", `{"price": 4}`)

		rec := do(mux, http.MethodDelete, "/session", "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", rec.Code)
		}

		rec = do(mux, http.MethodPost, "/session", `{"phone":"+1555"}`)
		var resp map[string]any
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp["count"] != float64(1) {
			t.Errorf("expected count 1 after rebinding, got %v", resp["count"])
		}
	})
}

func TestHandler_CreateAndGet(t *testing.T) {
	mux := newTestHandler(t)
	do(mux, http.MethodPost, "/session", `{"phone":"+1555"}`)

	rec := do(mux, http.MethodPost, "/orders", `{"price": 12.5, "items": [{"name":"espresso","quantity":2}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created domain.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected order ID to be set")
	}
	if created.Status != domain.OrderStatusPending {
		t.Errorf("expected status pending, got %s", created.Status)
	}
	if created.Price != 12.5 {
		t.Errorf("expected price 12.5, got %v", created.Price)
	}

	rec = do(mux, http.MethodGet, "/orders/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = do(mux, http.MethodGet, "/orders/absent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	rec = do(mux, http.MethodPost, "/orders", `{"price": -1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for negative price, got %d", rec.Code)
	}
}

func TestHandler_CreateDuplicateID(t *testing.T) {
	mux := newTestHandler(t)
	do(mux, http.MethodPost, "/session", `{"phone":"+1555"}`)

	rec := do(mux, http.MethodPost, "/orders", `{"id": "ord-1", "price": 5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(mux, http.MethodPost, "/orders", `{"id": "ord-1", "price": 6}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for duplicate id, got %d", rec.Code)
	}

	rec = do(mux, http.MethodGet, "/orders", "")
	var all []domain.Order
	_ = json.Unmarshal(rec.Body.Bytes(), &all)
	if len(all) != 1 {
		t.Errorf("expected 1 order after duplicate create, got %d", len(all))
	}
}

func TestHandler_Transitions(t *testing.T) {
	mux := newTestHandler(t)
	do(mux, http.MethodPost, "/session", `{"phone":"+1555"}`)

	rec := do(mux, http.MethodPost, "/orders", `{"price": 5}`)
	var order domain.Order
	_ = json.Unmarshal(rec.Body.Bytes(), &order)

	rec = do(mux, http.MethodPost, "/orders/"+order.ID+"/pick", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var picked domain.Order
	_ = json.Unmarshal(rec.Body.Bytes(), &picked)
	if picked.Status != domain.OrderStatusPicked {
		t.Errorf("expected status picked, got %s", picked.Status)
	}

	rec = do(mux, http.MethodPost, "/orders/"+order.ID+"/expire", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status 409 for non-pending order, got %d", rec.Code)
	}

	rec = do(mux, http.MethodPost, "/orders/absent/pick", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestHandler_ListByStatus(t *testing.T) {
	mux := newTestHandler(t)
	do(mux, http.MethodPost, "/session", `{"phone":"+1555"}`)

	rec := do(mux, http.MethodPost, "/orders", `{"price": 5}`)
	var order domain.Order
	_ = json.Unmarshal(rec.Body.Bytes(), &order)
	do(mux, http.MethodPost, "/orders", `{"price": 6}`)
	do(mux, http.MethodPost, "/orders/"+order.ID+"/pick", "")

	rec = do(mux, http.MethodGet, "/orders?status=picked", "")
	var picked []domain.Order
	_ = json.Unmarshal(rec.Body.Bytes(), &picked)
	if len(picked) != 1 {
		t.Fatalf("expected 1 picked order, got %d", len(picked))
	}

	rec = do(mux, http.MethodGet, "/orders", "")
	var all []domain.Order
	_ = json.Unmarshal(rec.Body.Bytes(), &all)
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}
}

func TestHandler_DeleteAndClear(t *testing.T) {
	mux := newTestHandler(t)
	do(mux, http.MethodPost, "/session", `{"phone":"+1555"}`)

	rec := do(mux, http.MethodPost, "/orders", `{"price": 5}`)
	var order domain.Order
	_ = json.Unmarshal(rec.Body.Bytes(), &order)

	rec = do(mux, http.MethodDelete, "/orders/"+order.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	rec = do(mux, http.MethodDelete, "/orders/"+order.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 on double delete, got %d", rec.Code)
	}

	do(mux, http.MethodPost, "/orders", `{"price": 1}`)
	rec = do(mux, http.MethodDelete, "/orders", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	rec = do(mux, http.MethodGet, "/orders/summary", "")
	var summary map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &summary)
	if summary["count"] != float64(0) {
		t.Errorf("expected count 0 after clear, got %v", summary["count"])
	}
}

func TestHandler_Summary(t *testing.T) {
	mux := newTestHandler(t)
	do(mux, http.MethodPost, "/session", `{"phone":"+1555"}`)
	do(mux, http.MethodPost, "/orders", `{"price": 12.5}`)
	do(mux, http.MethodPost, "/orders", `{"price": 7.5}`)

	rec := do(mux, http.MethodGet, "/orders/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var summary map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if summary["count"] != float64(2) {
		t.Errorf("expected count 2, got %v", summary["count"])
	}
	if summary["total_revenue"] != float64(20) {
		t.Errorf("expected total_revenue 20, got %v", summary["total_revenue"])
	}
}

func TestHandler_Reload(t *testing.T) {
	mux := newTestHandler(t)
	do(mux, http.MethodPost, "/session", `{"phone":"+1555"}`)
	do(mux, http.MethodPost, "/orders", `{"price": 5}`)

	rec := do(mux, http.MethodPost, "/orders/reload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["count"] != float64(1) {
		t.Errorf("expected count 1 after reload, got %v", resp["count"])
	}
}
