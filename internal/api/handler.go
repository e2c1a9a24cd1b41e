// Package api exposes the order tracker over HTTP. All domain failures come
// back from the store as outcomes, so handlers translate reasons to status
// codes and never deal with thrown errors.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ordertrack/ordertrack/internal/domain"
	"github.com/ordertrack/ordertrack/internal/kvstore"
	"github.com/ordertrack/ordertrack/internal/messaging"
	"github.com/ordertrack/ordertrack/internal/tracker"
)

var meter = otel.Meter("api")

type Handler struct {
	store     *tracker.Store
	kv        kvstore.KV
	producer  *messaging.Producer
	logger    *slog.Logger
	opCounter metric.Int64Counter
}

// NewHandler builds the HTTP handler set. producer may be nil when eventing
// is disabled.
func NewHandler(store *tracker.Store, kv kvstore.KV, producer *messaging.Producer, logger *slog.Logger) (*Handler, error) {
	opCounter, err := meter.Int64Counter("ordertrack.operations",
		metric.WithDescription("Order store operations by name and result"),
	)
	if err != nil {
		return nil, err
	}

	return &Handler{
		store:     store,
		kv:        kv,
		producer:  producer,
		logger:    logger,
		opCounter: opCounter,
	}, nil
}

type startSessionRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}

// HandleStartSession records the session user and binds the store to their
// persisted orders.
func (h *Handler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
		h.writeError(w, http.StatusBadRequest, "phone is required")
		return
	}

	user := domain.User{Phone: req.Phone, Name: req.Name}
	marker, err := json.Marshal(user)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := h.kv.Set(r.Context(), tracker.SessionKey, marker); err != nil {
		h.logger.Error("failed to write session marker", "error", err)
	}

	h.store.BindUser(r.Context(), req.Phone)
	h.count(r.Context(), "bind_user", true)

	h.logger.Info("session started", "user_key", req.Phone)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"user_key": req.Phone,
		"count":    h.store.Count(),
	})
}

// HandleEndSession unbinds the store and removes the session marker. The
// user's persisted orders stay put.
func (h *Handler) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	h.store.ClearSession()
	if err := h.kv.Delete(r.Context(), tracker.SessionKey); err != nil {
		h.logger.Error("failed to delete session marker", "error", err)
	}
	h.count(r.Context(), "clear_session", true)

	h.logger.Info("session ended")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var data domain.OrderData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if data.Price < 0 {
		h.writeError(w, http.StatusBadRequest, "price must be non-negative")
		return
	}

	order, outcome := h.store.Create(r.Context(), data)
	h.count(r.Context(), "create", outcome.OK)
	if outcome.Reason == tracker.ReasonDuplicateID {
		h.writeError(w, http.StatusConflict, "order id already exists")
		return
	}
	if outcome.Reason == tracker.ReasonNoSession {
		h.logger.Warn("order created without an active session", "order_id", order.ID)
	}

	h.publish(r.Context(), domain.EventTypeCreated, order)

	h.logger.Info("order created", "order_id", order.ID, "price", order.Price)
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var orders []domain.Order
	if status := r.URL.Query().Get("status"); status != "" {
		orders = h.store.ListByStatus(domain.OrderStatus(status))
	} else {
		orders = h.store.ListAll()
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	order, ok := h.store.FindByID(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandlePick(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "mark_picked", domain.EventTypePicked, h.store.MarkPicked)
}

func (h *Handler) HandleExpire(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "mark_expired", domain.EventTypeExpired, h.store.MarkExpired)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, op, eventType string, transition func(context.Context, string) tracker.Outcome) {
	id := r.PathValue("id")
	outcome := transition(r.Context(), id)
	h.count(r.Context(), op, outcome.OK)

	switch outcome.Reason {
	case tracker.ReasonNotFound:
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	case tracker.ReasonNotPending:
		h.writeError(w, http.StatusConflict, "order is not pending")
		return
	}

	order, _ := h.store.FindByID(id)
	h.publish(r.Context(), eventType, order)

	h.logger.Info("order status updated", "order_id", id, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	outcome := h.store.Delete(r.Context(), id)
	h.count(r.Context(), "delete", outcome.OK)

	if !outcome.OK {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order deleted", "order_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleClearAll(w http.ResponseWriter, r *http.Request) {
	h.store.ClearAll(r.Context())
	h.count(r.Context(), "clear_all", true)

	h.logger.Info("orders cleared", "user_key", h.store.ActiveUser())
	w.WriteHeader(http.StatusNoContent)
}

// HandleReload re-reads the persisted collection, for when storage changed
// out-of-band.
func (h *Handler) HandleReload(w http.ResponseWriter, r *http.Request) {
	h.store.Reload(r.Context())
	h.count(r.Context(), "reload", true)

	h.writeJSON(w, http.StatusOK, map[string]any{"count": h.store.Count()})
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":         h.store.Count(),
		"total_revenue": h.store.TotalRevenue(),
	})
}

func (h *Handler) publish(ctx context.Context, eventType string, order domain.Order) {
	if h.producer == nil {
		return
	}

	event := domain.OrderStatusEvent{
		Type:      eventType,
		OrderID:   order.ID,
		UserKey:   h.store.ActiveUser(),
		Status:    order.Status,
		Price:     order.Price,
		Timestamp: time.Now().UTC(),
	}
	if err := h.producer.PublishStatusEvent(ctx, event); err != nil {
		h.logger.Error("failed to publish status event", "error", err, "order_id", order.ID, "type", eventType)
	}
}

func (h *Handler) count(ctx context.Context, op string, ok bool) {
	h.opCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", op),
			attribute.Bool("ok", ok),
		),
	)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
