package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ordertrack/ordertrack/internal/domain"
)

// StatusHandler turns order.status events into customer SMS notifications.
type StatusHandler struct {
	notifyServiceURL string
	httpClient       *http.Client
	logger           *slog.Logger
}

func NewStatusHandler(notifyServiceURL string, client *http.Client, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		notifyServiceURL: notifyServiceURL,
		httpClient:       client,
		logger:           logger,
	}
}

func (h *StatusHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderStatusEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order status event: %w", err)
	}

	h.logger.Info("processing order status event", "type", event.Type, "order_id", event.OrderID, "user_key", event.UserKey)

	if event.UserKey == "" {
		// order created outside a session; nobody to notify
		h.logger.Warn("status event has no user key, skipping notification", "order_id", event.OrderID)
		return nil
	}

	message, ok := messageFor(event)
	if !ok {
		h.logger.Warn("unknown status event type", "type", event.Type, "order_id", event.OrderID)
		return nil
	}

	if err := h.sendSMS(ctx, event.UserKey, message); err != nil {
		h.logger.Error("failed to send notification", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send notification: %w", err)
	}

	h.logger.Info("notification sent", "order_id", event.OrderID, "type", event.Type)
	return nil
}

func messageFor(event domain.OrderStatusEvent) (string, bool) {
	switch event.Type {
	case domain.EventTypeCreated:
		return fmt.Sprintf("Order %s placed, we'll text you when it's ready for pickup.", event.OrderID), true
	case domain.EventTypePicked:
		return fmt.Sprintf("Order %s picked up, enjoy!", event.OrderID), true
	case domain.EventTypeExpired:
		return fmt.Sprintf("Order %s expired and was returned to stock.", event.OrderID), true
	default:
		return "", false
	}
}

func (h *StatusHandler) sendSMS(ctx context.Context, phone, message string) error {
	body, err := json.Marshal(map[string]string{
		"phone":   phone,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.notifyServiceURL+"/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call notify service: %w", err)
	}
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify service returned status %d", resp.StatusCode)
	}

	return nil
}
