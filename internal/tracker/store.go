// Package tracker owns the per-user order collection and its bridge to
// durable key-value storage. Every mutation re-persists the active user's
// full collection synchronously; persistence problems are logged and
// swallowed so callers never see storage errors.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/ordertrack/ordertrack/internal/domain"
	"github.com/ordertrack/ordertrack/internal/kvstore"
)

const (
	// orderKeyPrefix scopes each user's persisted collection; two user keys
	// never share a storage slot.
	orderKeyPrefix = "orders:"

	// SessionKey holds the active session's user record. The store only
	// reads it; the auth surface owns writes.
	SessionKey = "session:active"
)

// loadState records how a load from storage resolved, so the
// degrade-to-empty policy stays auditable.
type loadState int

const (
	loadOK loadState = iota
	loadNoSession
	loadMissing
	loadCorrupt
	loadUnavailable
)

// Store is the authoritative in-memory order collection for the currently
// active user. One instance is constructed at the composition root and
// shared; the mutex serializes concurrent HTTP callers.
type Store struct {
	mu      sync.Mutex
	kv      kvstore.KV
	logger  *slog.Logger
	userKey string
	orders  []domain.Order
}

func NewStore(kv kvstore.KV, logger *slog.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// BindFromSession reads the session marker and binds to the user it names.
// A missing or unreadable marker leaves the store without a session.
func (s *Store) BindFromSession(ctx context.Context) {
	value, err := s.kv.Get(ctx, SessionKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Error("failed to read session marker", "error", err)
		}
		s.ClearSession()
		return
	}

	var user domain.User
	if err := json.Unmarshal(value, &user); err != nil || user.Phone == "" {
		s.logger.Warn("malformed session marker, starting without a session", "error", err)
		s.ClearSession()
		return
	}

	s.BindUser(ctx, user.Phone)
}

// BindUser discards the in-memory collection and loads the given user's
// persisted one. Missing or corrupt data degrades to an empty collection.
func (s *Store) BindUser(ctx context.Context, userKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userKey = userKey
	s.orders, _ = s.load(ctx)
}

// ClearSession unbinds the active user and empties the in-memory collection.
// Persisted data is left untouched.
func (s *Store) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userKey = ""
	s.orders = nil
}

// ActiveUser returns the bound user key, empty when no session is active.
func (s *Store) ActiveUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.userKey
}

// Create builds a pending order from data, appends it and persists. A
// caller-supplied ID that is already in the collection is rejected with
// ReasonDuplicateID. With no active session the order is still kept in memory
// (it lives until the next BindUser or ClearSession) and the outcome flags
// ReasonNoSession.
func (s *Store) Create(ctx context.Context, data domain.OrderData) (domain.Order, Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data.ID != "" && s.indexOf(data.ID) >= 0 {
		return domain.Order{}, failed(ReasonDuplicateID)
	}

	order := domain.NewOrder(data)
	s.orders = append(s.orders, order)

	if s.userKey == "" {
		s.logger.Warn("order created with no active session, skipping persist", "order_id", order.ID)
		return cloneOrder(order), Outcome{OK: true, Reason: ReasonNoSession}
	}

	s.persist(ctx)
	return cloneOrder(order), succeeded()
}

// FindByID returns a snapshot of the matching order.
func (s *Store) FindByID(id string) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.Order{}, false
	}
	return cloneOrder(s.orders[i]), true
}

// ListAll returns a defensive copy of the collection in insertion order.
func (s *Store) ListAll() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		out = append(out, cloneOrder(order))
	}
	return out
}

// ListByStatus returns the orders with the given status, relative order
// preserved.
func (s *Store) ListByStatus(status domain.OrderStatus) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, 0)
	for _, order := range s.orders {
		if order.Status == status {
			out = append(out, cloneOrder(order))
		}
	}
	return out
}

// MarkPicked transitions the order to picked and persists, iff it exists and
// is still pending.
func (s *Store) MarkPicked(ctx context.Context, id string) Outcome {
	return s.transition(ctx, id, (*domain.Order).MarkPicked)
}

// MarkExpired transitions the order to expired under the same rules as
// MarkPicked.
func (s *Store) MarkExpired(ctx context.Context, id string) Outcome {
	return s.transition(ctx, id, (*domain.Order).MarkExpired)
}

func (s *Store) transition(ctx context.Context, id string, mark func(*domain.Order)) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return failed(ReasonNotFound)
	}
	if !s.orders[i].IsPending() {
		return failed(ReasonNotPending)
	}

	mark(&s.orders[i])
	s.persist(ctx)
	return succeeded()
}

// Delete removes the order and persists.
func (s *Store) Delete(ctx context.Context, id string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return failed(ReasonNotFound)
	}

	s.orders = append(s.orders[:i], s.orders[i+1:]...)
	s.persist(ctx)
	return succeeded()
}

// Reload re-reads the active user's persisted collection, overwriting the
// in-memory copy. With no session it just empties the collection.
func (s *Store) Reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders, _ = s.load(ctx)
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.orders)
}

// TotalRevenue sums Price over the in-memory collection.
func (s *Store) TotalRevenue() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, order := range s.orders {
		total += order.Price
	}
	return total
}

func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.indexOf(id) >= 0
}

// ClearAll empties the in-memory collection and deletes the active user's
// persisted entry. Without a session only the in-memory part happens.
func (s *Store) ClearAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = nil
	if s.userKey == "" {
		return
	}
	if err := s.kv.Delete(ctx, orderKeyPrefix+s.userKey); err != nil {
		s.logger.Error("failed to delete persisted orders", "error", err, "user_key", s.userKey)
	}
}

// indexOf must be called with the mutex held.
func (s *Store) indexOf(id string) int {
	for i := range s.orders {
		if s.orders[i].ID == id {
			return i
		}
	}
	return -1
}

// load reads the active user's collection from storage. All failure modes
// degrade to an empty collection; the returned loadState says which one hit.
// Must be called with the mutex held.
func (s *Store) load(ctx context.Context) ([]domain.Order, loadState) {
	if s.userKey == "" {
		return nil, loadNoSession
	}

	value, err := s.kv.Get(ctx, orderKeyPrefix+s.userKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, loadMissing
	}
	if err != nil {
		s.logger.Error("failed to read persisted orders", "error", err, "user_key", s.userKey)
		return nil, loadUnavailable
	}

	var orders []domain.Order
	if err := json.Unmarshal(value, &orders); err != nil {
		s.logger.Warn("corrupt persisted orders, starting empty", "error", err, "user_key", s.userKey)
		return nil, loadCorrupt
	}

	return orders, loadOK
}

// persist writes the full collection for the active user. Write failures are
// logged and swallowed: the in-memory effect stands and memory may diverge
// from storage until the next successful write. Must be called with the
// mutex held.
func (s *Store) persist(ctx context.Context) {
	if s.userKey == "" {
		return
	}

	value, err := json.Marshal(s.orders)
	if err != nil {
		s.logger.Error("failed to encode orders", "error", err, "user_key", s.userKey)
		return
	}

	if err := s.kv.Set(ctx, orderKeyPrefix+s.userKey, value); err != nil {
		s.logger.Error("failed to persist orders", "error", err, "user_key", s.userKey)
	}
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = slices.Clone(o.Items)
	return o
}
