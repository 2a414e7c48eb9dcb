package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/poligrain/inventory-reservation/internal/model"
	"github.com/poligrain/inventory-reservation/internal/queue"
	"github.com/poligrain/inventory-reservation/internal/repository"
)

// memStore is an in-memory Store with the same conditional-write
// semantics as the MySQL implementation: every mutating call checks its
// conditions against current state under one lock and either applies
// everything or returns repository.ErrConflict having applied nothing.
type memStore struct {
	mu           sync.Mutex
	products     map[string]*model.Product
	reservations map[string]*model.Reservation

	// beforeCreate, when set, runs at the start of CreateReservations
	// with the lock held.  Tests use it to mutate stock between a
	// caller's availability pre-check and the commit, simulating a
	// concurrent writer winning the race.
	beforeCreate func(s *memStore)
}

func newMemStore() *memStore {
	return &memStore{
		products:     make(map[string]*model.Product),
		reservations: make(map[string]*model.Reservation),
	}
}

func (s *memStore) addProduct(id string, total, reserved int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = &model.Product{
		ID:               id,
		Name:             "product " + id,
		TotalQuantity:    total,
		ReservedQuantity: reserved,
		IsActive:         active,
	}
}

func (s *memStore) productReserved(id string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].ReservedQuantity
}

func (s *memStore) productTotal(id string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].TotalQuantity
}

func (s *memStore) reservationStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reservations[id].Status
}

func (s *memStore) Product(_ context.Context, id string) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) Reservation(_ context.Context, id string) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) ReservationsByUser(_ context.Context, userID string) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) ActiveReservationsByUser(_ context.Context, userID string) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.UserID == userID && r.Status == model.StatusActive {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) ExpiredActiveReservations(_ context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.Status == model.StatusActive && !now.Before(r.ExpiresAt) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CountActiveReservations(_ context.Context, productID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.reservations {
		if r.ProductID == productID && r.Status == model.StatusActive && now.Before(r.ExpiresAt) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CreateReservations(_ context.Context, reservations []*model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beforeCreate != nil {
		s.beforeCreate(s)
	}
	// Validate every condition before touching anything.
	for _, res := range reservations {
		if _, exists := s.reservations[res.ID]; exists {
			return repository.ErrConflict
		}
		p, ok := s.products[res.ProductID]
		if !ok || !p.IsActive || p.ReservedQuantity+res.Quantity > p.TotalQuantity {
			return repository.ErrConflict
		}
	}
	for _, res := range reservations {
		cp := *res
		s.reservations[res.ID] = &cp
		s.products[res.ProductID].ReservedQuantity += res.Quantity
	}
	return nil
}

func (s *memStore) ConfirmReservation(_ context.Context, res *model.Reservation, orderID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.reservations[res.ID]
	if !ok || stored.Status != model.StatusActive {
		return repository.ErrConflict
	}
	p := s.products[stored.ProductID]
	if p == nil || p.TotalQuantity < stored.Quantity || p.ReservedQuantity < stored.Quantity {
		return repository.ErrConflict
	}
	p.TotalQuantity -= stored.Quantity
	p.ReservedQuantity -= stored.Quantity
	stored.Status = model.StatusConfirmed
	stored.OrderID = &orderID
	confirmedAt := now
	stored.ConfirmedAt = &confirmedAt
	res.Status = stored.Status
	res.OrderID = stored.OrderID
	res.ConfirmedAt = stored.ConfirmedAt
	return nil
}

func (s *memStore) ExtendReservation(_ context.Context, res *model.Reservation, additionalMinutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.reservations[res.ID]
	if !ok || stored.Status != model.StatusActive {
		return repository.ErrConflict
	}
	stored.ExpiresAt = stored.ExpiresAt.Add(time.Duration(additionalMinutes) * time.Minute)
	res.ExpiresAt = stored.ExpiresAt
	return nil
}

func (s *memStore) CancelReservation(_ context.Context, res *model.Reservation, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.resolveLocked(res.ID, model.StatusCancelled, now) {
		return repository.ErrConflict
	}
	stored := s.reservations[res.ID]
	res.Status = stored.Status
	res.CancelledAt = stored.CancelledAt
	return nil
}

func (s *memStore) CancelReservations(_ context.Context, batch []model.Reservation, now time.Time) ([]model.Reservation, error) {
	return s.resolveBatch(batch, model.StatusCancelled, now), nil
}

func (s *memStore) ExpireReservations(_ context.Context, batch []model.Reservation, now time.Time) ([]model.Reservation, error) {
	return s.resolveBatch(batch, model.StatusExpired, now), nil
}

func (s *memStore) DecrementStock(_ context.Context, productID string, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok || !p.IsActive || p.TotalQuantity-p.ReservedQuantity < quantity {
		return repository.ErrConflict
	}
	p.TotalQuantity -= quantity
	return nil
}

func (s *memStore) resolveBatch(batch []model.Reservation, status string, now time.Time) []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var resolved []model.Reservation
	for _, item := range batch {
		if s.resolveLocked(item.ID, status, now) {
			resolved = append(resolved, *s.reservations[item.ID])
		}
	}
	return resolved
}

// resolveLocked flips an active reservation to the given terminal
// status and returns its quantity to the ledger.  It reports false when
// the reservation is missing or already resolved.
func (s *memStore) resolveLocked(id, status string, now time.Time) bool {
	stored, ok := s.reservations[id]
	if !ok || stored.Status != model.StatusActive {
		return false
	}
	p := s.products[stored.ProductID]
	if p != nil && p.ReservedQuantity >= stored.Quantity {
		p.ReservedQuantity -= stored.Quantity
	}
	stored.Status = status
	cancelledAt := now
	stored.CancelledAt = &cancelledAt
	return true
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
}

func (p *capturePublisher) PublishReservationEvent(_ context.Context, event queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) byType(event string) []queue.ReservationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []queue.ReservationEvent
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
