package handler

import (
	"context"
	"net/http/httptest"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/poligrain/inventory-reservation/internal/model"
	"github.com/poligrain/inventory-reservation/internal/repository"
	"github.com/poligrain/inventory-reservation/internal/service"
)

// fakeStore is a map-backed service.Store for handler tests.  It
// applies the same conditional-write rules as the MySQL store; handler
// tests only exercise the happy and error paths the HTTP layer must
// translate, so no locking is needed.
type fakeStore struct {
	products     map[string]*model.Product
	reservations map[string]*model.Reservation
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:     make(map[string]*model.Product),
		reservations: make(map[string]*model.Reservation),
	}
}

func (s *fakeStore) addProduct(id string, total, reserved int64) {
	s.products[id] = &model.Product{ID: id, Name: id, TotalQuantity: total, ReservedQuantity: reserved, IsActive: true}
}

// addLapsedReservation seeds an active hold whose expiry has already
// passed and books it against the product ledger.
func (s *fakeStore) addLapsedReservation(id, productID, userID string, quantity int64) {
	s.reservations[id] = &model.Reservation{
		ID:        id,
		ProductID: productID,
		UserID:    userID,
		Quantity:  quantity,
		Status:    model.StatusActive,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		ExpiresAt: time.Now().UTC().Add(-30 * time.Minute),
	}
	s.products[productID].ReservedQuantity += quantity
}

func (s *fakeStore) Product(_ context.Context, id string) (*model.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) Reservation(_ context.Context, id string) (*model.Reservation, error) {
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) ReservationsByUser(_ context.Context, userID string) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) ActiveReservationsByUser(_ context.Context, userID string) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.UserID == userID && r.Status == model.StatusActive {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) ExpiredActiveReservations(_ context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.Status == model.StatusActive && !now.Before(r.ExpiresAt) {
			out = append(out, *r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) CountActiveReservations(_ context.Context, productID string, now time.Time) (int, error) {
	count := 0
	for _, r := range s.reservations {
		if r.ProductID == productID && r.Status == model.StatusActive && now.Before(r.ExpiresAt) {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) CreateReservations(_ context.Context, reservations []*model.Reservation) error {
	for _, res := range reservations {
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

func (s *fakeStore) ConfirmReservation(_ context.Context, res *model.Reservation, orderID string, now time.Time) error {
	stored, ok := s.reservations[res.ID]
	if !ok || stored.Status != model.StatusActive {
		return repository.ErrConflict
	}
	p := s.products[stored.ProductID]
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

func (s *fakeStore) ExtendReservation(_ context.Context, res *model.Reservation, additionalMinutes int) error {
	stored, ok := s.reservations[res.ID]
	if !ok || stored.Status != model.StatusActive {
		return repository.ErrConflict
	}
	stored.ExpiresAt = stored.ExpiresAt.Add(time.Duration(additionalMinutes) * time.Minute)
	res.ExpiresAt = stored.ExpiresAt
	return nil
}

func (s *fakeStore) CancelReservation(_ context.Context, res *model.Reservation, now time.Time) error {
	stored, ok := s.reservations[res.ID]
	if !ok || stored.Status != model.StatusActive {
		return repository.ErrConflict
	}
	s.products[stored.ProductID].ReservedQuantity -= stored.Quantity
	stored.Status = model.StatusCancelled
	cancelledAt := now
	stored.CancelledAt = &cancelledAt
	res.Status = stored.Status
	res.CancelledAt = stored.CancelledAt
	return nil
}

func (s *fakeStore) CancelReservations(ctx context.Context, batch []model.Reservation, now time.Time) ([]model.Reservation, error) {
	var resolved []model.Reservation
	for _, item := range batch {
		cp := item
		if s.CancelReservation(ctx, &cp, now) == nil {
			resolved = append(resolved, cp)
		}
	}
	return resolved, nil
}

func (s *fakeStore) ExpireReservations(_ context.Context, batch []model.Reservation, now time.Time) ([]model.Reservation, error) {
	var resolved []model.Reservation
	for _, item := range batch {
		stored, ok := s.reservations[item.ID]
		if !ok || stored.Status != model.StatusActive {
			continue
		}
		s.products[stored.ProductID].ReservedQuantity -= stored.Quantity
		stored.Status = model.StatusExpired
		cancelledAt := now
		stored.CancelledAt = &cancelledAt
		resolved = append(resolved, *stored)
	}
	return resolved, nil
}

func (s *fakeStore) DecrementStock(_ context.Context, productID string, quantity int64) error {
	p, ok := s.products[productID]
	if !ok || !p.IsActive || p.TotalQuantity-p.ReservedQuantity < quantity {
		return repository.ErrConflict
	}
	p.TotalQuantity -= quantity
	return nil
}

// newTestContext builds an echo context carrying an authenticated user,
// mirroring what the JWT middleware does for real requests.
func newTestContext(method, target, body, userID, role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != "" {
		c.Set("user_id", userID)
	}
	if role != "" {
		c.Set("role", role)
	}
	return c, rec
}

func newTestHandlerService(store *fakeStore) *service.ReservationService {
	return service.NewReservationService(store, nil, 15*time.Minute)
}
