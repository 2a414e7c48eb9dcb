package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/poligrain/inventory-reservation/internal/metrics"
	"github.com/poligrain/inventory-reservation/internal/model"
	"github.com/poligrain/inventory-reservation/internal/queue"
	"github.com/poligrain/inventory-reservation/internal/repository"
)

// RoleAdmin is the JWT role granting administrative capability over
// other users' reservations.
const RoleAdmin = "ADMIN"

// maxTransactOps caps how many conditional operations one storage
// transaction may carry.  Batch operations size themselves to it; with
// two operations per reservation (status transition plus ledger
// update) a batch holds at most maxTransactOps/2 reservations.
const maxTransactOps = 100

// Store is the storage handle the lifecycle manager writes through.
// Every method that mutates state is one atomic transaction whose
// conditional writes are evaluated against current committed values;
// repository.ErrConflict reports a failed condition.  The production
// implementation is repository.Store.
type Store interface {
	Product(ctx context.Context, id string) (*model.Product, error)
	Reservation(ctx context.Context, id string) (*model.Reservation, error)
	ReservationsByUser(ctx context.Context, userID string) ([]model.Reservation, error)
	ActiveReservationsByUser(ctx context.Context, userID string) ([]model.Reservation, error)
	ExpiredActiveReservations(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
	CountActiveReservations(ctx context.Context, productID string, now time.Time) (int, error)
	CreateReservations(ctx context.Context, reservations []*model.Reservation) error
	ConfirmReservation(ctx context.Context, res *model.Reservation, orderID string, now time.Time) error
	ExtendReservation(ctx context.Context, res *model.Reservation, additionalMinutes int) error
	CancelReservation(ctx context.Context, res *model.Reservation, now time.Time) error
	CancelReservations(ctx context.Context, batch []model.Reservation, now time.Time) ([]model.Reservation, error)
	ExpireReservations(ctx context.Context, batch []model.Reservation, now time.Time) ([]model.Reservation, error)
	DecrementStock(ctx context.Context, productID string, quantity int64) error
}

// EventPublisher sends reservation lifecycle events to the broker.
// Publish failures never fail the operation that produced the event.
type EventPublisher interface {
	PublishReservationEvent(ctx context.Context, event queue.ReservationEvent) error
}

// ReservationService is the reservation lifecycle manager: the only
// writer of the stock ledger and the reservation store.  It is
// constructed once at service start with an explicit store handle and
// shared by all request handlers, the sweeper and the order consumer.
//
// The availability checks it performs before building a transaction
// are advisory: between the check and the commit another caller may
// win the race, in which case the store reports a conflict and the
// caller is expected to re-derive fresh state rather than resubmit.
type ReservationService struct {
	store       Store
	events      EventPublisher
	defaultHold time.Duration
	now         func() time.Time
}

// NewReservationService constructs the lifecycle manager.  defaultHold
// is used when a create request does not specify a duration; zero
// falls back to 15 minutes.
func NewReservationService(store Store, events EventPublisher, defaultHold time.Duration) *ReservationService {
	if store == nil {
		panic("nil store passed to NewReservationService")
	}
	if defaultHold <= 0 {
		defaultHold = 15 * time.Minute
	}
	return &ReservationService{
		store:       store,
		events:      events,
		defaultHold: defaultHold,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput carries the parameters for one reservation request.
type CreateInput struct {
	ProductID       string
	Quantity        int64
	SessionID       string
	DurationMinutes int
	Metadata        map[string]any
}

// ItemResult reports the outcome for one product in a bulk create.
type ItemResult struct {
	Success     bool               `json:"success"`
	Reservation *model.Reservation `json:"reservation,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Create places a hold on product stock.  The availability pre-check
// reads fresh ledger state; the subsequent transaction inserts the
// reservation and increments reserved_quantity under the capacity
// condition.  A condition failure at commit time returns a Conflict:
// someone else won, and the caller should re-check availability before
// trying again.
func (s *ReservationService) Create(ctx context.Context, userID string, in CreateInput) (*model.Reservation, error) {
	if err := s.validateCreate(userID, in); err != nil {
		return nil, err
	}
	if _, err := s.checkAvailability(ctx, in.ProductID, in.Quantity); err != nil {
		return nil, err
	}

	res := s.buildReservation(userID, in)
	if err := s.store.CreateReservations(ctx, []*model.Reservation{res}); err != nil {
		return nil, s.storeErr("failed to create reservation", err)
	}

	metrics.ReservationsCreated.Inc()
	s.publish(ctx, queue.EventReservationCreated, res, "")
	return res, nil
}

// CreateBulk places holds on several products at once.  Pre-checks run
// per item; if any item fails its pre-check the whole batch is voided
// and every item comes back failed.  When all pre-checks pass the
// accumulated inserts and increments are submitted as one transaction,
// so a single condition failure at commit time likewise fails every
// item.  The returned map is keyed by product id.
func (s *ReservationService) CreateBulk(ctx context.Context, userID string, inputs []CreateInput) (map[string]ItemResult, error) {
	if userID == "" {
		return nil, NewValidation("user id is required")
	}
	if len(inputs) == 0 {
		return nil, NewValidation("reservations array is required")
	}
	if len(inputs) > maxTransactOps/2 {
		return nil, NewValidation("too many reservations in one batch")
	}

	results := make(map[string]ItemResult, len(inputs))
	pending := make([]*model.Reservation, 0, len(inputs))
	allPassed := true

	for _, in := range inputs {
		if err := s.validateCreate(userID, in); err != nil {
			results[in.ProductID] = ItemResult{Success: false, Error: err.Error()}
			allPassed = false
			continue
		}
		if _, err := s.checkAvailability(ctx, in.ProductID, in.Quantity); err != nil {
			results[in.ProductID] = ItemResult{Success: false, Error: errMessage(err)}
			allPassed = false
			continue
		}
		res := s.buildReservation(userID, in)
		pending = append(pending, res)
		results[in.ProductID] = ItemResult{Success: true, Reservation: res}
	}

	if !allPassed {
		// A single failing item voids the entire batch.
		markAllFailed(results, "reservation batch aborted")
		return results, nil
	}

	if err := s.store.CreateReservations(ctx, pending); err != nil {
		markAllFailed(results, "transaction failed")
		return results, nil
	}

	for _, res := range pending {
		metrics.ReservationsCreated.Inc()
		s.publish(ctx, queue.EventReservationCreated, res, "")
	}
	return results, nil
}

// Confirm converts an active, unexpired hold into a committed stock
// decrement and records the confirming order.  A failed transaction
// condition means a concurrent operation already resolved the
// reservation; the caller must re-fetch state, not retry blindly.
func (s *ReservationService) Confirm(ctx context.Context, userID, reservationID, orderID string) (*model.Reservation, error) {
	if reservationID == "" {
		return nil, NewValidation("reservation id is required")
	}
	if orderID == "" {
		return nil, NewValidation("order id is required")
	}
	res, err := s.ownedReservation(ctx, userID, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != model.StatusActive {
		return nil, NewConflict("reservation is not active")
	}
	now := s.now()
	if res.IsExpired(now) {
		return nil, NewConflict("reservation has expired")
	}
	if err := s.store.ConfirmReservation(ctx, res, orderID, now); err != nil {
		return nil, s.storeErr("failed to confirm reservation", err)
	}

	metrics.ReservationsConfirmed.Inc()
	s.publish(ctx, queue.EventReservationConfirmed, res, orderID)
	return res, nil
}

// Extend pushes an active reservation's expiry forward.  Quantities
// are untouched; the only race is against status transitions, which
// the store's condition resolves.
func (s *ReservationService) Extend(ctx context.Context, userID, reservationID string, additionalMinutes int) (*model.Reservation, error) {
	if reservationID == "" {
		return nil, NewValidation("reservation id is required")
	}
	if additionalMinutes <= 0 {
		return nil, NewValidation("valid additional minutes required")
	}
	res, err := s.ownedReservation(ctx, userID, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != model.StatusActive {
		return nil, NewConflict("reservation is not active")
	}
	if err := s.store.ExtendReservation(ctx, res, additionalMinutes); err != nil {
		return nil, s.storeErr("failed to extend reservation", err)
	}
	return res, nil
}

// Release cancels the caller's own hold and returns its quantity to
// the ledger.  Releasing an already-terminal reservation is an
// idempotent no-op success, including the case where the store reports
// a conflict because another operation resolved it first.
func (s *ReservationService) Release(ctx context.Context, userID, reservationID string) error {
	if reservationID == "" {
		return NewValidation("reservation id is required")
	}
	res, err := s.ownedReservation(ctx, userID, reservationID)
	if err != nil {
		return err
	}
	if res.IsTerminal() {
		return nil
	}
	if err := s.store.CancelReservation(ctx, res, s.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil // resolved concurrently; release is idempotent
		}
		return s.storeErr("failed to release reservation", err)
	}
	metrics.ReservationsReleased.Inc()
	s.publish(ctx, queue.EventReservationReleased, res, "")
	return nil
}

// ReleaseAll cancels every active reservation of the target user in
// bounded batches.  Callers may release their own holds; releasing
// another user's requires the administrative role.  When the target
// has no active reservations a NotFound is returned.
func (s *ReservationService) ReleaseAll(ctx context.Context, callerID, callerRole, targetUserID string) (int, error) {
	if targetUserID == "" {
		return 0, NewValidation("user id is required")
	}
	if callerID != targetUserID && callerRole != RoleAdmin {
		return 0, NewAuthorization("cannot release another user's reservations")
	}
	active, err := s.store.ActiveReservationsByUser(ctx, targetUserID)
	if err != nil {
		return 0, NewInternal("failed to load reservations", err)
	}
	if len(active) == 0 {
		return 0, NewNotFound("no reservations found for this user")
	}

	released := 0
	now := s.now()
	batchSize := maxTransactOps / 2
	for start := 0; start < len(active); start += batchSize {
		end := start + batchSize
		if end > len(active) {
			end = len(active)
		}
		cancelled, err := s.store.CancelReservations(ctx, active[start:end], now)
		if err != nil {
			return released, s.storeErr("failed to release reservations", err)
		}
		for i := range cancelled {
			metrics.ReservationsReleased.Inc()
			s.publish(ctx, queue.EventReservationReleased, &cancelled[i], "")
		}
		released += len(cancelled)
	}
	if released == 0 {
		return 0, NewNotFound("no reservations found for this user")
	}
	return released, nil
}

// Availability returns the point-in-time projection for one product:
// the ledger counters plus the count of active, non-expired holds.
// The two need not reconcile instantaneously; a lapsed hold keeps its
// ledger share until the next sweep.
func (s *ReservationService) Availability(ctx context.Context, productID string) (*model.Availability, error) {
	if productID == "" {
		return nil, NewValidation("product id is required")
	}
	p, err := s.store.Product(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, NewNotFound("product not found")
		}
		return nil, NewInternal("failed to load product", err)
	}
	count, err := s.store.CountActiveReservations(ctx, productID, s.now())
	if err != nil {
		return nil, NewInternal("failed to count reservations", err)
	}
	return &model.Availability{
		ProductID:              p.ID,
		TotalQuantity:          p.TotalQuantity,
		ReservedQuantity:       p.ReservedQuantity,
		AvailableQuantity:      p.AvailableQuantity(),
		ActiveReservationCount: count,
	}, nil
}

// UserReservations lists the target user's reservations, newest first.
// Callers may list their own; listing another user's requires the
// administrative role.
func (s *ReservationService) UserReservations(ctx context.Context, callerID, callerRole, targetUserID string) ([]model.Reservation, error) {
	if targetUserID == "" {
		return nil, NewValidation("user id is required")
	}
	if callerID != targetUserID && callerRole != RoleAdmin {
		return nil, NewAuthorization("cannot view another user's reservations")
	}
	list, err := s.store.ReservationsByUser(ctx, targetUserID)
	if err != nil {
		return nil, NewInternal("failed to load reservations", err)
	}
	return list, nil
}

// CommitStock performs the direct conditional stock decrement used by
// order placement when no reservation was taken.  It shares the same
// guarded-update primitive as confirmation so both paths preserve the
// ledger invariant.
func (s *ReservationService) CommitStock(ctx context.Context, productID string, quantity int64) error {
	if productID == "" {
		return NewValidation("product id is required")
	}
	if quantity <= 0 {
		return NewValidation("quantity must be greater than zero")
	}
	if _, err := s.checkAvailability(ctx, productID, quantity); err != nil {
		return err
	}
	if err := s.store.DecrementStock(ctx, productID, quantity); err != nil {
		return s.storeErr("failed to commit stock", err)
	}
	return nil
}

// validateCreate checks one create input against the request rules.
func (s *ReservationService) validateCreate(userID string, in CreateInput) error {
	if userID == "" {
		return NewValidation("user id is required")
	}
	if in.ProductID == "" {
		return NewValidation("product id is required")
	}
	if in.Quantity <= 0 {
		return NewValidation("quantity must be greater than zero")
	}
	if in.DurationMinutes < 0 {
		return NewValidation("duration must not be negative")
	}
	return nil
}

// checkAvailability performs the advisory pre-check: it loads the
// ledger entry and verifies the product is active with enough
// unreserved stock.  It guarantees nothing; the transaction condition
// is what actually protects the invariant.
func (s *ReservationService) checkAvailability(ctx context.Context, productID string, quantity int64) (*model.Product, error) {
	p, err := s.store.Product(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, NewNotFound("product not found")
		}
		return nil, NewInternal("failed to load product", err)
	}
	if !p.IsActive {
		return nil, NewValidation("product is not active")
	}
	if quantity > p.AvailableQuantity() {
		return nil, NewConflict("insufficient stock")
	}
	return p, nil
}

func (s *ReservationService) buildReservation(userID string, in CreateInput) *model.Reservation {
	duration := s.defaultHold
	if in.DurationMinutes > 0 {
		duration = time.Duration(in.DurationMinutes) * time.Minute
	}
	now := s.now()
	res := &model.Reservation{
		ID:        uuid.NewString(),
		ProductID: in.ProductID,
		UserID:    userID,
		Quantity:  in.Quantity,
		Status:    model.StatusActive,
		Metadata:  in.Metadata,
		CreatedAt: now,
		ExpiresAt: now.Add(duration),
	}
	if in.SessionID != "" {
		sid := in.SessionID
		res.SessionID = &sid
	}
	return res
}

// ownedReservation loads a reservation and enforces ownership.
func (s *ReservationService) ownedReservation(ctx context.Context, userID, reservationID string) (*model.Reservation, error) {
	res, err := s.store.Reservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, NewNotFound("reservation not found")
		}
		return nil, NewInternal("failed to load reservation", err)
	}
	if res.UserID != userID {
		return nil, NewAuthorization("access denied")
	}
	return res, nil
}

// storeErr maps storage sentinels onto the error taxonomy.
func (s *ReservationService) storeErr(msg string, err error) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		metrics.Conflicts.Inc()
		return NewConflict("insufficient stock or reservation conflict")
	case errors.Is(err, repository.ErrProductNotFound):
		return NewNotFound("product not found")
	case errors.Is(err, repository.ErrReservationNotFound):
		return NewNotFound("reservation not found")
	default:
		return NewInternal(msg, err)
	}
}

// publish emits a lifecycle event, logging and swallowing any broker
// failure: events are best-effort and never fail the operation.
func (s *ReservationService) publish(ctx context.Context, event string, res *model.Reservation, orderID string) {
	if s.events == nil {
		return
	}
	ev := queue.ReservationEvent{
		Event:         event,
		ReservationID: res.ID,
		ProductID:     res.ProductID,
		UserID:        res.UserID,
		OrderID:       orderID,
		Quantity:      res.Quantity,
		Status:        res.Status,
		OccurredAt:    s.now().Format(time.RFC3339),
	}
	if err := s.events.PublishReservationEvent(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event", event).Str("reservation_id", res.ID).Msg("event publish failed")
	}
}

func errMessage(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

func markAllFailed(results map[string]ItemResult, reason string) {
	for productID, r := range results {
		if r.Success {
			results[productID] = ItemResult{Success: false, Error: reason}
		}
	}
}
