package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/poligrain/inventory-reservation/internal/metrics"
	"github.com/poligrain/inventory-reservation/internal/model"
	"github.com/poligrain/inventory-reservation/internal/queue"
)

// Sweeper reclaims reserved capacity from reservations whose hold has
// lapsed without confirmation.  It runs on a schedule and processes
// lapsed holds in bounded batches sized to the transaction operation
// cap; each batch is one atomic transaction flipping reservations to
// expired and returning their quantities to the ledger.
//
// A reservation confirmed between the scan and the batch transaction
// fails its per-item condition inside the store; the sweeper treats
// that as already resolved and moves on without retrying it within the
// same pass.
type Sweeper struct {
	store    Store
	events   EventPublisher
	interval time.Duration
	limit    int
	now      func() time.Time
}

// NewSweeper constructs a sweeper over the given store.  interval <= 0
// defaults to one minute; limit <= 0 defaults to the largest batch one
// transaction can carry (two operations per reservation).
func NewSweeper(store Store, events EventPublisher, interval time.Duration, limit int) *Sweeper {
	if store == nil {
		panic("nil store passed to NewSweeper")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if limit <= 0 || limit > maxTransactOps/2 {
		limit = maxTransactOps / 2
	}
	return &Sweeper{
		store:    store,
		events:   events,
		interval: interval,
		limit:    limit,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on every tick until the context is cancelled.  Errors are
// logged and the loop keeps going; a failed pass leaves the lapsed
// holds in place for the next one.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Info().Dur("interval", s.interval).Int("batch_size", s.limit).Msg("expiry sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				log.Error().Err(err).Msg("sweep pass failed")
			}
		}
	}
}

// SweepOnce drains all currently lapsed active reservations and
// returns how many were expired.  It scans and expires batch by batch
// until the scan comes back empty; rows resolved concurrently between
// scan and transaction simply drop out of the next scan.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	total := 0
	now := s.now()
	for {
		batch, err := s.store.ExpiredActiveReservations(ctx, now, s.limit)
		if err != nil {
			return total, NewInternal("failed to scan expired reservations", err)
		}
		if len(batch) == 0 {
			break
		}
		expired, err := s.store.ExpireReservations(ctx, batch, now)
		if err != nil {
			return total, NewInternal("failed to expire reservations", err)
		}
		for i := range expired {
			metrics.ReservationsExpired.Inc()
			s.publishExpired(ctx, &expired[i])
		}
		total += len(expired)
		log.Debug().Int("scanned", len(batch)).Int("expired", len(expired)).Msg("processed sweep batch")
		if len(batch) < s.limit {
			break
		}
	}
	metrics.SweepRuns.Inc()
	if total > 0 {
		log.Info().Int("expired", total).Msg("sweep pass reclaimed lapsed holds")
	}
	return total, nil
}

func (s *Sweeper) publishExpired(ctx context.Context, res *model.Reservation) {
	if s.events == nil {
		return
	}
	ev := queue.ReservationEvent{
		Event:         queue.EventReservationExpired,
		ReservationID: res.ID,
		ProductID:     res.ProductID,
		UserID:        res.UserID,
		Quantity:      res.Quantity,
		Status:        res.Status,
		OccurredAt:    s.now().Format(time.RFC3339),
	}
	if err := s.events.PublishReservationEvent(ctx, ev); err != nil {
		log.Warn().Err(err).Str("reservation_id", res.ID).Msg("event publish failed")
	}
}
