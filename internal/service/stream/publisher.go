// Package stream runs the per-connection loop that pushes new notifications
// to one connected client.
//
// The loop is transport-agnostic: it writes domain events to an Emitter and
// the HTTP handler frames them as server-sent events.
package stream

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"taskhub-notify/internal/config"
	"taskhub-notify/internal/domain"
	"taskhub-notify/internal/logging"
	"taskhub-notify/internal/metrics"
)

const (
	ReasonTimeout            = "timeout"
	ReasonClientDisconnected = "client disconnected"
	ReasonCancelled          = "cancelled"
	ReasonStoreUnavailable   = "store unavailable"
)

// Poller is the store query the loop depends on: unread notifications for
// userID created strictly after since, oldest first, at most limit rows.
type Poller interface {
	QuerySince(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]domain.Notification, error)
}

type Emitter interface {
	Emit(ev domain.Event) error
}

type EmitterFunc func(ev domain.Event) error

func (f EmitterFunc) Emit(ev domain.Event) error {
	return f(ev)
}

type Result struct {
	Reason     string
	Iterations int
	Delivered  int
}

type Publisher struct {
	store  Poller
	cfg    config.StreamConfig
	logger zerolog.Logger

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

func NewPublisher(store Poller, cfg config.StreamConfig, logger zerolog.Logger) *Publisher {
	def := config.DefaultStreamConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = def.HeartbeatEvery
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxPollFailures <= 0 {
		cfg.MaxPollFailures = def.MaxPollFailures
	}
	if cfg.Lookback < 0 {
		cfg.Lookback = 0
	}

	return &Publisher{
		store:  store,
		cfg:    cfg,
		logger: logging.WithComponent(logger, "stream"),
		now:    time.Now,
		wait:   sleepCtx,
	}
}

func (p *Publisher) Config() config.StreamConfig {
	return p.cfg
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type run struct {
	p      *Publisher
	userID uuid.UUID
	out    Emitter
	log    zerolog.Logger

	checkpoint time.Time
	limit      int
	// seen holds ids emitted on this connection whose createdAt is still
	// above the checkpoint, so a re-poll cannot emit them twice.
	seen      map[uuid.UUID]time.Time
	delivered int
}

// Run streams events for userID until the iteration budget runs out, ctx is
// cancelled, the emitter fails, or the store keeps failing. A ctx cancelled
// with domain.ErrClientDisconnected as its cause exits as a disconnect.
func (p *Publisher) Run(ctx context.Context, userID uuid.UUID, out Emitter) Result {
	metrics.StreamConnections.Inc()
	defer metrics.StreamConnections.Dec()

	r := &run{
		p:      p,
		userID: userID,
		out:    out,
		log:    p.logger.With().Str("user_id", userID.String()).Logger(),
		limit:  p.cfg.BatchSize,
		seen:   make(map[uuid.UUID]time.Time),
	}

	result := r.loop(ctx)
	result.Delivered = r.delivered
	metrics.StreamExits.WithLabelValues(result.Reason).Inc()
	r.log.Debug().
		Str("reason", result.Reason).
		Int("iterations", result.Iterations).
		Int("delivered", result.Delivered).
		Msg("stream closed")
	return result
}

func (r *run) emit(ev domain.Event) error {
	if err := r.out.Emit(ev); err != nil {
		return err
	}
	metrics.StreamEvents.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

func (r *run) exit(reason string, iterations int) Result {
	if reason != ReasonClientDisconnected {
		if err := r.emit(domain.NewDisconnectedEvent(reason)); err != nil {
			r.log.Debug().Err(err).Msg("failed to emit disconnected event")
		}
	}
	return Result{Reason: reason, Iterations: iterations}
}

func cancelReason(ctx context.Context) string {
	if errors.Is(context.Cause(ctx), domain.ErrClientDisconnected) {
		return ReasonClientDisconnected
	}
	return ReasonCancelled
}

func (r *run) loop(ctx context.Context) Result {
	cfg := r.p.cfg

	if err := r.emit(domain.NewConnectedEvent(r.userID)); err != nil {
		return r.exit(ReasonClientDisconnected, 0)
	}
	r.checkpoint = floor(r.p.now())

	failures := 0
	for i := 1; i <= cfg.MaxIterations; i++ {
		if ctx.Err() != nil {
			return r.exit(cancelReason(ctx), i-1)
		}

		if err := r.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return r.exit(cancelReason(ctx), i)
			}
			if errors.Is(err, errEmit) {
				return r.exit(ReasonClientDisconnected, i)
			}

			failures++
			metrics.StreamPollErrors.Inc()
			r.log.Warn().Err(err).Int("consecutive_failures", failures).Msg("stream poll failed")
			if failures >= cfg.MaxPollFailures {
				return r.exit(ReasonStoreUnavailable, i)
			}
		} else {
			failures = 0
		}

		if i%cfg.HeartbeatEvery == 0 {
			if err := r.emit(domain.NewHeartbeatEvent(r.p.now().UTC())); err != nil {
				return r.exit(ReasonClientDisconnected, i)
			}
		}

		if i == cfg.MaxIterations {
			return r.exit(ReasonTimeout, i)
		}
		if err := r.p.wait(ctx, cfg.PollInterval); err != nil {
			return r.exit(cancelReason(ctx), i)
		}
	}
	return r.exit(ReasonTimeout, cfg.MaxIterations)
}

var errEmit = errors.New("emit failed")

// floor returns a checkpoint that still admits rows stamped within the same
// microsecond as t; stores keep createdAt at microsecond precision.
func floor(t time.Time) time.Time {
	return t.Truncate(time.Microsecond).Add(-time.Nanosecond)
}

// poll runs one store query and emits what it returned. The checkpoint only
// moves past a record once that record has been returned by a poll.
func (r *run) poll(ctx context.Context) error {
	cfg := r.p.cfg
	pollStart := r.p.now()

	batch, err := r.p.store.QuerySince(ctx, r.userID, r.checkpoint, r.limit)
	if err != nil {
		return err
	}

	fresh := 0
	for i := range batch {
		notif := &batch[i]
		if _, dup := r.seen[notif.ID]; dup {
			continue
		}
		if err := r.emit(domain.NewNotificationEvent(notif)); err != nil {
			r.log.Debug().Err(err).Msg("failed to emit notification")
			return errEmit
		}
		r.seen[notif.ID] = notif.CreatedAt
		r.delivered++
		fresh++
	}

	if len(batch) < r.limit {
		if next := floor(pollStart).Add(-cfg.Lookback); next.After(r.checkpoint) {
			r.checkpoint = next
		}
		r.limit = cfg.BatchSize
	} else {
		// Truncated: rows sharing the last timestamp may remain, so stay just
		// below it. A full batch of already-seen rows widens the next query.
		r.checkpoint = batch[len(batch)-1].CreatedAt.Add(-time.Nanosecond)
		if fresh == 0 {
			r.limit += cfg.BatchSize
		}
	}

	for id, createdAt := range r.seen {
		if !createdAt.After(r.checkpoint) {
			delete(r.seen, id)
		}
	}
	return nil
}
