package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taskhub-notify/internal/config"
	"taskhub-notify/internal/domain"
	"taskhub-notify/internal/mocks"
	"taskhub-notify/internal/repository"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recorder captures emitted events together with the cycle they belong to.
type recorder struct {
	mu     sync.Mutex
	cycle  int
	events []recorded
	failAt int
}

type recorded struct {
	cycle int
	event domain.Event
}

func (r *recorder) Emit(ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAt > 0 && len(r.events)+1 >= r.failAt {
		return errors.New("broken pipe")
	}
	r.events = append(r.events, recorded{cycle: r.cycle, event: ev})
	return nil
}

func (r *recorder) nextCycle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycle++
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.event.Type
	}
	return out
}

func (r *recorder) notifications() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recorded
	for _, e := range r.events {
		if e.event.Type == domain.EventNotification {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) last() domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1].event
}

// stepper replaces the real wait: each call hands control to the test and
// blocks until the test releases the next cycle.
type stepper struct {
	waiting chan struct{}
	release chan struct{}
}

func newStepper() *stepper {
	return &stepper{waiting: make(chan struct{}), release: make(chan struct{})}
}

func (s *stepper) wait(ctx context.Context, _ time.Duration) error {
	select {
	case s.waiting <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func testConfig() config.StreamConfig {
	return config.StreamConfig{
		PollInterval:    10 * time.Second,
		MaxIterations:   300,
		HeartbeatEvery:  3,
		BatchSize:       10,
		ProbeInterval:   2 * time.Second,
		MaxPollFailures: 5,
	}
}

type harness struct {
	t      *testing.T
	clock  *clock
	store  *repository.MemoryStore
	rec    *recorder
	step   *stepper
	pub    *Publisher
	userID uuid.UUID
	start  time.Time
	done   chan Result
	cancel context.CancelCauseFunc
}

func newHarness(t *testing.T, cfg config.StreamConfig) *harness {
	t.Helper()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h := &harness{
		t:      t,
		clock:  &clock{now: start},
		store:  repository.NewMemoryStore(),
		rec:    &recorder{},
		step:   newStepper(),
		userID: uuid.New(),
		start:  start,
		done:   make(chan Result, 1),
	}
	h.store.SetClock(h.clock.Now)
	h.pub = NewPublisher(h.store, cfg, zerolog.Nop())
	h.pub.now = h.clock.Now
	h.pub.wait = h.step.wait
	return h
}

func (h *harness) run() {
	ctx, cancel := context.WithCancelCause(context.Background())
	h.cancel = cancel
	h.t.Cleanup(func() { cancel(nil) })
	go func() {
		h.done <- h.pub.Run(ctx, h.userID, h.rec)
	}()
}

// endCycle waits until the loop finished its current cycle and is waiting.
func (h *harness) endCycle() {
	h.t.Helper()
	select {
	case <-h.step.waiting:
	case <-time.After(2 * time.Second):
		h.t.Fatal("stream did not reach its wait")
	}
}

// nextCycle moves the clock and lets the loop run one more cycle.
func (h *harness) nextCycle(at time.Duration) {
	h.clock.Set(h.start.Add(at))
	h.rec.nextCycle()
	h.step.release <- struct{}{}
}

func (h *harness) create(at time.Duration, title string) *domain.Notification {
	h.clock.Set(h.start.Add(at))
	notif := domain.NewNotification(h.userID, domain.NotifInfo, title, title, []domain.Channel{domain.ChannelInApp})
	require.NoError(h.t, h.store.Create(context.Background(), notif))
	return notif
}

func (h *harness) result() Result {
	h.t.Helper()
	select {
	case res := <-h.done:
		return res
	case <-time.After(2 * time.Second):
		h.t.Fatal("stream did not exit")
		return Result{}
	}
}

func TestPublisher_NotificationsCreatedWithinOneIntervalArriveTogether(t *testing.T) {
	h := newHarness(t, testConfig())
	h.run()

	h.endCycle() // poll at t0: nothing yet
	n1 := h.create(500*time.Millisecond, "one")
	n2 := h.create(1500*time.Millisecond, "two")
	h.nextCycle(10 * time.Second)

	h.endCycle()
	n3 := h.create(12500*time.Millisecond, "three")
	h.nextCycle(20 * time.Second)

	h.endCycle()
	h.cancel(nil)
	res := h.result()

	got := h.rec.notifications()
	require.Len(t, got, 3)
	assert.Equal(t, n1.ID, got[0].event.Data.(domain.NotificationPayload).ID)
	assert.Equal(t, n2.ID, got[1].event.Data.(domain.NotificationPayload).ID)
	assert.Equal(t, n3.ID, got[2].event.Data.(domain.NotificationPayload).ID)
	assert.Equal(t, 1, got[0].cycle)
	assert.Equal(t, 1, got[1].cycle, "second poll returns one and two together")
	assert.Equal(t, 2, got[2].cycle, "third poll returns three")

	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.Equal(t, 3, res.Delivered)
	assert.Equal(t, domain.NewDisconnectedEvent(ReasonCancelled), h.rec.last())
}

func TestPublisher_EventsAndPayloads(t *testing.T) {
	h := newHarness(t, testConfig())
	h.run()
	h.endCycle()

	notif := h.create(time.Second, "Task assigned")
	h.nextCycle(10 * time.Second)
	h.endCycle()
	h.cancel(domain.ErrClientDisconnected)
	res := h.result()

	types := h.rec.types()
	assert.Equal(t, []domain.EventType{domain.EventConnected, domain.EventNotification}, types)
	assert.Equal(t, domain.ConnectedPayload{RecipientID: h.userID}, h.rec.events[0].event.Data)

	payload := h.rec.events[1].event.Data.(domain.NotificationPayload)
	assert.Equal(t, notif.ID, payload.ID)
	assert.Equal(t, "Task assigned", payload.Title)
	assert.Equal(t, domain.NotifInfo, payload.Type)
	assert.True(t, payload.CreatedAt.Equal(notif.CreatedAt))

	assert.Equal(t, ReasonClientDisconnected, res.Reason, "no disconnected event is written to a gone client")
}

func TestPublisher_OrderingAndNoDuplicates(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 3
	h := newHarness(t, cfg)
	h.run()
	h.endCycle()

	var want []uuid.UUID
	for i := 0; i < 7; i++ {
		want = append(want, h.create(time.Duration(i+1)*time.Second, "n").ID)
	}
	// two rows share a timestamp right at the batch boundary
	h.clock.Set(h.start.Add(3 * time.Second))
	same := domain.NewNotification(h.userID, domain.NotifInfo, "same", "same", nil)
	require.NoError(t, h.store.Create(context.Background(), same))
	want = append(want[:3], append([]uuid.UUID{same.ID}, want[3:]...)...)

	for cycle := 1; cycle <= 5; cycle++ {
		h.nextCycle(time.Duration(cycle) * 10 * time.Second)
		h.endCycle()
	}
	h.cancel(nil)
	h.result()

	got := h.rec.notifications()
	ids := make([]uuid.UUID, len(got))
	for i, r := range got {
		ids[i] = r.event.Data.(domain.NotificationPayload).ID
	}
	assert.ElementsMatch(t, want, ids)

	seen := map[uuid.UUID]bool{}
	var prev time.Time
	for _, r := range got {
		p := r.event.Data.(domain.NotificationPayload)
		assert.False(t, seen[p.ID], "duplicate %s", p.ID)
		seen[p.ID] = true
		assert.False(t, p.CreatedAt.Before(prev), "out of order")
		prev = p.CreatedAt
	}
	assert.Equal(t, 1, got[0].cycle)
	assert.Equal(t, 1, got[2].cycle, "batch cap of three per poll")
	assert.Equal(t, 2, got[3].cycle, "remainder delivered on the next cycle")
}

func TestPublisher_LookbackCatchesLateCommits(t *testing.T) {
	cfg := testConfig()
	cfg.Lookback = 2 * time.Second
	h := newHarness(t, cfg)
	h.run()
	h.endCycle()

	early := h.create(9*time.Second, "early")
	h.nextCycle(10 * time.Second)
	h.endCycle()

	// stamped before the 10s poll but visible only after it
	late := h.create(9500*time.Millisecond, "late")
	h.nextCycle(20 * time.Second)
	h.endCycle()
	h.nextCycle(30 * time.Second)
	h.endCycle()
	h.cancel(nil)
	res := h.result()

	got := h.rec.notifications()
	require.Len(t, got, 2, "early is re-polled inside the lookback but not emitted twice")
	assert.Equal(t, early.ID, got[0].event.Data.(domain.NotificationPayload).ID)
	assert.Equal(t, late.ID, got[1].event.Data.(domain.NotificationPayload).ID)
	assert.Equal(t, 1, got[0].cycle)
	assert.Equal(t, 2, got[1].cycle)
	assert.Equal(t, 2, res.Delivered)
}

func TestPublisher_FullBatchOfSameTimestampMakesProgress(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 2
	h := newHarness(t, cfg)
	h.run()
	h.endCycle()

	h.clock.Set(h.start.Add(time.Second))
	for i := 0; i < 5; i++ {
		n := domain.NewNotification(h.userID, domain.NotifInfo, "burst", "burst", nil)
		require.NoError(t, h.store.Create(context.Background(), n))
	}

	for cycle := 1; cycle <= 6; cycle++ {
		h.nextCycle(time.Duration(cycle) * 10 * time.Second)
		h.endCycle()
	}
	h.cancel(nil)
	res := h.result()

	assert.Equal(t, 5, res.Delivered)
	assert.Len(t, h.rec.notifications(), 5)
}

func TestPublisher_HeartbeatCadence(t *testing.T) {
	cfg := testConfig()
	cfg.MaxIterations = 7
	cfg.HeartbeatEvery = 2
	h := newHarness(t, cfg)
	h.run()

	for cycle := 1; cycle < cfg.MaxIterations; cycle++ {
		h.endCycle()
		h.nextCycle(time.Duration(cycle) * cfg.PollInterval)
	}
	res := h.result()

	assert.Equal(t, ReasonTimeout, res.Reason)
	assert.Equal(t, 7, res.Iterations)

	var heartbeatCycles []int
	for _, r := range h.rec.events {
		if r.event.Type == domain.EventHeartbeat {
			heartbeatCycles = append(heartbeatCycles, r.cycle)
		}
	}
	// cycles are zero-based here: iterations 2, 4 and 6
	assert.Equal(t, []int{1, 3, 5}, heartbeatCycles)
	assert.Equal(t, domain.NewDisconnectedEvent(ReasonTimeout), h.rec.last())
}

func TestPublisher_BoundedLifetimeWithRealTimer(t *testing.T) {
	store := repository.NewMemoryStore()
	cfg := config.StreamConfig{
		PollInterval:    20 * time.Millisecond,
		MaxIterations:   5,
		HeartbeatEvery:  1,
		BatchSize:       10,
		MaxPollFailures: 5,
	}
	pub := NewPublisher(store, cfg, zerolog.Nop())
	rec := &recorder{}

	started := time.Now()
	res := pub.Run(context.Background(), uuid.New(), rec)
	elapsed := time.Since(started)

	assert.Equal(t, ReasonTimeout, res.Reason)
	assert.Less(t, elapsed, time.Duration(cfg.MaxIterations)*cfg.PollInterval+time.Second)
	assert.GreaterOrEqual(t, elapsed, time.Duration(cfg.MaxIterations-1)*cfg.PollInterval)

	types := rec.types()
	assert.Equal(t, domain.EventConnected, types[0])
	assert.Equal(t, domain.EventDisconnected, types[len(types)-1])
	assert.Len(t, types, 2+cfg.MaxIterations)
}

func TestPublisher_CancelDuringWaitIsPrompt(t *testing.T) {
	store := repository.NewMemoryStore()
	cfg := testConfig()
	cfg.PollInterval = time.Hour
	pub := NewPublisher(store, cfg, zerolog.Nop())
	rec := &recorder{}

	ctx, cancel := context.WithCancelCause(context.Background())
	done := make(chan Result, 1)
	go func() { done <- pub.Run(ctx, uuid.New(), rec) }()

	time.Sleep(20 * time.Millisecond)
	cancel(domain.ErrClientDisconnected)

	select {
	case res := <-done:
		assert.Equal(t, ReasonClientDisconnected, res.Reason)
		assert.Equal(t, 1, res.Iterations)
	case <-time.After(time.Second):
		t.Fatal("cancellation not observed during wait")
	}
}

func TestPublisher_NoStoreAccessAfterCancel(t *testing.T) {
	store := new(mocks.NotificationRepository)
	pub := NewPublisher(store, testConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := pub.Run(ctx, uuid.New(), &recorder{})

	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.Zero(t, res.Iterations)
	store.AssertNotCalled(t, "QuerySince")
}

func TestPublisher_StoreUnavailable(t *testing.T) {
	store := new(mocks.NotificationRepository)
	cfg := testConfig()
	cfg.MaxPollFailures = 3
	cfg.PollInterval = time.Millisecond
	store.On("QuerySince", mock.Anything, mock.Anything, mock.Anything, cfg.BatchSize).
		Return(nil, errors.New("connection refused"))

	rec := &recorder{}
	res := NewPublisher(store, cfg, zerolog.Nop()).Run(context.Background(), uuid.New(), rec)

	assert.Equal(t, ReasonStoreUnavailable, res.Reason)
	assert.Equal(t, 3, res.Iterations)
	store.AssertNumberOfCalls(t, "QuerySince", 3)
	assert.Equal(t, domain.NewDisconnectedEvent(ReasonStoreUnavailable), rec.last())
}

func TestPublisher_TransientPollFailureIsSkipped(t *testing.T) {
	store := new(mocks.NotificationRepository)
	cfg := testConfig()
	cfg.MaxPollFailures = 2
	cfg.MaxIterations = 4
	cfg.PollInterval = time.Millisecond
	userID := uuid.New()
	notif := domain.NewNotification(userID, domain.NotifInfo, "late", "late", nil)
	notif.CreatedAt = time.Now().Add(time.Hour)

	store.On("QuerySince", mock.Anything, userID, mock.Anything, cfg.BatchSize).Return(nil, errors.New("timeout")).Once()
	store.On("QuerySince", mock.Anything, userID, mock.Anything, cfg.BatchSize).Return([]domain.Notification{*notif}, nil).Once()
	store.On("QuerySince", mock.Anything, userID, mock.Anything, cfg.BatchSize).Return(nil, errors.New("timeout")).Once()
	store.On("QuerySince", mock.Anything, userID, mock.Anything, cfg.BatchSize).Return([]domain.Notification{}, nil).Once()

	res := NewPublisher(store, cfg, zerolog.Nop()).Run(context.Background(), userID, &recorder{})

	assert.Equal(t, ReasonTimeout, res.Reason, "failures were not consecutive")
	assert.Equal(t, 1, res.Delivered)
	store.AssertExpectations(t)
}

func TestPublisher_EmitFailureEndsStream(t *testing.T) {
	h := newHarness(t, testConfig())
	h.rec.failAt = 2
	h.run()
	h.endCycle()

	h.create(time.Second, "undeliverable")
	h.nextCycle(10 * time.Second)
	res := h.result()

	assert.Equal(t, ReasonClientDisconnected, res.Reason)
	assert.Zero(t, res.Delivered)
	assert.Equal(t, []domain.EventType{domain.EventConnected}, h.rec.types())
}
