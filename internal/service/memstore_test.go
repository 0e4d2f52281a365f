package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/trenergram/internal/localtime"
	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/Freeeeeet/trenergram/internal/notify"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// memStore - хранилище в памяти с теми же условными записями, что и postgres
type memStore struct {
	mu sync.Mutex

	nextBookingID int64
	nextRetryID   int64

	bookings map[int64]*model.Booking
	users    map[int64]*model.User
	ledgers  map[[2]int64]*model.TrainerClient
	retries  map[int64]*model.NotificationRetry
}

func newMemStore() *memStore {
	return &memStore{
		bookings: make(map[int64]*model.Booking),
		users:    make(map[int64]*model.User),
		ledgers:  make(map[[2]int64]*model.TrainerClient),
		retries:  make(map[int64]*model.NotificationRetry),
	}
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	return &c
}

func (m *memStore) hasConflict(exceptID, trainerID int64, start time.Time) bool {
	for _, b := range m.bookings {
		if b.ID != exceptID && b.TrainerID == trainerID && b.Status.IsActive() && b.StartAt.Equal(start) {
			return true
		}
	}
	return false
}

func (m *memStore) Create(_ context.Context, booking *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if booking.Status.IsActive() && m.hasConflict(0, booking.TrainerID, booking.StartAt) {
		return model.ErrBookingConflict
	}

	m.nextBookingID++
	booking.ID = m.nextBookingID
	m.bookings[booking.ID] = cloneBooking(booking)

	key := [2]int64{booking.TrainerID, booking.ClientID}
	tc, ok := m.ledgers[key]
	if !ok {
		tc = &model.TrainerClient{TrainerID: booking.TrainerID, ClientID: booking.ClientID}
		m.ledgers[key] = tc
	}
	tc.TotalBookings++
	start := booking.StartAt
	tc.LastBookingAt = &start

	return nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	return cloneBooking(b), nil
}

func (m *memStore) list(filter func(b *model.Booking) bool) []*model.Booking {
	var result []*model.Booking
	for _, b := range m.bookings {
		if filter(b) {
			result = append(result, cloneBooking(b))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *memStore) ListActiveUpcoming(_ context.Context, now time.Time) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.list(func(b *model.Booking) bool {
		return b.Status.IsActive() && b.StartAt.After(now)
	}), nil
}

func (m *memStore) ListChargeable(_ context.Context, now time.Time) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.list(func(b *model.Booking) bool {
		return b.Status == model.BookingStatusConfirmed && !b.IsCharged && b.StartAt.After(now)
	}), nil
}

func (m *memStore) UpdateStatus(_ context.Context, change model.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[change.BookingID]
	if !ok {
		return model.ErrBookingNotFound
	}
	if b.Status != change.From {
		return model.ErrStaleBooking
	}

	at := change.At
	b.Status = change.To
	b.UpdatedAt = at

	tc := m.ledgers[[2]int64{b.TrainerID, b.ClientID}]
	switch change.To {
	case model.BookingStatusConfirmed:
		b.ConfirmedAt = &at
	case model.BookingStatusCancelled:
		b.CancelledAt = &at
		b.CancellationReason = change.Reason
		if tc != nil {
			tc.CancelledBookings++
		}
	case model.BookingStatusCompleted:
		b.CompletedAt = &at
		if tc != nil {
			tc.CompletedBookings++
		}
	}
	return nil
}

func (m *memStore) Reschedule(_ context.Context, id int64, expected model.BookingStatus, oldStart, newStart, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return model.ErrBookingNotFound
	}
	if b.Status != expected || !b.StartAt.Equal(oldStart) {
		return model.ErrStaleBooking
	}
	if m.hasConflict(id, b.TrainerID, newStart) {
		return model.ErrBookingConflict
	}

	b.StartAt = newStart
	b.ResetReminders()
	b.UpdatedAt = at
	for retryID, item := range m.retries {
		if item.BookingID == id {
			delete(m.retries, retryID)
		}
	}
	return nil
}

func (m *memStore) MarkStage(_ context.Context, id int64, stage model.ReminderStage, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok || !b.Status.IsActive() || b.StageSent(stage) {
		return false, nil
	}

	switch stage {
	case model.StageReminder1:
	case model.StageReminder2:
		if b.Reminder1SentAt == nil {
			return false, nil
		}
	case model.StageReminder3:
		if b.Reminder2SentAt == nil {
			return false, nil
		}
	case model.StagePreStart2h, model.StagePreStart1h, model.StagePreStart15m:
		if b.Status != model.BookingStatusConfirmed {
			return false, nil
		}
	default:
		return false, model.ErrUnsupportedStage
	}

	b.MarkStage(stage, at)
	return true, nil
}

func (m *memStore) Charge(_ context.Context, id int64, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return 0, model.ErrBookingNotFound
	}
	if b.Status != model.BookingStatusConfirmed || b.IsCharged {
		return 0, model.ErrStaleBooking
	}

	tc, ok := m.ledgers[[2]int64{b.TrainerID, b.ClientID}]
	if !ok {
		return 0, model.ErrLedgerNotFound
	}

	b.IsCharged = true
	b.ChargedAt = &at
	tc.Balance -= b.Price
	return tc.Balance, nil
}

// memUsers и memLedger разделяют состояние с memStore
type memUsers struct{ *memStore }

func (u memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[id]
	if !ok {
		return nil, nil
	}
	c := *user
	return &c, nil
}

func (u memUsers) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, user := range u.users {
		if user.TelegramID == telegramID {
			c := *user
			return &c, nil
		}
	}
	return nil, nil
}

type memLedger struct{ *memStore }

func (l memLedger) Get(_ context.Context, trainerID, clientID int64) (*model.TrainerClient, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tc, ok := l.ledgers[[2]int64{trainerID, clientID}]
	if !ok {
		return nil, nil
	}
	c := *tc
	return &c, nil
}

func (l memLedger) ListByClient(_ context.Context, clientID int64) ([]*model.TrainerClient, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result []*model.TrainerClient
	for key, tc := range l.ledgers {
		if key[1] == clientID {
			c := *tc
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TrainerID < result[j].TrainerID })
	return result, nil
}

func (l memLedger) TopUp(_ context.Context, trainerID, clientID int64, amount int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tc, ok := l.ledgers[[2]int64{trainerID, clientID}]
	if !ok {
		return 0, model.ErrLedgerNotFound
	}
	tc.Balance += amount
	return tc.Balance, nil
}

type memRetries struct{ *memStore }

func (r memRetries) Enqueue(_ context.Context, item *model.NotificationRetry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.retries {
		if existing.BookingID != item.BookingID || existing.Stage != item.Stage {
			continue
		}
		if existing.State == model.RetryStatePending {
			return nil
		}
		existing.RecipientID = item.RecipientID
		existing.Attempts = item.Attempts
		existing.LastError = item.LastError
		existing.NextAttemptAt = item.NextAttemptAt
		existing.State = item.State
		item.ID = existing.ID
		return nil
	}

	r.nextRetryID++
	c := *item
	c.ID = r.nextRetryID
	r.retries[c.ID] = &c
	item.ID = c.ID
	return nil
}

func (r memRetries) ClaimNext(_ context.Context, now, leaseUntil time.Time) (*model.NotificationRetry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var next *model.NotificationRetry
	for _, item := range r.retries {
		if item.State != model.RetryStatePending || item.NextAttemptAt.After(now) {
			continue
		}
		if next == nil || item.NextAttemptAt.Before(next.NextAttemptAt) ||
			(item.NextAttemptAt.Equal(next.NextAttemptAt) && item.ID < next.ID) {
			next = item
		}
	}
	if next == nil {
		return nil, nil
	}

	next.NextAttemptAt = leaseUntil
	next.UpdatedAt = now
	c := *next
	return &c, nil
}

// claimed находит повтор, захват которого ещё действует
func (r memRetries) claimed(id int64, lease time.Time) (*model.NotificationRetry, error) {
	item, ok := r.retries[id]
	if !ok {
		return nil, model.ErrRetryNotFound
	}
	if item.State != model.RetryStatePending || !item.NextAttemptAt.Equal(lease) {
		return nil, model.ErrRetryClaimLost
	}
	return item, nil
}

func (r memRetries) MarkDelivered(_ context.Context, id int64, lease, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, err := r.claimed(id, lease)
	if err != nil {
		return err
	}
	item.State = model.RetryStateDelivered
	item.UpdatedAt = at
	return nil
}

func (r memRetries) MarkFailed(_ context.Context, id int64, lease time.Time, attempts int, lastError string, next time.Time, state model.RetryState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, err := r.claimed(id, lease)
	if err != nil {
		return err
	}
	item.Attempts = attempts
	item.LastError = lastError
	item.NextAttemptAt = next
	item.State = state
	return nil
}

func (m *memStore) booking(t *testing.T, id int64) *model.Booking {
	t.Helper()
	b, err := m.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

func (m *memStore) ledger(t *testing.T, trainerID, clientID int64) *model.TrainerClient {
	t.Helper()
	tc, err := memLedger{m}.Get(context.Background(), trainerID, clientID)
	require.NoError(t, err)
	require.NotNil(t, tc)
	return tc
}

func (m *memStore) retryList() []*model.NotificationRetry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*model.NotificationRetry
	for _, item := range m.retries {
		c := *item
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// fakeClock - управляемое время для проходов
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errGatewayDown = errors.New("gateway is down")

// recordingGateway запоминает отправленные сообщения
type recordingGateway struct {
	mu       sync.Mutex
	sent     []notify.Message
	failing  bool
	attempts int
	// latency имитирует медленную отправку
	latency time.Duration
}

func (g *recordingGateway) Send(_ context.Context, msg notify.Message) error {
	g.mu.Lock()
	latency := g.latency
	g.mu.Unlock()
	if latency > 0 {
		time.Sleep(latency)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.attempts++
	if g.failing {
		return errGatewayDown
	}
	g.sent = append(g.sent, msg)
	return nil
}

func (g *recordingGateway) SetFailing(failing bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failing = failing
}

func (g *recordingGateway) SetLatency(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.latency = d
}

func (g *recordingGateway) Messages() []notify.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]notify.Message(nil), g.sent...)
}

func (g *recordingGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = nil
	g.attempts = 0
}

const (
	trainerID = int64(1)
	clientID  = int64(2)

	trainerChat = int64(100)
	clientChat  = int64(200)
)

var moscow = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		panic(err)
	}
	return loc
}()

type testEnv struct {
	store      *memStore
	gateway    *recordingGateway
	clock      *fakeClock
	dispatcher *Dispatcher
	lifecycle  *LifecycleService
	reminders  *ReminderService
	ledger     *LedgerService
	retries    *RetryService
}

func newTestEnv(t *testing.T, cfg DispatchConfig) *testEnv {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store := newMemStore()
	store.users[trainerID] = &model.User{
		ID:         trainerID,
		TelegramID: trainerChat,
		Role:       model.UserRoleTrainer,
		Name:       "Иван",
		Price:      300000,
		Timezone:   "Europe/Moscow",
	}
	store.users[clientID] = &model.User{
		ID:                       clientID,
		TelegramID:               clientChat,
		Role:                     model.UserRoleClient,
		Name:                     "Мария",
		ClientReminder2hEnabled:  true,
		ClientReminder1hEnabled:  true,
		ClientReminder15mEnabled: true,
	}

	clock := &fakeClock{now: time.Date(2025, 5, 1, 12, 0, 0, 0, moscow)}
	gateway := &recordingGateway{}
	resolver := localtime.NewResolver("", logger)

	dispatcher := NewDispatcher(gateway, memRetries{store}, cfg, clock.Now, logger)
	lifecycle := NewLifecycleService(store, memUsers{store}, dispatcher, resolver, clock.Now, logger)

	return &testEnv{
		store:      store,
		gateway:    gateway,
		clock:      clock,
		dispatcher: dispatcher,
		lifecycle:  lifecycle,
		reminders:  NewReminderService(store, memUsers{store}, lifecycle, dispatcher, resolver, clock.Now, 2, logger),
		ledger:     NewLedgerService(store, memUsers{store}, memLedger{store}, dispatcher, clock.Now, 2, logger),
		retries:    NewRetryService(memRetries{store}, store, memUsers{store}, dispatcher, resolver, clock.Now, logger),
	}
}

// trainer позволяет менять настройки тренера в тесте
func (e *testEnv) trainer() *model.User {
	return e.store.users[trainerID]
}

func (e *testEnv) client() *model.User {
	return e.store.users[clientID]
}

// seed кладёт бронирование напрямую в хранилище
func (e *testEnv) seed(t *testing.T, status model.BookingStatus, start time.Time) *model.Booking {
	t.Helper()

	b := &model.Booking{
		TrainerID:       trainerID,
		ClientID:        clientID,
		StartAt:         start,
		DurationMinutes: 60,
		Price:           300000,
		Status:          status,
		CreatedBy:       model.CreatorTrainer,
	}
	require.NoError(t, e.store.Create(context.Background(), b))
	return b
}
