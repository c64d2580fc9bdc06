package appointment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-booking/internal/catalog"
	"github.com/hackgods/clinic-appointment-booking/internal/lock"
)

const (
	drLee  = "Dr. Lee"
	drKim  = "Dr. Kim"
	jan10  = "01/10/2026"
	jan11  = "01/11/2026"
	eight  = "08:00 AM"
	eight3 = "08:30 AM"
)

var testNow = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store Store, opts ...Option) *Service {
	t.Helper()
	cat, err := catalog.New([]string{drLee, drKim}, catalog.DefaultTimeSlots, nil)
	require.NoError(t, err)

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(store, lock.NewLocalLocker(), cat, zerolog.Nop(), opts...)
}

func reserveReq(name, email, date, tm, provider string) ReserveRequest {
	return ReserveRequest{
		Patient:  PatientInput{Name: name, Email: email},
		Date:     date,
		Time:     tm,
		Provider: provider,
	}
}

// failingStore answers every call with a connection error.
type failingStore struct {
	*MemoryStore
	err error
}

func (f *failingStore) IsSlotTaken(context.Context, string, string, string) (bool, error) {
	return false, f.err
}

func (f *failingStore) FindPatientByEmail(context.Context, string) (*Patient, error) {
	return nil, f.err
}

func (f *failingStore) ListAllAppointments(context.Context) ([]Appointment, error) {
	return nil, f.err
}

func (f *failingStore) DeleteByAppointmentID(context.Context, string) (bool, error) {
	return false, f.err
}

func TestScenario_AliceAndBob(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore())

	alice, err := svc.Reserve(ctx, reserveReq("Alice", "alice@x.com", jan10, eight, drLee))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, alice.Status)
	assert.Len(t, alice.ID, 8)
	assert.Equal(t, testNow, alice.BookedAt)

	_, err = svc.Reserve(ctx, reserveReq("Bob", "bob@x.com", jan10, eight, drLee))
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	ok, err := svc.Confirm(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := svc.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)

	ok, err = svc.CancelByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	free, err := svc.IsSlotAvailable(ctx, drLee, jan10, eight)
	require.NoError(t, err)
	assert.True(t, free)

	bob, err := svc.Reserve(ctx, reserveReq("Bob", "bob@x.com", jan10, eight, drLee))
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", bob.Patient.Email)
}

func TestReserve_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore())

	tests := []struct {
		name    string
		req     ReserveRequest
		wantErr error
	}{
		{"unknown provider", reserveReq("A", "a@x.com", jan10, eight, "Dr. Who"), ErrUnknownProvider},
		{"unknown time", reserveReq("A", "a@x.com", jan10, "12:00 PM", drLee), ErrUnknownTimeSlot},
		{"iso date", reserveReq("A", "a@x.com", "2026-01-10", eight, drLee), ErrInvalidDate},
		{"unpadded date", reserveReq("A", "a@x.com", "1/10/2026", eight, drLee), ErrInvalidDate},
		{"impossible date", reserveReq("A", "a@x.com", "02/30/2026", eight, drLee), ErrInvalidDate},
		{"missing name", reserveReq(" ", "a@x.com", jan10, eight, drLee), ErrInvalidPatient},
		{"missing email", reserveReq("A", "", jan10, eight, drLee), ErrInvalidPatient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Reserve(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	all, err := svc.AllAppointments(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReserve_ReusesDirectoryIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestService(t, store)

	_, err := svc.Reserve(ctx, ReserveRequest{
		Patient:  PatientInput{Name: "Alice", Email: "alice@x.com"},
		Date:     jan10,
		Time:     eight,
		Provider: drLee,
		Reason:   "cleaning",
	})
	require.NoError(t, err)

	p, err := store.FindPatientByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, PlaceholderField, p.Gender)
	assert.Equal(t, PlaceholderField, p.Contact)

	second, err := svc.Reserve(ctx, reserveReq("Alicia", "alice@x.com", jan11, eight, drLee))
	require.NoError(t, err)
	assert.Equal(t, "Alice", second.Patient.Name)

	first, err := svc.AllAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "cleaning", first[1].Reason)
}

func TestReserve_RetriesIDCollision(t *testing.T) {
	ctx := context.Background()
	ids := []string{"deadbeef", "deadbeef", "cafef00d"}
	var n int32
	svc := newTestService(t, NewMemoryStore(), WithIDGenerator(func() string {
		i := atomic.AddInt32(&n, 1) - 1
		return ids[i]
	}))

	a, err := svc.Reserve(ctx, reserveReq("Alice", "alice@x.com", jan10, eight, drLee))
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", a.ID)

	b, err := svc.Reserve(ctx, reserveReq("Bob", "bob@x.com", jan10, eight3, drLee))
	require.NoError(t, err)
	assert.Equal(t, "cafef00d", b.ID)
}

func TestReserve_NoDoubleBookingUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore())

	var (
		wg        sync.WaitGroup
		successes int32
		conflicts int32
	)

	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Reserve(ctx, reserveReq(
				fmt.Sprintf("Patient %d", i), fmt.Sprintf("p%d@x.com", i), jan10, eight, drLee))
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, ErrSlotUnavailable):
				atomic.AddInt32(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes)
	assert.EqualValues(t, 39, conflicts)
}

func TestConfirmDecline_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore())

	a, err := svc.Reserve(ctx, reserveReq("Alice", "alice@x.com", jan10, eight, drLee))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := svc.Confirm(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	got, _ := svc.Get(ctx, a.ID)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.Equal(t, testNow, got.BookedAt)

	for i := 0; i < 2; i++ {
		ok, err := svc.Decline(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	got, _ = svc.Get(ctx, a.ID)
	assert.Equal(t, StatusDeclined, got.Status)

	ok, err := svc.Confirm(ctx, "missing1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Decline(ctx, "missing1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecline_FreesSlot(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore())

	a, err := svc.Reserve(ctx, reserveReq("Alice", "alice@x.com", jan10, eight, drLee))
	require.NoError(t, err)

	free, _ := svc.IsSlotAvailable(ctx, drLee, jan10, eight)
	assert.False(t, free)

	_, err = svc.Decline(ctx, a.ID)
	require.NoError(t, err)

	free, _ = svc.IsSlotAvailable(ctx, drLee, jan10, eight)
	assert.True(t, free)

	b, err := svc.Reserve(ctx, reserveReq("Bob", "bob@x.com", jan10, eight, drLee))
	require.NoError(t, err)

	// bringing Alice back would double-book the slot
	ok, err := svc.Confirm(ctx, a.ID)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.False(t, ok)

	got, _ := svc.Get(ctx, b.ID)
	assert.Equal(t, StatusPending, got.Status)
}

func TestCancel_IsTerminal(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore())

	a, err := svc.Reserve(ctx, reserveReq("Alice", "alice@x.com", jan10, eight, drLee))
	require.NoError(t, err)

	ok, err := svc.Cancel(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Cancel(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := svc.AllAppointments(ctx)
	require.NoError(t, err)
	for _, x := range all {
		assert.NotEqual(t, a.ID, x.ID)
	}

	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancelByEmail_RemovesEveryMatch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore())

	for _, d := range []string{jan10, jan11} {
		_, err := svc.Reserve(ctx, reserveReq("Alice", "alice@x.com", d, eight, drLee))
		require.NoError(t, err)
	}
	_, err := svc.Reserve(ctx, reserveReq("Bob", "bob@x.com", jan10, eight3, drLee))
	require.NoError(t, err)

	ok, err := svc.CancelByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	all, err := svc.AllAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "bob@x.com", all[0].Patient.Email)

	ok, err = svc.CancelByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CancelByEmail(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAvailableSlots(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore())

	slots, err := svc.AvailableSlots(ctx, drLee, jan10)
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultTimeSlots, slots)

	_, err = svc.Reserve(ctx, reserveReq("Alice", "alice@x.com", jan10, eight3, drLee))
	require.NoError(t, err)

	slots, err = svc.AvailableSlots(ctx, drLee, jan10)
	require.NoError(t, err)
	assert.Len(t, slots, 17)
	assert.NotContains(t, slots, eight3)
	assert.Equal(t, eight, slots[0])
	assert.Equal(t, "09:00 AM", slots[1])

	// other providers and days are unaffected
	slots, _ = svc.AvailableSlots(ctx, drKim, jan10)
	assert.Len(t, slots, 18)
	slots, _ = svc.AvailableSlots(ctx, drLee, jan11)
	assert.Len(t, slots, 18)

	_, err = svc.AvailableSlots(ctx, "Dr. Who", jan10)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRebook(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore())

	_, err := svc.Rebook(ctx, RebookRequest{Email: "ghost@x.com", Date: jan11, Time: eight, Provider: drKim})
	assert.ErrorIs(t, err, ErrPatientNotFound)

	old, err := svc.Reserve(ctx, reserveReq("Alice", "alice@x.com", jan10, eight, drLee))
	require.NoError(t, err)

	moved, err := svc.Rebook(ctx, RebookRequest{Email: "alice@x.com", Date: jan11, Time: eight3, Provider: drKim, Reason: "follow-up"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", moved.Patient.Name)
	assert.Equal(t, StatusPending, moved.Status)

	all, err := svc.AllAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, moved.ID, all[0].ID)
	assert.Equal(t, jan11, all[0].Date)
	assert.Equal(t, drKim, all[0].Provider)
	assert.NotEqual(t, old.ID, all[0].ID)

	free, _ := svc.IsSlotAvailable(ctx, drLee, jan10, eight)
	assert.True(t, free)
}

func TestRebook_TakenSlotLeavesPatientWithout(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore())

	_, err := svc.Reserve(ctx, reserveReq("Alice", "alice@x.com", jan10, eight, drLee))
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, reserveReq("Bob", "bob@x.com", jan11, eight, drLee))
	require.NoError(t, err)

	_, err = svc.Rebook(ctx, RebookRequest{Email: "alice@x.com", Date: jan11, Time: eight, Provider: drLee})
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	all, err := svc.AllAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "bob@x.com", all[0].Patient.Email)
}

func TestRebook_InvalidRequestKeepsExistingAppointment(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore())

	held, err := svc.Reserve(ctx, reserveReq("Alice", "alice@x.com", jan10, eight, drLee))
	require.NoError(t, err)

	tests := []struct {
		name string
		req  RebookRequest
		want error
	}{
		{"short date", RebookRequest{Email: "alice@x.com", Date: "1/10/2026", Time: eight, Provider: drLee}, ErrInvalidDate},
		{"unknown provider", RebookRequest{Email: "alice@x.com", Date: jan11, Time: eight, Provider: "Dr. Nobody"}, ErrUnknownProvider},
		{"unknown time", RebookRequest{Email: "alice@x.com", Date: jan11, Time: "07:00 AM", Provider: drLee}, ErrUnknownTimeSlot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Rebook(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)

			got, err := svc.Get(ctx, held.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusPending, got.Status)
		})
	}
}

func TestIsSlotAvailable_RejectsInvalidSlot(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemoryStore())

	free, err := svc.IsSlotAvailable(ctx, "Dr. Nobody", jan10, eight)
	assert.False(t, free)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	free, err = svc.IsSlotAvailable(ctx, drLee, "banana", eight)
	assert.False(t, free)
	assert.ErrorIs(t, err, ErrInvalidDate)

	free, err = svc.IsSlotAvailable(ctx, drLee, jan10, "07:00 AM")
	assert.False(t, free)
	assert.ErrorIs(t, err, ErrUnknownTimeSlot)
}

func TestFailClosed_WhenStoreUnreachable(t *testing.T) {
	ctx := context.Background()
	down := errors.New("dial tcp 127.0.0.1:5432: connection refused")
	svc := newTestService(t, &failingStore{MemoryStore: NewMemoryStore(), err: down})

	free, err := svc.IsSlotAvailable(ctx, drLee, jan10, eight)
	assert.False(t, free)
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)
	assert.ErrorIs(t, err, down)

	_, err = svc.Reserve(ctx, reserveReq("Alice", "alice@x.com", jan10, eight, drLee))
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)

	slots, err := svc.AvailableSlots(ctx, drLee, jan10)
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)
	assert.Nil(t, slots)

	_, err = svc.AllAppointments(ctx)
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)

	ok, err := svc.Cancel(ctx, "abcd1234")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)

	_, err = svc.Rebook(ctx, RebookRequest{Email: "alice@x.com", Date: jan10, Time: eight, Provider: drLee})
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)
}

type contendedLocker struct{}

func (contendedLocker) WithSlotLock(context.Context, lock.SlotKey, func(context.Context) error) error {
	return lock.ErrLockNotAcquired
}

func TestReserve_ContendedLock(t *testing.T) {
	cat, err := catalog.New([]string{drLee}, catalog.DefaultTimeSlots, nil)
	require.NoError(t, err)
	svc := NewService(NewMemoryStore(), contendedLocker{}, cat, zerolog.Nop())

	_, err = svc.Reserve(context.Background(), reserveReq("Alice", "alice@x.com", jan10, eight, drLee))
	assert.ErrorIs(t, err, ErrSlotBeingBooked)
}

func TestDeclineStalePending(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := testNow
	svc := newTestService(t, store, WithClock(func() time.Time { return now }))

	stale, err := svc.Reserve(ctx, reserveReq("Alice", "alice@x.com", jan10, eight, drLee))
	require.NoError(t, err)
	confirmed, err := svc.Reserve(ctx, reserveReq("Bob", "bob@x.com", jan10, eight3, drLee))
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, confirmed.ID)
	require.NoError(t, err)

	now = testNow.Add(72 * time.Hour)
	fresh, err := svc.Reserve(ctx, reserveReq("Cara", "cara@x.com", jan11, eight, drLee))
	require.NoError(t, err)

	n, err := svc.DeclineStalePending(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.DeclineStalePending(ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := svc.Get(ctx, stale.ID)
	assert.Equal(t, StatusDeclined, got.Status)
	got, _ = svc.Get(ctx, confirmed.ID)
	assert.Equal(t, StatusConfirmed, got.Status)
	got, _ = svc.Get(ctx, fresh.ID)
	assert.Equal(t, StatusPending, got.Status)

	free, _ := svc.IsSlotAvailable(ctx, drLee, jan10, eight)
	assert.True(t, free)
}

func TestEventsRecorded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestService(t, store)

	a, err := svc.Reserve(ctx, reserveReq("Alice", "alice@x.com", jan10, eight, drLee))
	require.NoError(t, err)
	_, _ = svc.Confirm(ctx, a.ID)
	_, _ = svc.Cancel(ctx, a.ID)

	var types []string
	for _, ev := range store.Events() {
		types = append(types, ev.EventType)
		assert.Equal(t, a.ID, ev.AppointmentID)
	}
	assert.Equal(t, []string{EventAppointmentReserved, EventAppointmentConfirmed, EventAppointmentCancelled}, types)
}
