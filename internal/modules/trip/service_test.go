package trip

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumo/internal/modules/pricing"
	"lumo/internal/modules/quote"
	"lumo/internal/types"
)

// memStore is an in-memory Repository with the same optimistic-version semantics as Store.
type memStore struct {
	mu     sync.Mutex
	trips  map[types.ID]*Trip
	events []Event
	// beforeUpdate lets a test bump the version to simulate a concurrent writer.
	beforeUpdate func(t *Trip)
}

func newMemStore() *memStore {
	return &memStore{trips: make(map[types.ID]*Trip)}
}

func (m *memStore) Create(_ context.Context, t *Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasActiveLocked(t.PassengerID) {
		return ErrActiveTrip
	}
	cp := *t
	m.trips[t.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id types.ID) (*Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) UpdateStatus(_ context.Context, tr Transition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tr.TripID]
	if !ok {
		return false, nil
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(t)
	}
	if t.Status != tr.From || t.StatusVersion != tr.Version {
		return false, nil
	}
	now := time.Now()
	t.Status = tr.To
	t.StatusVersion++
	if tr.DriverID != nil {
		t.DriverID = tr.DriverID
	}
	if tr.ActualFare != nil {
		t.ActualFare = tr.ActualFare
	}
	if tr.ActualDistanceKm != nil {
		t.ActualDistanceKm = tr.ActualDistanceKm
	}
	if tr.CancelReason != nil {
		t.CancelReason = tr.CancelReason
	}
	switch tr.To {
	case StatusAccepted:
		t.AcceptedAt = &now
	case StatusInProgress:
		t.StartedAt = &now
	case StatusCompleted:
		t.CompletedAt = &now
	case StatusCancelled:
		t.CancelledAt = &now
	}
	return true, nil
}

func (m *memStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.ID = int64(len(m.events) + 1)
	m.events = append(m.events, cp)
	return nil
}

func (m *memStore) HasActiveByPassenger(_ context.Context, passengerID types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasActiveLocked(passengerID), nil
}

// hasActiveLocked mirrors the partial unique index on active trips.
func (m *memStore) hasActiveLocked(passengerID types.ID) bool {
	for _, t := range m.trips {
		if t.PassengerID == passengerID && slices.Contains(ActiveStatuses, t.Status) {
			return true
		}
	}
	return false
}

func (m *memStore) ListEvents(_ context.Context, tripID types.ID) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.TripID == tripID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memQuotes map[types.ID]*quote.Quote

func (q memQuotes) Get(_ context.Context, id types.ID) (*quote.Quote, error) {
	if v, ok := q[id]; ok {
		return v, nil
	}
	return nil, quote.ErrNotFound
}

func newQuote(id, passenger types.ID, km float64, country string, vehicle pricing.VehicleType) *quote.Quote {
	return &quote.Quote{
		ID:          id,
		PassengerID: passenger,
		Country:     country,
		VehicleType: vehicle,
		DistanceKm:  km,
		Price:       pricing.CalculateTripPrice(km, country, vehicle),
	}
}

func setup(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	quotes := memQuotes{
		"q-cl":    newQuote("q-cl", "p1", 100, "CL", pricing.VehicleUnknown),
		"q-sedan": newQuote("q-sedan", "p2", 100, "CL", pricing.VehicleSedan),
		"q-mx":    newQuote("q-mx", "p3", 10, "MX", pricing.VehicleSUV),
	}
	return NewService(store, quotes, pricing.NewService(zerolog.Nop()), zerolog.Nop()), store
}

func TestCreate(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	trip, err := svc.Create(ctx, CreateCommand{PassengerID: "p1", QuoteID: "q-cl"})
	require.NoError(t, err)
	assert.Equal(t, StatusRequested, trip.Status)
	assert.Equal(t, types.Money{Amount: 137000, Currency: "CLP"}, trip.EstimatedFare)
	assert.Equal(t, "CL", trip.Country)

	events, err := store.ListEvents(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, StatusNone, events[0].FromStatus)
	assert.Equal(t, StatusRequested, events[0].ToStatus)
}

func TestCreate_Errors(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCommand{PassengerID: "p1"})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Create(ctx, CreateCommand{PassengerID: "p1", QuoteID: "expired"})
	assert.ErrorIs(t, err, ErrQuoteUnavailable)

	_, err = svc.Create(ctx, CreateCommand{PassengerID: "intruder", QuoteID: "q-cl"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(ctx, CreateCommand{PassengerID: "p1", QuoteID: "q-cl"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateCommand{PassengerID: "p1", QuoteID: "q-cl"})
	assert.ErrorIs(t, err, ErrActiveTrip)
}

// staleActiveCheck reports no active trip, as a read racing another booking would.
type staleActiveCheck struct {
	*memStore
}

func (staleActiveCheck) HasActiveByPassenger(context.Context, types.ID) (bool, error) {
	return false, nil
}

func TestCreate_ConcurrentBookingsKeepOneActiveTrip(t *testing.T) {
	store := staleActiveCheck{newMemStore()}
	quotes := memQuotes{"q-cl": newQuote("q-cl", "p1", 100, "CL", pricing.VehicleUnknown)}
	svc := NewService(store, quotes, pricing.NewService(zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()

	const bookings = 10
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		booked int
	)
	for i := 0; i < bookings; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, CreateCommand{PassengerID: "p1", QuoteID: "q-cl"})
			if err == nil {
				mu.Lock()
				booked++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrActiveTrip) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, booked)
	assert.Len(t, store.trips, 1)
}

func TestFullLifecycle_SettlesOnMeasuredDistance(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	trip, err := svc.Create(ctx, CreateCommand{PassengerID: "p2", QuoteID: "q-sedan"})
	require.NoError(t, err)
	assert.Equal(t, int64(123800), trip.EstimatedFare.Amount)

	trip, err = svc.Accept(ctx, AcceptCommand{TripID: trip.ID, DriverID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, trip.Status)
	require.NotNil(t, trip.DriverID)
	assert.Equal(t, types.ID("d1"), *trip.DriverID)

	_, err = svc.Start(ctx, StartCommand{TripID: trip.ID, DriverID: "d2"})
	assert.ErrorIs(t, err, ErrForbidden)

	trip, err = svc.Start(ctx, StartCommand{TripID: trip.ID, DriverID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, trip.Status)

	km := 41.0
	trip, err = svc.Complete(ctx, CompleteCommand{TripID: trip.ID, DriverID: "d1", DistanceKm: &km})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, trip.Status)
	require.NotNil(t, trip.ActualFare)
	// Sedan in Chile: 5000 + (40*1500 + 1200) * 0.9 = 60080.
	assert.Equal(t, types.Money{Amount: 60080, Currency: "CLP"}, *trip.ActualFare)
	assert.Equal(t, 3, trip.StatusVersion)

	events, err := svc.Events(ctx, trip.ID)
	require.NoError(t, err)
	var path []Status
	for _, e := range events {
		path = append(path, e.ToStatus)
	}
	assert.Equal(t, []Status{StatusRequested, StatusAccepted, StatusInProgress, StatusCompleted}, path)

	active, err := store.HasActiveByPassenger(ctx, "p2")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestComplete_WithoutDistanceKeepsEstimate(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	trip, err := svc.Create(ctx, CreateCommand{PassengerID: "p3", QuoteID: "q-mx"})
	require.NoError(t, err)
	_, err = svc.Accept(ctx, AcceptCommand{TripID: trip.ID, DriverID: "d1"})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, CompleteCommand{TripID: trip.ID, DriverID: "d1"})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Start(ctx, StartCommand{TripID: trip.ID, DriverID: "d1"})
	require.NoError(t, err)

	bad := -5.0
	_, err = svc.Complete(ctx, CompleteCommand{TripID: trip.ID, DriverID: "d1", DistanceKm: &bad})
	assert.ErrorIs(t, err, ErrBadRequest)

	trip, err = svc.Complete(ctx, CompleteCommand{TripID: trip.ID, DriverID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, trip.EstimatedFare, *trip.ActualFare)
	assert.Nil(t, trip.ActualDistanceKm)
}

func TestCancel(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	trip, err := svc.Create(ctx, CreateCommand{PassengerID: "p1", QuoteID: "q-cl"})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, CancelCommand{TripID: trip.ID, ActorType: "passenger", ActorID: "p2"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Cancel(ctx, CancelCommand{TripID: trip.ID, ActorType: "driver", ActorID: "d1"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Cancel(ctx, CancelCommand{TripID: trip.ID, ActorType: "alien"})
	assert.ErrorIs(t, err, ErrBadRequest)

	trip, err = svc.Cancel(ctx, CancelCommand{TripID: trip.ID, ActorType: "passenger", ActorID: "p1", Reason: "changed plans"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, trip.Status)
	require.NotNil(t, trip.CancelReason)
	assert.Equal(t, "changed plans", *trip.CancelReason)

	_, err = svc.Accept(ctx, AcceptCommand{TripID: trip.ID, DriverID: "d1"})
	assert.ErrorIs(t, err, ErrInvalidState)

	// A cancelled trip frees the passenger to book again.
	_, err = svc.Create(ctx, CreateCommand{PassengerID: "p1", QuoteID: "q-cl"})
	assert.NoError(t, err)
}

func TestCancel_InProgressIsRejected(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	trip, err := svc.Create(ctx, CreateCommand{PassengerID: "p1", QuoteID: "q-cl"})
	require.NoError(t, err)
	_, err = svc.Accept(ctx, AcceptCommand{TripID: trip.ID, DriverID: "d1"})
	require.NoError(t, err)
	_, err = svc.Start(ctx, StartCommand{TripID: trip.ID, DriverID: "d1"})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, CancelCommand{TripID: trip.ID, ActorType: "driver", ActorID: "d1"})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAccept_LostRaceReturnsConflict(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	trip, err := svc.Create(ctx, CreateCommand{PassengerID: "p1", QuoteID: "q-cl"})
	require.NoError(t, err)

	store.beforeUpdate = func(t *Trip) { t.StatusVersion++ }
	_, err = svc.Accept(ctx, AcceptCommand{TripID: trip.ID, DriverID: "d1"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAccept_ConcurrentDriversOnlyOneWins(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	trip, err := svc.Create(ctx, CreateCommand{PassengerID: "p1", QuoteID: "q-cl"})
	require.NoError(t, err)

	const drivers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Accept(ctx, AcceptCommand{TripID: trip.ID, DriverID: types.ID("d" + string(rune('a'+i)))})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidState) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestAccept_PassengerCannotDriveOwnTrip(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	trip, err := svc.Create(ctx, CreateCommand{PassengerID: "p1", QuoteID: "q-cl"})
	require.NoError(t, err)
	_, err = svc.Accept(ctx, AcceptCommand{TripID: trip.ID, DriverID: "p1"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Accept(ctx, AcceptCommand{TripID: trip.ID})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Events(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
