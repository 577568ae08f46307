// README: Trip store backed by PostgreSQL.
package trip

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumo/internal/modules/pricing"
	"lumo/internal/types"
)

const (
	uniqueViolation = "23505"
	activeTripIndex = "uq_trips_passenger_active"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, t *Trip) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trips (
			id, passenger_id, driver_id, quote_id, status, status_version,
			country, vehicle_type, distance_km, currency, estimated_fare, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12
		)`,
		string(t.ID),
		string(t.PassengerID),
		toStringPtr(t.DriverID),
		string(t.QuoteID),
		string(t.Status),
		t.StatusVersion,
		t.Country,
		string(t.VehicleType),
		t.DistanceKm,
		t.EstimatedFare.Currency,
		t.EstimatedFare.Amount,
		t.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeTripIndex {
		return ErrActiveTrip
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, passenger_id, driver_id, quote_id, status, status_version,
		       country, vehicle_type, distance_km, currency, estimated_fare,
		       actual_fare, actual_distance_km,
		       created_at, accepted_at, started_at, completed_at, cancelled_at, cancel_reason
		FROM trips
		WHERE id = $1`, string(id),
	)

	var (
		t          Trip
		driverID   *string
		vehicle    string
		actualFare *int64
	)
	err := row.Scan(
		&t.ID, &t.PassengerID, &driverID, &t.QuoteID, &t.Status, &t.StatusVersion,
		&t.Country, &vehicle, &t.DistanceKm, &t.EstimatedFare.Currency, &t.EstimatedFare.Amount,
		&actualFare, &t.ActualDistanceKm,
		&t.CreatedAt, &t.AcceptedAt, &t.StartedAt, &t.CompletedAt, &t.CancelledAt, &t.CancelReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if driverID != nil {
		d := types.ID(*driverID)
		t.DriverID = &d
	}
	t.VehicleType = pricing.ParseVehicleType(vehicle)
	if actualFare != nil {
		t.ActualFare = &types.Money{Amount: *actualFare, Currency: t.EstimatedFare.Currency}
	}
	return &t, nil
}

func (s *Store) UpdateStatus(ctx context.Context, tr Transition) (bool, error) {
	var fare *int64
	if tr.ActualFare != nil {
		fare = &tr.ActualFare.Amount
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status = $1,
		    status_version = status_version + 1,
		    driver_id = COALESCE($2, driver_id),
		    actual_fare = COALESCE($3, actual_fare),
		    actual_distance_km = COALESCE($4, actual_distance_km),
		    cancel_reason = COALESCE($5, cancel_reason),
		    accepted_at = CASE WHEN $1 = 'accepted' THEN NOW() ELSE accepted_at END,
		    started_at = CASE WHEN $1 = 'in_progress' THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $6 AND status = $7 AND status_version = $8`,
		string(tr.To),
		toStringPtr(tr.DriverID),
		fare,
		tr.ActualDistanceKm,
		tr.CancelReason,
		string(tr.TripID),
		string(tr.From),
		tr.Version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trip_state_events (
			trip_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.TripID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *Store) HasActiveByPassenger(ctx context.Context, passengerID types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM trips
			WHERE passenger_id = $1
			  AND status = ANY($2)
		)`, string(passengerID), statusNames(ActiveStatuses),
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) ListEvents(ctx context.Context, tripID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, from_status, to_status, actor_type, actor_id, created_at
		FROM trip_state_events
		WHERE trip_id = $1
		ORDER BY id`, string(tripID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			actorID *string
		)
		if err := rows.Scan(&e.ID, &e.TripID, &e.FromStatus, &e.ToStatus, &e.ActorType, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actorID != nil {
			id := types.ID(*actorID)
			e.ActorID = &id
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func statusNames(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

var _ Repository = (*Store)(nil)
