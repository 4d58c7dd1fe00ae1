package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taxi/internal/domain"
	"taxi/internal/repository"
)

const bookingColumns = `id, customer_id, pickup, dropoff, "date", "time", status, driver_id`

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

// Create persists a new booking and sets its ID.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (customer_id, pickup, dropoff, "date", "time", status, driver_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	return r.q.QueryRowContext(ctx, query,
		booking.CustomerID,
		booking.Pickup,
		booking.Dropoff,
		booking.Date,
		booking.Time,
		string(booking.Status),
		nullDriverID(booking.DriverID),
	).Scan(&booking.ID)
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetForUpdate retrieves a booking by ID and locks the row.
func (r *BookingRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *BookingRepository) getOne(ctx context.Context, query string, id int64) (*domain.Booking, error) {
	booking, err := scanBooking(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return booking, nil
}

// Update overwrites every mutable column of an existing booking.
func (r *BookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	query := `
		UPDATE bookings
		SET pickup = $1, dropoff = $2, "date" = $3, "time" = $4, status = $5, driver_id = $6
		WHERE id = $7
	`

	result, err := r.q.ExecContext(ctx, query,
		booking.Pickup,
		booking.Dropoff,
		booking.Date,
		booking.Time,
		string(booking.Status),
		nullDriverID(booking.DriverID),
		booking.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListAll retrieves every booking, newest first.
func (r *BookingRepository) ListAll(ctx context.Context) ([]*domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY id DESC`)
}

// ListByCustomer retrieves a customer's bookings, newest first.
func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE customer_id = $1 ORDER BY id DESC`, customerID)
}

// ListByDriver retrieves a driver's non-cancelled bookings, newest first.
func (r *BookingRepository) ListByDriver(ctx context.Context, driverID int64) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE driver_id = $1 AND status <> $2 ORDER BY id DESC`
	return r.list(ctx, query, driverID, string(domain.BookingStatusCancelled))
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// HasActiveRoute reports whether the customer has another active booking on the same route.
func (r *BookingRepository) HasActiveRoute(ctx context.Context, customerID int64, pickup, dropoff string, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE customer_id = $1 AND pickup = $2 AND dropoff = $3
			  AND status IN ('booked', 'assigned') AND id <> $4
		)
	`

	var exists bool
	err := r.q.QueryRowContext(ctx, query, customerID, pickup, dropoff, excludeID).Scan(&exists)
	return exists, err
}

// HasDriverOverlap reports whether the driver has another active booking at the same slot.
func (r *BookingRepository) HasDriverOverlap(ctx context.Context, driverID int64, date, time string, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE driver_id = $1 AND "date" = $2 AND "time" = $3
			  AND status IN ('booked', 'assigned') AND id <> $4
		)
	`

	var exists bool
	err := r.q.QueryRowContext(ctx, query, driverID, date, time, excludeID).Scan(&exists)
	return exists, err
}

// BusyDriverIDs returns the drivers already holding an active booking at the slot.
func (r *BookingRepository) BusyDriverIDs(ctx context.Context, date, time string, excludeID int64) (map[int64]struct{}, error) {
	query := `
		SELECT DISTINCT driver_id FROM bookings
		WHERE driver_id IS NOT NULL AND "date" = $1 AND "time" = $2
		  AND status IN ('booked', 'assigned') AND id <> $3
	`

	rows, err := r.q.QueryContext(ctx, query, date, time, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	busy := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		busy[id] = struct{}{}
	}
	return busy, rows.Err()
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var booking domain.Booking
	var status string
	var driverID sql.NullInt64

	if err := row.Scan(
		&booking.ID,
		&booking.CustomerID,
		&booking.Pickup,
		&booking.Dropoff,
		&booking.Date,
		&booking.Time,
		&status,
		&driverID,
	); err != nil {
		return nil, err
	}

	booking.Status = domain.BookingStatus(status)
	if !booking.Status.Valid() {
		return nil, fmt.Errorf("booking %d status %q: %w", booking.ID, status, repository.ErrCorruptRow)
	}
	if driverID.Valid {
		id := driverID.Int64
		booking.DriverID = &id
	}

	return &booking, nil
}

func nullDriverID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
