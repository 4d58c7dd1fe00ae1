package repository

import (
	"context"

	"taxi/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking and sets its ID.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)

	// GetForUpdate retrieves a booking by ID and locks its row until the
	// surrounding transaction ends. Outside a transaction it behaves like GetByID.
	GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error)

	// Update overwrites every mutable column of an existing booking.
	Update(ctx context.Context, booking *domain.Booking) error

	// ListAll retrieves every booking, newest first.
	ListAll(ctx context.Context) ([]*domain.Booking, error)

	// ListByCustomer retrieves a customer's bookings, newest first.
	ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Booking, error)

	// ListByDriver retrieves a driver's non-cancelled bookings, newest first.
	ListByDriver(ctx context.Context, driverID int64) ([]*domain.Booking, error)

	// HasActiveRoute reports whether the customer has another booked or
	// assigned booking with the same pickup and dropoff.
	HasActiveRoute(ctx context.Context, customerID int64, pickup, dropoff string, excludeID int64) (bool, error)

	// HasDriverOverlap reports whether the driver has another booked or
	// assigned booking at the same date and time.
	HasDriverOverlap(ctx context.Context, driverID int64, date, time string, excludeID int64) (bool, error)

	// BusyDriverIDs returns the drivers holding a booked or assigned booking
	// at the given date and time, ignoring excludeID.
	BusyDriverIDs(ctx context.Context, date, time string, excludeID int64) (map[int64]struct{}, error)
}

// Transactor runs fn against a BookingRepository bound to a single
// transaction. The transaction commits if fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, bookings BookingRepository) error) error
}
