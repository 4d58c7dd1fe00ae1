package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"taxi/internal/domain"
	"taxi/internal/repository"
)

const (
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04"
	maxLockAttempts = 3
)

// BookingLedger is the source of truth for booking state. Every mutation of
// a booking runs under the booking's lock and inside a repository transaction.
type BookingLedger struct {
	bookings repository.BookingRepository
	users    repository.UserRepository
	tx       repository.Transactor
	locker   Locker
	notifier Notifier
	log      logrus.FieldLogger
}

// NewBookingLedger creates a new BookingLedger.
func NewBookingLedger(
	bookings repository.BookingRepository,
	users repository.UserRepository,
	tx repository.Transactor,
	locker Locker,
	notifier Notifier,
	log logrus.FieldLogger,
) *BookingLedger {
	return &BookingLedger{
		bookings: bookings,
		users:    users,
		tx:       tx,
		locker:   locker,
		notifier: notifier,
		log:      log.WithField("component", "booking_ledger"),
	}
}

// CreateBookingRequest contains the parameters for creating a booking.
type CreateBookingRequest struct {
	CustomerID int64
	Pickup     string
	Dropoff    string
	Date       string
	Time       string
}

// UpdateBookingRequest holds the fields to overwrite. Nil fields are left unchanged.
type UpdateBookingRequest struct {
	Pickup  *string
	Dropoff *string
	Date    *string
	Time    *string
}

// Create inserts a new booking with status booked and no driver.
func (s *BookingLedger) Create(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	booking := &domain.Booking{
		CustomerID: req.CustomerID,
		Pickup:     strings.TrimSpace(req.Pickup),
		Dropoff:    strings.TrimSpace(req.Dropoff),
		Date:       strings.TrimSpace(req.Date),
		Time:       strings.TrimSpace(req.Time),
		Status:     domain.BookingStatusBooked,
	}
	if booking.CustomerID <= 0 || booking.Pickup == "" || booking.Dropoff == "" || booking.Date == "" || booking.Time == "" {
		return nil, ErrValidation
	}
	if err := validateSlot(booking.Date, booking.Time); err != nil {
		return nil, err
	}

	customer, err := s.users.GetByID(ctx, booking.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if customer.Role != domain.RoleCustomer {
		return nil, ErrCustomerNotFound
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.WithFields(logrus.Fields{"booking_id": booking.ID, "customer_id": booking.CustomerID}).Info("booking created")
	s.notifier.NotifyBookingCreated(ctx, booking)
	return booking, nil
}

// Get returns a booking by ID.
func (s *BookingLedger) Get(ctx context.Context, id int64) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

// Update overwrites the supplied fields of a non-terminal booking. Status
// and driver are never changed. If an assigned booking moves to another
// slot, its driver must be free at the new slot; if it moves to another
// route, the customer must not already hold that route.
func (s *BookingLedger) Update(ctx context.Context, id int64, req UpdateBookingRequest) (*domain.Booking, error) {
	var updated *domain.Booking
	err := s.mutate(ctx, id, func(ctx context.Context, bookings repository.BookingRepository, b *domain.Booking) error {
		if b.Status.IsTerminal() {
			return ErrInvalidState
		}

		slotChanged, routeChanged := false, false
		for _, f := range []struct {
			in  *string
			out *string
		}{
			{req.Pickup, &b.Pickup},
			{req.Dropoff, &b.Dropoff},
			{req.Date, &b.Date},
			{req.Time, &b.Time},
		} {
			if f.in == nil {
				continue
			}
			v := strings.TrimSpace(*f.in)
			if v == "" {
				return ErrValidation
			}
			if v != *f.out {
				switch f.out {
				case &b.Date, &b.Time:
					slotChanged = true
				default:
					routeChanged = true
				}
			}
			*f.out = v
		}
		if err := validateSlot(b.Date, b.Time); err != nil {
			return err
		}

		if routeChanged && b.DriverID != nil {
			duplicate, err := bookings.HasActiveRoute(ctx, b.CustomerID, b.Pickup, b.Dropoff, b.ID)
			if err != nil {
				return fmt.Errorf("check duplicate route: %w", err)
			}
			if duplicate {
				return ErrDuplicateRoute
			}
		}

		if slotChanged && b.DriverID != nil {
			overlap, err := bookings.HasDriverOverlap(ctx, *b.DriverID, b.Date, b.Time, b.ID)
			if err != nil {
				return fmt.Errorf("check driver overlap: %w", err)
			}
			if overlap {
				return ErrDriverOverlap
			}
		}

		if err := bookings.Update(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("booking_id", id).Info("booking updated")
	return updated, nil
}

// Cancel marks a booking cancelled. The driver stays attached for history.
func (s *BookingLedger) Cancel(ctx context.Context, id int64) (*domain.Booking, error) {
	booking, err := s.transition(ctx, id, domain.BookingStatusCancelled, func(b *domain.Booking) error {
		switch b.Status {
		case domain.BookingStatusCancelled:
			return ErrAlreadyCancelled
		case domain.BookingStatusCompleted:
			return fail(ErrInvalidState, "Cannot cancel a completed booking.")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyBookingCancelled(ctx, booking)
	return booking, nil
}

// Complete marks an assigned booking completed.
func (s *BookingLedger) Complete(ctx context.Context, id int64) (*domain.Booking, error) {
	booking, err := s.transition(ctx, id, domain.BookingStatusCompleted, func(b *domain.Booking) error {
		switch b.Status {
		case domain.BookingStatusCompleted:
			return ErrAlreadyCompleted
		case domain.BookingStatusCancelled:
			return fail(ErrInvalidState, "Cannot complete a cancelled booking.")
		case domain.BookingStatusBooked:
			return fail(ErrInvalidState, "Cannot complete a booking with no driver assigned.")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyBookingCompleted(ctx, booking)
	return booking, nil
}

// ListAll returns every booking, newest first.
func (s *BookingLedger) ListAll(ctx context.Context) ([]*domain.Booking, error) {
	return s.bookings.ListAll(ctx)
}

// ListByCustomer returns a customer's bookings, newest first.
func (s *BookingLedger) ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Booking, error) {
	return s.bookings.ListByCustomer(ctx, customerID)
}

// ListByDriver returns a driver's bookings other than cancelled ones.
func (s *BookingLedger) ListByDriver(ctx context.Context, driverID int64) ([]*domain.Booking, error) {
	return s.bookings.ListByDriver(ctx, driverID)
}

func (s *BookingLedger) transition(ctx context.Context, id int64, to domain.BookingStatus, check func(*domain.Booking) error) (*domain.Booking, error) {
	var result *domain.Booking
	err := s.mutate(ctx, id, func(ctx context.Context, bookings repository.BookingRepository, b *domain.Booking) error {
		if err := check(b); err != nil {
			return err
		}
		if !domain.CanTransition(b.Status, to) {
			return ErrInvalidState
		}
		b.Status = to
		if err := bookings.Update(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"booking_id": id, "status": to}).Info("booking status changed")
	return result, nil
}

// mutate locks the booking together with its customer and current driver,
// then runs fn in a transaction on a freshly read copy of the booking.
func (s *BookingLedger) mutate(ctx context.Context, id int64, fn func(ctx context.Context, bookings repository.BookingRepository, b *domain.Booking) error) error {
	return withBookingLock(ctx, s.bookings, s.locker, s.log, id, func(locked *domain.Booking) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context, bookings repository.BookingRepository) error {
			b, err := bookings.GetForUpdate(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrBookingNotFound
				}
				return fmt.Errorf("get booking: %w", err)
			}
			if !sameDriver(b.DriverID, locked.DriverID) {
				return errDriverMoved
			}
			return fn(ctx, bookings, b)
		})
	})
}

// errDriverMoved means the booking's driver changed between reading it and
// taking its lock; the caller retries with the new driver's key.
var errDriverMoved = errors.New("booking driver changed while locking")

// withBookingLock reads the booking, locks its booking, customer and driver
// keys, and runs fn. It retries when the driver changed before the lock was held.
func withBookingLock(
	ctx context.Context,
	bookings repository.BookingRepository,
	locker Locker,
	log logrus.FieldLogger,
	id int64,
	fn func(locked *domain.Booking) error,
	extraKeys ...string,
) error {
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		b, err := bookings.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBookingNotFound
			}
			return fmt.Errorf("get booking: %w", err)
		}

		keys := append([]string{bookingKey(b.ID), customerKey(b.CustomerID)}, extraKeys...)
		if b.DriverID != nil {
			keys = append(keys, driverKey(*b.DriverID))
		}

		release, err := locker.Lock(ctx, keys...)
		if err != nil {
			log.WithError(err).WithField("booking_id", id).Warn("booking lock not acquired")
			return ErrBusy
		}
		err = fn(b)
		release()

		if !errors.Is(err, errDriverMoved) {
			return err
		}
	}
	return ErrBusy
}

func sameDriver(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func validateSlot(date, clock string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return fail(ErrValidation, "Date must be in YYYY-MM-DD format.")
	}
	if _, err := time.Parse(timeLayout, clock); err != nil {
		return fail(ErrValidation, "Time must be in HH:MM format.")
	}
	return nil
}
