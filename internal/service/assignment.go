package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"taxi/internal/domain"
	"taxi/internal/repository"
)

// AssignResult is the outcome of a successful assignment.
type AssignResult struct {
	Booking  *domain.Booking
	DriverID int64
	Message  string
}

// DriverSelector orders the drivers eligible for auto-assignment. busy holds
// drivers already booked at the booking's slot.
type DriverSelector interface {
	Candidates(ctx context.Context, booking *domain.Booking, drivers []*domain.User, busy map[int64]struct{}) []*domain.User
}

// FirstFreeByID picks free drivers in ascending ID order. It is a simple
// policy, not an optimal one.
type FirstFreeByID struct{}

// Candidates returns the free drivers in ascending ID order.
func (FirstFreeByID) Candidates(_ context.Context, _ *domain.Booking, drivers []*domain.User, busy map[int64]struct{}) []*domain.User {
	var out []*domain.User
	for _, d := range drivers {
		if _, taken := busy[d.ID]; taken || !d.IsDriver() {
			continue
		}
		out = append(out, d)
	}
	return out
}

// AssignmentPolicy attaches drivers to bookings. Guard checks and the write
// happen in one critical section: the booking, customer and driver keys are
// locked and the checks run inside the same transaction as the update.
type AssignmentPolicy struct {
	bookings repository.BookingRepository
	users    repository.UserRepository
	tx       repository.Transactor
	locker   Locker
	selector DriverSelector
	notifier Notifier
	log      logrus.FieldLogger
}

// NewAssignmentPolicy creates a new AssignmentPolicy. A nil selector means FirstFreeByID.
func NewAssignmentPolicy(
	bookings repository.BookingRepository,
	users repository.UserRepository,
	tx repository.Transactor,
	locker Locker,
	selector DriverSelector,
	notifier Notifier,
	log logrus.FieldLogger,
) *AssignmentPolicy {
	if selector == nil {
		selector = FirstFreeByID{}
	}
	return &AssignmentPolicy{
		bookings: bookings,
		users:    users,
		tx:       tx,
		locker:   locker,
		selector: selector,
		notifier: notifier,
		log:      log.WithField("component", "assignment"),
	}
}

// Assign attaches driverID to the booking.
func (s *AssignmentPolicy) Assign(ctx context.Context, bookingID, driverID int64) (*AssignResult, error) {
	driver, err := s.users.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("get driver: %w", err)
	}
	if !driver.IsDriver() {
		return nil, ErrDriverNotFound
	}

	if _, err := s.assignable(ctx, bookingID); err != nil {
		return nil, err
	}

	booking, err := s.commit(ctx, bookingID, driverID)
	if err != nil {
		return nil, err
	}

	return &AssignResult{Booking: booking, DriverID: driverID, Message: "Driver assigned."}, nil
}

// AutoAssign attaches the first eligible free driver to the booking.
// Candidates lost to a concurrent assignment are skipped.
func (s *AssignmentPolicy) AutoAssign(ctx context.Context, bookingID int64) (*AssignResult, error) {
	booking, err := s.assignable(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	drivers, err := s.users.ListByRole(ctx, domain.RoleDriver)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	busy, err := s.bookings.BusyDriverIDs(ctx, booking.Date, booking.Time, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("list busy drivers: %w", err)
	}

	for _, candidate := range s.selector.Candidates(ctx, booking, drivers, busy) {
		assigned, err := s.commit(ctx, bookingID, candidate.ID)
		if errors.Is(err, ErrDriverOverlap) {
			s.log.WithFields(logrus.Fields{"booking_id": bookingID, "driver_id": candidate.ID}).
				Debug("candidate taken concurrently, trying next")
			continue
		}
		if err != nil {
			return nil, err
		}
		return &AssignResult{
			Booking:  assigned,
			DriverID: candidate.ID,
			Message:  fmt.Sprintf("Driver %d assigned.", candidate.ID),
		}, nil
	}

	return nil, ErrNoDriversAvailable
}

func (s *AssignmentPolicy) assignable(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking.Status.IsTerminal() {
		return nil, errCannotAssign
	}
	return booking, nil
}

var errCannotAssign = fail(ErrInvalidState, "Cannot assign driver to cancelled or completed booking.")

// commit runs the guards and the write as one critical section.
func (s *AssignmentPolicy) commit(ctx context.Context, bookingID, driverID int64) (*domain.Booking, error) {
	var result *domain.Booking

	err := withBookingLock(ctx, s.bookings, s.locker, s.log, bookingID, func(locked *domain.Booking) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context, bookings repository.BookingRepository) error {
			b, err := bookings.GetForUpdate(ctx, bookingID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrBookingNotFound
				}
				return fmt.Errorf("get booking: %w", err)
			}
			if !sameDriver(b.DriverID, locked.DriverID) {
				return errDriverMoved
			}
			if !domain.CanTransition(b.Status, domain.BookingStatusAssigned) {
				return errCannotAssign
			}

			dup, err := bookings.HasActiveRoute(ctx, b.CustomerID, b.Pickup, b.Dropoff, b.ID)
			if err != nil {
				return fmt.Errorf("check duplicate route: %w", err)
			}
			if dup {
				return ErrDuplicateRoute
			}

			overlap, err := bookings.HasDriverOverlap(ctx, driverID, b.Date, b.Time, b.ID)
			if err != nil {
				return fmt.Errorf("check driver overlap: %w", err)
			}
			if overlap {
				return ErrDriverOverlap
			}

			b.DriverID = &driverID
			b.Status = domain.BookingStatusAssigned
			if err := bookings.Update(ctx, b); err != nil {
				return fmt.Errorf("update booking: %w", err)
			}
			result = b
			return nil
		})
	}, driverKey(driverID))
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"booking_id": bookingID, "driver_id": driverID}).Info("driver assigned")
	s.notifier.NotifyDriverAssigned(ctx, result)
	return result, nil
}
