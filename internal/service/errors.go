package service

import "errors"

// Error kinds. Each carries the default user-facing message; operations may
// return a more specific message of the same kind through fail.
var (
	// ErrValidation is returned when input is missing or malformed.
	ErrValidation = errors.New("All fields are required.")

	// ErrBookingNotFound is returned when a booking does not exist.
	ErrBookingNotFound = errors.New("Booking not found.")

	// ErrCustomerNotFound is returned when a booking names an unknown customer.
	ErrCustomerNotFound = errors.New("Customer not found.")

	// ErrDriverNotFound is returned when the driver does not exist or is not a driver.
	ErrDriverNotFound = errors.New("Driver not found.")

	// ErrInvalidState is returned when a booking in a terminal state would change.
	ErrInvalidState = errors.New("Cannot update a cancelled or completed booking.")

	// ErrAlreadyCancelled is returned when cancelling a cancelled booking.
	ErrAlreadyCancelled = errors.New("Booking already cancelled.")

	// ErrAlreadyCompleted is returned when completing a completed booking.
	ErrAlreadyCompleted = errors.New("Booking already completed.")

	// ErrDuplicateRoute is returned when the customer already holds an active booking on the route.
	ErrDuplicateRoute = errors.New("This customer already has an assigned/ booked ride for the same route.")

	// ErrDriverOverlap is returned when the driver is already booked at the same date and time.
	ErrDriverOverlap = errors.New("Driver has an overlapping booking at the same date and time.")

	// ErrNoDriversAvailable is returned when auto-assignment finds no free driver.
	ErrNoDriversAvailable = errors.New("No available drivers at that time.")

	// ErrBusy is returned when the booking is locked by another change for too long.
	ErrBusy = errors.New("Another change to this booking is in progress. Please retry.")
)

// opError is an error of a known kind with a message specific to the operation.
type opError struct {
	kind error
	msg  string
}

func (e *opError) Error() string { return e.msg }
func (e *opError) Unwrap() error { return e.kind }

// fail returns an error matching kind under errors.Is but reading msg.
func fail(kind error, msg string) error {
	return &opError{kind: kind, msg: msg}
}
