package domain

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusBooked    BookingStatus = "booked"
	BookingStatusAssigned  BookingStatus = "assigned"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is allowed from s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// IsActive reports whether the booking still occupies its customer and driver.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusBooked || s == BookingStatusAssigned
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusBooked:    {BookingStatusAssigned, BookingStatusCancelled},
	BookingStatusAssigned:  {BookingStatusAssigned, BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCancelled: nil,
	BookingStatusCompleted: nil,
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to BookingStatus) bool {
	for _, s := range bookingTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Booking is a ride request made by a customer. DriverID is nil while the
// booking has never been assigned.
type Booking struct {
	ID         int64
	CustomerID int64
	Pickup     string
	Dropoff    string
	Date       string // YYYY-MM-DD
	Time       string // HH:MM
	Status     BookingStatus
	DriverID   *int64
}

// HasDriver reports whether a driver is attached to the booking.
func (b *Booking) HasDriver() bool {
	return b.DriverID != nil
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (b *Booking) Clone() *Booking {
	c := *b
	if b.DriverID != nil {
		id := *b.DriverID
		c.DriverID = &id
	}
	return &c
}
