package memory

import (
	"sort"

	"taxi/internal/domain"
	"taxi/internal/repository"
)

// table holds booking rows. It does no locking of its own.
type table struct {
	rows   map[int64]*domain.Booking
	nextID int64
}

func (t *table) clone() table {
	c := table{rows: make(map[int64]*domain.Booking, len(t.rows)), nextID: t.nextID}
	for id, b := range t.rows {
		c.rows[id] = b.Clone()
	}
	return c
}

func (t *table) create(booking *domain.Booking) error {
	t.nextID++
	booking.ID = t.nextID
	t.rows[booking.ID] = booking.Clone()
	return nil
}

func (t *table) get(id int64) (*domain.Booking, error) {
	b, ok := t.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return b.Clone(), nil
}

func (t *table) update(booking *domain.Booking) error {
	if _, ok := t.rows[booking.ID]; !ok {
		return repository.ErrNotFound
	}
	t.rows[booking.ID] = booking.Clone()
	return nil
}

// filter returns matching rows newest first.
func (t *table) filter(keep func(*domain.Booking) bool) []*domain.Booking {
	var out []*domain.Booking
	for _, b := range t.rows {
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (t *table) byDriver(driverID int64) []*domain.Booking {
	return t.filter(func(b *domain.Booking) bool {
		return b.DriverID != nil && *b.DriverID == driverID && b.Status != domain.BookingStatusCancelled
	})
}

func (t *table) hasActiveRoute(customerID int64, pickup, dropoff string, excludeID int64) bool {
	for _, b := range t.rows {
		if b.ID != excludeID && b.CustomerID == customerID && b.Pickup == pickup &&
			b.Dropoff == dropoff && b.Status.IsActive() {
			return true
		}
	}
	return false
}

func (t *table) hasDriverOverlap(driverID int64, date, time string, excludeID int64) bool {
	for _, b := range t.rows {
		if b.ID != excludeID && b.DriverID != nil && *b.DriverID == driverID &&
			b.Date == date && b.Time == time && b.Status.IsActive() {
			return true
		}
	}
	return false
}

func (t *table) busyDrivers(date, time string, excludeID int64) map[int64]struct{} {
	busy := make(map[int64]struct{})
	for _, b := range t.rows {
		if b.ID != excludeID && b.DriverID != nil && b.Date == date && b.Time == time && b.Status.IsActive() {
			busy[*b.DriverID] = struct{}{}
		}
	}
	return busy
}
