package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"taxi/internal/domain"
	"taxi/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[int64]*domain.User

	// Counters for verification
	ListByRoleCallCount int32

	// Error injection
	GetByIDError    error
	ListByRoleError error
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[int64]*domain.User)}
}

// AddUser adds a user to the mock repository.
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *u
	return &copy, nil
}

func (m *MockUserRepository) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	atomic.AddInt32(&m.ListByRoleCallCount, 1)
	if m.ListByRoleError != nil {
		return nil, m.ListByRoleError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.User
	for _, u := range m.users {
		if u.Role == role {
			copy := *u
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is a mock implementation of BookingRepository and
// Transactor. WithinTx serializes transactions but does not roll back.
type MockBookingRepository struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	bookings map[int64]*domain.Booking
	nextID   int64

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32
	TxCallCount     int32

	// Error injection
	CreateError        error
	UpdateError        error
	BusyDriverIDsError error
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{bookings: make(map[int64]*domain.Booking)}
}

func (m *MockBookingRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, bookings repository.BookingRepository) error) error {
	atomic.AddInt32(&m.TxCallCount, 1)
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, m)
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	booking.ID = m.nextID
	m.bookings[booking.ID] = booking.Clone()
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return b.Clone(), nil
}

func (m *MockBookingRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return m.GetByID(ctx, id)
}

func (m *MockBookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[booking.ID]; !ok {
		return repository.ErrNotFound
	}
	m.bookings[booking.ID] = booking.Clone()
	return nil
}

func (m *MockBookingRepository) ListAll(ctx context.Context) ([]*domain.Booking, error) {
	return m.filter(func(*domain.Booking) bool { return true }), nil
}

func (m *MockBookingRepository) ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Booking, error) {
	return m.filter(func(b *domain.Booking) bool { return b.CustomerID == customerID }), nil
}

func (m *MockBookingRepository) ListByDriver(ctx context.Context, driverID int64) ([]*domain.Booking, error) {
	return m.filter(func(b *domain.Booking) bool {
		return b.DriverID != nil && *b.DriverID == driverID && b.Status != domain.BookingStatusCancelled
	}), nil
}

func (m *MockBookingRepository) HasActiveRoute(ctx context.Context, customerID int64, pickup, dropoff string, excludeID int64) (bool, error) {
	found := m.filter(func(b *domain.Booking) bool {
		return b.ID != excludeID && b.CustomerID == customerID && b.Pickup == pickup && b.Dropoff == dropoff && b.Status.IsActive()
	})
	return len(found) > 0, nil
}

func (m *MockBookingRepository) HasDriverOverlap(ctx context.Context, driverID int64, date, time string, excludeID int64) (bool, error) {
	found := m.filter(func(b *domain.Booking) bool {
		return b.ID != excludeID && b.DriverID != nil && *b.DriverID == driverID && b.Date == date && b.Time == time && b.Status.IsActive()
	})
	return len(found) > 0, nil
}

func (m *MockBookingRepository) BusyDriverIDs(ctx context.Context, date, time string, excludeID int64) (map[int64]struct{}, error) {
	if m.BusyDriverIDsError != nil {
		return nil, m.BusyDriverIDsError
	}
	busy := make(map[int64]struct{})
	for _, b := range m.filter(func(b *domain.Booking) bool {
		return b.ID != excludeID && b.DriverID != nil && b.Date == date && b.Time == time && b.Status.IsActive()
	}) {
		busy[*b.DriverID] = struct{}{}
	}
	return busy, nil
}

func (m *MockBookingRepository) filter(keep func(*domain.Booking) bool) []*domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Booking
	for _, b := range m.bookings {
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// GetBooking returns the stored booking for assertions.
func (m *MockBookingRepository) GetBooking(id int64) *domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.bookings[id]; ok {
		return b.Clone()
	}
	return nil
}

// CountBookings returns the number of bookings.
func (m *MockBookingRepository) CountBookings() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bookings)
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// MockNotifier counts notifications by type.
type MockNotifier struct {
	Created   int32
	Assigned  int32
	Cancelled int32
	Completed int32
}

func (m *MockNotifier) NotifyBookingCreated(context.Context, *domain.Booking) {
	atomic.AddInt32(&m.Created, 1)
}

func (m *MockNotifier) NotifyDriverAssigned(context.Context, *domain.Booking) {
	atomic.AddInt32(&m.Assigned, 1)
}

func (m *MockNotifier) NotifyBookingCancelled(context.Context, *domain.Booking) {
	atomic.AddInt32(&m.Cancelled, 1)
}

func (m *MockNotifier) NotifyBookingCompleted(context.Context, *domain.Booking) {
	atomic.AddInt32(&m.Completed, 1)
}

// ──────────────────────────────────────────────
// MOCK ADDRESS RESOLVER
// ──────────────────────────────────────────────

// MockResolver resolves addresses from a fixed table.
type MockResolver struct {
	mu        sync.RWMutex
	addresses map[string]domain.Coordinates
	CallCount int32
}

// NewMockResolver creates a resolver that knows the given addresses.
func NewMockResolver(addresses map[string]domain.Coordinates) *MockResolver {
	return &MockResolver{addresses: addresses}
}

func (m *MockResolver) Resolve(ctx context.Context, address string) (domain.Coordinates, bool) {
	atomic.AddInt32(&m.CallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.addresses[address]
	return c, ok
}
