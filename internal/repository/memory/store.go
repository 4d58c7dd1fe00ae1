// Package memory provides in-process implementations of the repositories,
// used by tests and by the server when STORAGE_BACKEND=memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"taxi/internal/domain"
	"taxi/internal/repository"
)

// Ensure interfaces are satisfied.
var (
	_ repository.UserRepository    = (*UserRepository)(nil)
	_ repository.BookingRepository = (*BookingRepository)(nil)
	_ repository.BookingRepository = (*txView)(nil)
	_ repository.Transactor        = (*BookingRepository)(nil)
)

// UserRepository keeps users in a map.
type UserRepository struct {
	mu    sync.RWMutex
	users map[int64]*domain.User
}

// NewUserRepository creates a UserRepository holding the given users.
func NewUserRepository(users ...*domain.User) *UserRepository {
	r := &UserRepository{users: make(map[int64]*domain.User)}
	for _, u := range users {
		r.Add(u)
	}
	return r
}

// Add inserts or replaces a user.
func (r *UserRepository) Add(user *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := *user
	r.users[u.ID] = &u
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *u
	return &copy, nil
}

// ListByRole retrieves all users with the given role ordered by ID.
func (r *UserRepository) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var users []*domain.User
	for _, u := range r.users {
		if u.Role == role {
			copy := *u
			users = append(users, &copy)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// BookingRepository keeps bookings in a map guarded by a single mutex.
// WithinTx holds the mutex for the whole callback, so transactions are
// serializable.
type BookingRepository struct {
	mu sync.Mutex
	t  table
}

// NewBookingRepository creates an empty BookingRepository.
func NewBookingRepository() *BookingRepository {
	return &BookingRepository{t: table{rows: make(map[int64]*domain.Booking)}}
}

// WithinTx runs fn while holding the repository lock. Changes made through
// the callback's repository are discarded if fn fails.
func (r *BookingRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, bookings repository.BookingRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.t.clone()
	if err := fn(ctx, &txView{t: &r.t}); err != nil {
		r.t = snapshot
		return err
	}
	return nil
}

func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.create(booking)
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.get(id)
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r *BookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.update(booking)
}

func (r *BookingRepository) ListAll(ctx context.Context) ([]*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.filter(func(*domain.Booking) bool { return true }), nil
}

func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.filter(func(b *domain.Booking) bool { return b.CustomerID == customerID }), nil
}

func (r *BookingRepository) ListByDriver(ctx context.Context, driverID int64) ([]*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.byDriver(driverID), nil
}

func (r *BookingRepository) HasActiveRoute(ctx context.Context, customerID int64, pickup, dropoff string, excludeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.hasActiveRoute(customerID, pickup, dropoff, excludeID), nil
}

func (r *BookingRepository) HasDriverOverlap(ctx context.Context, driverID int64, date, time string, excludeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.hasDriverOverlap(driverID, date, time, excludeID), nil
}

func (r *BookingRepository) BusyDriverIDs(ctx context.Context, date, time string, excludeID int64) (map[int64]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.busyDrivers(date, time, excludeID), nil
}

// txView is the repository handed to WithinTx callbacks. The caller already
// holds the lock, so it touches the table directly.
type txView struct {
	t *table
}

func (v *txView) Create(ctx context.Context, booking *domain.Booking) error {
	return v.t.create(booking)
}

func (v *txView) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return v.t.get(id)
}

func (v *txView) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return v.t.get(id)
}

func (v *txView) Update(ctx context.Context, booking *domain.Booking) error {
	return v.t.update(booking)
}

func (v *txView) ListAll(ctx context.Context) ([]*domain.Booking, error) {
	return v.t.filter(func(*domain.Booking) bool { return true }), nil
}

func (v *txView) ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Booking, error) {
	return v.t.filter(func(b *domain.Booking) bool { return b.CustomerID == customerID }), nil
}

func (v *txView) ListByDriver(ctx context.Context, driverID int64) ([]*domain.Booking, error) {
	return v.t.byDriver(driverID), nil
}

func (v *txView) HasActiveRoute(ctx context.Context, customerID int64, pickup, dropoff string, excludeID int64) (bool, error) {
	return v.t.hasActiveRoute(customerID, pickup, dropoff, excludeID), nil
}

func (v *txView) HasDriverOverlap(ctx context.Context, driverID int64, date, time string, excludeID int64) (bool, error) {
	return v.t.hasDriverOverlap(driverID, date, time, excludeID), nil
}

func (v *txView) BusyDriverIDs(ctx context.Context, date, time string, excludeID int64) (map[int64]struct{}, error) {
	return v.t.busyDrivers(date, time, excludeID), nil
}
