package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"taxi/internal/domain"
	"taxi/internal/service"
)

type bookingEnv struct {
	users    *MockUserRepository
	bookings *MockBookingRepository
	notifier *MockNotifier
	ledger   *service.BookingLedger
	assign   *service.AssignmentPolicy
}

func newBookingEnv(drivers int) *bookingEnv {
	log, _ := test.NewNullLogger()
	users := NewMockUserRepository()
	users.AddUser(&domain.User{ID: 1, Username: "customer-1", Role: domain.RoleCustomer})
	users.AddUser(&domain.User{ID: 2, Username: "customer-2", Role: domain.RoleCustomer})
	for i := 0; i < drivers; i++ {
		id := int64(100 + i)
		users.AddUser(&domain.User{ID: id, Username: fmt.Sprintf("driver-%d", id), Role: domain.RoleDriver})
	}

	bookings := NewMockBookingRepository()
	notifier := &MockNotifier{}
	locker := service.NewLocalLocker()

	return &bookingEnv{
		users:    users,
		bookings: bookings,
		notifier: notifier,
		ledger:   service.NewBookingLedger(bookings, users, bookings, locker, notifier, log),
		assign:   service.NewAssignmentPolicy(bookings, users, bookings, locker, nil, notifier, log),
	}
}

func (e *bookingEnv) book(t *testing.T, customerID int64, pickup, dropoff string) *domain.Booking {
	t.Helper()
	b, err := e.ledger.Create(context.Background(), service.CreateBookingRequest{
		CustomerID: customerID,
		Pickup:     pickup,
		Dropoff:    dropoff,
		Date:       "2024-06-01",
		Time:       "08:00",
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

// ──────────────────────────────────────────────
// 1. AUTO-ASSIGNMENT
// ──────────────────────────────────────────────

func TestAutoAssign_ConcurrentBookingsNeverShareADriver(t *testing.T) {
	t.Parallel()

	const drivers, bookings = 3, 10
	env := newBookingEnv(drivers)

	ids := make([]int64, bookings)
	for i := range ids {
		ids[i] = env.book(t, int64(1+i%2), fmt.Sprintf("Pickup %d", i), "Airport").ID
	}

	var wg sync.WaitGroup
	results := make([]*service.AssignResult, bookings)
	errs := make([]error, bookings)
	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = env.assign.AutoAssign(context.Background(), id)
		}()
	}
	wg.Wait()

	used := make(map[int64]int64)
	assigned := 0
	for i, err := range errs {
		if err != nil {
			if !errors.Is(err, service.ErrNoDriversAvailable) {
				t.Fatalf("booking %d: unexpected error %v", ids[i], err)
			}
			continue
		}
		assigned++
		if other, taken := used[results[i].DriverID]; taken {
			t.Errorf("driver %d assigned to bookings %d and %d in the same slot", results[i].DriverID, other, ids[i])
		}
		used[results[i].DriverID] = ids[i]
	}

	if assigned != drivers {
		t.Errorf("expected %d assignments, got %d", drivers, assigned)
	}
	if int(env.notifier.Assigned) != drivers {
		t.Errorf("expected %d assignment notifications, got %d", drivers, env.notifier.Assigned)
	}
}

func TestAutoAssign_PropagatesRepositoryErrors(t *testing.T) {
	t.Parallel()

	env := newBookingEnv(2)
	b := env.book(t, 1, "Thamel", "Airport")

	env.bookings.BusyDriverIDsError = errors.New("connection reset")
	_, err := env.assign.AutoAssign(context.Background(), b.ID)
	if err == nil || !errors.Is(err, env.bookings.BusyDriverIDsError) {
		t.Fatalf("expected wrapped repository error, got %v", err)
	}

	env.bookings.BusyDriverIDsError = nil
	env.users.ListByRoleError = errors.New("timeout")
	_, err = env.assign.AutoAssign(context.Background(), b.ID)
	if !errors.Is(err, env.users.ListByRoleError) {
		t.Fatalf("expected wrapped user repository error, got %v", err)
	}

	if got := env.bookings.GetBooking(b.ID); got.Status != domain.BookingStatusBooked {
		t.Errorf("booking should stay booked, got %s", got.Status)
	}
}

// ──────────────────────────────────────────────
// 2. LEDGER FAILURES
// ──────────────────────────────────────────────

func TestCreate_RepositoryFailureSendsNoNotification(t *testing.T) {
	t.Parallel()

	env := newBookingEnv(1)
	env.bookings.CreateError = errors.New("disk full")

	_, err := env.ledger.Create(context.Background(), service.CreateBookingRequest{
		CustomerID: 1, Pickup: "Thamel", Dropoff: "Airport", Date: "2024-06-01", Time: "08:00",
	})
	if !errors.Is(err, env.bookings.CreateError) {
		t.Fatalf("expected create error, got %v", err)
	}
	if env.notifier.Created != 0 {
		t.Error("no notification expected for a failed create")
	}
}

func TestCancel_UpdateFailureLeavesBookingActive(t *testing.T) {
	t.Parallel()

	env := newBookingEnv(1)
	b := env.book(t, 1, "Thamel", "Airport")
	env.bookings.UpdateError = errors.New("deadlock detected")

	if _, err := env.ledger.Cancel(context.Background(), b.ID); !errors.Is(err, env.bookings.UpdateError) {
		t.Fatalf("expected update error, got %v", err)
	}
	if got := env.bookings.GetBooking(b.ID); got.Status != domain.BookingStatusBooked {
		t.Errorf("expected booked, got %s", got.Status)
	}
	if env.notifier.Cancelled != 0 {
		t.Error("no notification expected for a failed cancel")
	}
}

func TestCustomerLookupFailure(t *testing.T) {
	t.Parallel()

	env := newBookingEnv(1)
	env.users.GetByIDError = errors.New("database is down")

	_, err := env.ledger.Create(context.Background(), service.CreateBookingRequest{
		CustomerID: 1, Pickup: "Thamel", Dropoff: "Airport", Date: "2024-06-01", Time: "08:00",
	})
	if errors.Is(err, service.ErrCustomerNotFound) || !errors.Is(err, env.users.GetByIDError) {
		t.Fatalf("expected wrapped lookup error, got %v", err)
	}
}

// ──────────────────────────────────────────────
// 3. FULL LIFECYCLE
// ──────────────────────────────────────────────

func TestBookingLifecycle_Notifications(t *testing.T) {
	t.Parallel()

	env := newBookingEnv(2)
	ctx := context.Background()

	b := env.book(t, 1, "Thamel", "Airport")
	res, err := env.assign.AutoAssign(ctx, b.ID)
	if err != nil {
		t.Fatalf("auto-assign: %v", err)
	}
	if res.Message != "Driver 100 assigned." {
		t.Errorf("unexpected message %q", res.Message)
	}
	if _, err := env.ledger.Complete(ctx, b.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if env.notifier.Created != 1 || env.notifier.Assigned != 1 || env.notifier.Completed != 1 {
		t.Errorf("unexpected notification counts: %+v", env.notifier)
	}

	driving, err := env.ledger.ListByDriver(ctx, 100)
	if err != nil {
		t.Fatalf("list by driver: %v", err)
	}
	if len(driving) != 1 || driving[0].Status != domain.BookingStatusCompleted {
		t.Errorf("expected the completed booking in the driver's history, got %+v", driving)
	}
}
