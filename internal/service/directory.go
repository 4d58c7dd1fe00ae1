package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"taxi/internal/domain"
	"taxi/internal/repository"
)

const defaultGeocodeConcurrency = 4

// AddressResolver resolves an address to coordinates, reporting false when
// the address cannot be resolved.
type AddressResolver interface {
	Resolve(ctx context.Context, address string) (domain.Coordinates, bool)
}

// Task is a handle on background work.
type Task struct {
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// Done is closed when the task finishes or is cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel stops the task. A cancelled preload never replaces the snapshot.
func (t *Task) Cancel() { t.cancel() }

// Err returns the task's error once Done is closed.
func (t *Task) Err() error {
	<-t.done
	return t.err
}

// DriverDirectory lists drivers and keeps an in-memory snapshot of their
// geocoded home addresses.
type DriverDirectory struct {
	users       repository.UserRepository
	resolver    AddressResolver
	concurrency int
	log         logrus.FieldLogger

	mu       sync.RWMutex
	snapshot []domain.DriverLocation
	loaded   bool
	pending  *Task
}

// NewDriverDirectory creates a DriverDirectory. concurrency bounds the
// number of simultaneous geocode lookups during a load.
func NewDriverDirectory(users repository.UserRepository, resolver AddressResolver, concurrency int, log logrus.FieldLogger) *DriverDirectory {
	if concurrency <= 0 {
		concurrency = defaultGeocodeConcurrency
	}
	return &DriverDirectory{
		users:       users,
		resolver:    resolver,
		concurrency: concurrency,
		log:         log.WithField("component", "driver_directory"),
	}
}

// ListDrivers returns all drivers ordered by ID.
func (d *DriverDirectory) ListDrivers(ctx context.Context) ([]*domain.User, error) {
	drivers, err := d.users.ListByRole(ctx, domain.RoleDriver)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	return drivers, nil
}

// Preload resolves every driver's address in the background and publishes
// the result as the new snapshot. Starting a preload cancels any preload
// still running. The returned Task runs independently of ctx's cancellation.
func (d *DriverDirectory) Preload(ctx context.Context) *Task {
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	task := &Task{done: make(chan struct{}), cancel: cancel}

	d.mu.Lock()
	if d.pending != nil {
		d.pending.cancel()
	}
	d.pending = task
	d.mu.Unlock()

	go func() {
		defer close(task.done)
		defer cancel()

		locations, err := d.load(taskCtx)
		if err == nil {
			err = taskCtx.Err()
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		if d.pending == task {
			d.pending = nil
		}
		if err != nil {
			task.err = err
			d.log.WithError(err).Warn("driver preload did not complete")
			return
		}
		d.snapshot = locations
		d.loaded = true
		d.log.WithField("drivers", len(locations)).Info("driver locations preloaded")
	}()

	return task
}

// Reload loads the snapshot synchronously.
func (d *DriverDirectory) Reload(ctx context.Context) error {
	task := d.Preload(ctx)
	select {
	case <-task.Done():
		return task.Err()
	case <-ctx.Done():
		task.Cancel()
		return ctx.Err()
	}
}

// Snapshot returns a copy of the preloaded driver locations. It is empty
// until a preload has completed.
func (d *DriverDirectory) Snapshot() []domain.DriverLocation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.DriverLocation(nil), d.snapshot...)
}

// Loaded reports whether a preload has completed.
func (d *DriverDirectory) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// Locations returns the snapshot, or loads and geocodes the drivers
// synchronously when the snapshot is empty.
func (d *DriverDirectory) Locations(ctx context.Context) ([]domain.DriverLocation, error) {
	if snap := d.Snapshot(); len(snap) > 0 {
		return snap, nil
	}
	return d.load(ctx)
}

// load geocodes every driver with an address. Results keep driver ID order;
// drivers whose address does not resolve are left out.
func (d *DriverDirectory) load(ctx context.Context) ([]domain.DriverLocation, error) {
	drivers, err := d.ListDrivers(ctx)
	if err != nil {
		return nil, err
	}

	resolved := make([]*domain.DriverLocation, len(drivers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, drv := range drivers {
		address := strings.TrimSpace(drv.Address)
		if address == "" {
			continue
		}
		i, drv := i, drv
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			coords, ok := d.resolver.Resolve(gctx, address)
			if !ok {
				return nil
			}
			resolved[i] = &domain.DriverLocation{
				DriverID: drv.ID,
				Name:     displayName(drv),
				Address:  address,
				Lat:      coords.Lat,
				Lon:      coords.Lon,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	locations := make([]domain.DriverLocation, 0, len(drivers))
	for _, loc := range resolved {
		if loc != nil {
			locations = append(locations, *loc)
		}
	}
	return locations, nil
}

func displayName(u *domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
