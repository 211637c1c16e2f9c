package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pricewatch/internal/config"
	"pricewatch/internal/logging"
	"pricewatch/internal/pricing"
	"pricewatch/internal/services"
	"pricewatch/internal/store"
	"pricewatch/internal/tracking"
)

// Sweeper runs one price sweep under a caller-chosen run id.
type Sweeper interface {
	RunSweepWithID(ctx context.Context, runID string) (pricing.Report, error)
}

// Subscriptions is the tracking surface the daemon exposes.
type Subscriptions interface {
	TrackItem(ctx context.Context, itemRef, subscriberID string) error
	RemoveSubscriber(ctx context.Context, subscriberID string) (tracking.RemoveResult, error)
	Repair(ctx context.Context) (tracking.RepairReport, error)
	ListItems(ctx context.Context) ([]*store.Item, error)
	ListTrackers(ctx context.Context) ([]*store.Tracker, error)
}

// Deps are the collaborators of a Daemon. Closer, when set, is closed by
// Close.
type Deps struct {
	Sweeper       Sweeper
	Subscriptions Subscriptions
	Closer        io.Closer
	Logger        *slog.Logger
}

const (
	triggerSchedule = "schedule"
	triggerWebhook  = "webhook"
)

// Daemon schedules sweeps, serves the webhook API, and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	sweeper Sweeper
	subs    Subscriptions
	closer  io.Closer
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	sweeping atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	sweeps   sync.WaitGroup

	mu         sync.Mutex
	lastSweep  *pricing.Report
	lastErr    string
	lastRepair *tracking.RepairReport
	repairErr  string
	nextSweep  time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	StoreDriver    string
	LockFilePath   string
	SweepLockPath  string
	SweepInFlight  bool
	NextSweepAt    time.Time
	LastSweep      *pricing.Report
	LastSweepError string
	LastRepair     *tracking.RepairReport
	RepairError    string
	Items          int
	Trackers       int
	StoreError     string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Deps) (*Daemon, error) {
	if cfg == nil || deps.Sweeper == nil || deps.Subscriptions == nil {
		return nil, errors.New("daemon requires config, sweeper, and subscription manager")
	}

	lockPath := cfg.DaemonLockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(deps.Logger, "daemon"),
		sweeper:  deps.Sweeper,
		subs:     deps.Subscriptions,
		closer:   deps.Closer,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, deps.Logger)
	return d, nil
}

// Start acquires the daemon lock, starts the API server and the sweep
// scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pricewatch daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(d.ctx)
	if err := d.api.start(groupCtx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}
	d.group = group

	if interval := d.cfg.ScheduleInterval(); interval > 0 {
		d.setNextSweep(time.Now().Add(interval))
		group.Go(func() error {
			d.schedule(groupCtx, interval)
			return nil
		})
	} else {
		d.logger.Info("scheduled sweeps disabled")
	}

	d.running.Store(true)
	d.logger.Info("pricewatch daemon started",
		logging.String("lock", d.lockPath),
		logging.Duration("schedule_interval", d.cfg.ScheduleInterval()),
	)
	return nil
}

// Stop stops the scheduler and API server, waits for an in-flight sweep,
// and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.group != nil {
		_ = d.group.Wait()
		d.group = nil
	}
	d.api.stop()
	d.sweeps.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("pricewatch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.sweeps.Wait()
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// Addr returns the API listen address, or "" when the server is not running.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// TriggerSweep starts a sweep in the background and returns its run id. It
// fails with ErrSweepInFlight when another sweep, in this or any other
// process, holds the sweep lock.
func (d *Daemon) TriggerSweep() (string, error) {
	return d.startSweep(triggerWebhook)
}

func (d *Daemon) startSweep(trigger string) (string, error) {
	release, err := pricing.AcquireSweepLock(d.cfg.SweepLockPath())
	if err != nil {
		return "", err
	}
	runID := uuid.NewString()
	d.sweeping.Store(true)
	d.sweeps.Add(1)
	go func() {
		defer d.sweeps.Done()
		defer d.sweeping.Store(false)
		defer release()
		d.runSweep(runID, trigger)
	}()
	return runID, nil
}

func (d *Daemon) runSweep(runID, trigger string) {
	ctx := services.WithRunID(context.Background(), runID)
	logger := logging.WithContext(ctx, d.logger)

	if trigger == triggerSchedule && d.cfg.Sweep.RepairBeforeSweep {
		if _, err := d.Repair(ctx); err != nil {
			logger.Warn("repair before sweep incomplete", logging.Error(err))
		}
	}

	logger.Info("sweep triggered", logging.String("trigger", trigger))
	report, err := d.sweeper.RunSweepWithID(ctx, runID)

	d.mu.Lock()
	d.lastSweep = &report
	d.lastErr = ""
	if err != nil {
		d.lastErr = err.Error()
	}
	d.mu.Unlock()

	if err != nil {
		logger.Error("sweep failed", logging.Error(err))
	}
}

// Repair runs a repair pass and records its report for Status.
func (d *Daemon) Repair(ctx context.Context) (tracking.RepairReport, error) {
	report, err := d.subs.Repair(ctx)
	d.mu.Lock()
	d.lastRepair = &report
	d.repairErr = ""
	if err != nil {
		d.repairErr = err.Error()
	}
	d.mu.Unlock()
	return report, err
}

func (d *Daemon) schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.setNextSweep(time.Time{})
			return
		case <-ticker.C:
			d.setNextSweep(time.Now().Add(interval))
			if _, err := d.startSweep(triggerSchedule); err != nil {
				if errors.Is(err, services.ErrSweepInFlight) {
					d.logger.Info("scheduled sweep skipped; previous sweep still running")
					continue
				}
				d.logger.Warn("scheduled sweep not started", logging.Error(err))
			}
		}
	}
}

func (d *Daemon) setNextSweep(at time.Time) {
	d.mu.Lock()
	d.nextSweep = at
	d.mu.Unlock()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		StoreDriver:    d.cfg.Store.Driver,
		LockFilePath:   d.lockPath,
		SweepLockPath:  d.cfg.SweepLockPath(),
		SweepInFlight:  d.sweeping.Load(),
		NextSweepAt:    d.nextSweep,
		LastSweep:      d.lastSweep,
		LastSweepError: d.lastErr,
		LastRepair:     d.lastRepair,
		RepairError:    d.repairErr,
	}
	d.mu.Unlock()

	items, err := d.subs.ListItems(ctx)
	if err != nil {
		status.StoreError = err.Error()
		return status
	}
	trackers, err := d.subs.ListTrackers(ctx)
	if err != nil {
		status.StoreError = err.Error()
		return status
	}
	status.Items = len(items)
	status.Trackers = len(trackers)
	return status
}
