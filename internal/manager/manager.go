package manager

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"devmem/internal/driver"
	"devmem/internal/pool"
)

// Manager owns the allocator mode, the pool handle and the per-device
// bookkeeping table. One Manager serves one driver for its lifetime;
// construct with New, arm with Init, tear down with Close.
type Manager struct {
	drv         driver.Driver
	log         zerolog.Logger
	events      EventPublisher
	poolFactory PoolFactory

	binBase        uint
	minBin         uint
	maxBin         uint
	maxCachedBytes uint64
	skipCleanup    bool

	mode    Mode
	debug   bool
	backend backend
	pool    Pool
	devInfo []deviceInfo

	startTime time.Time
}

// New constructs a Manager from Config, applying package defaults. The
// manager starts in direct mode; Init selects the backend.
func New(cfg Config) *Manager {
	m := &Manager{
		drv:            cfg.Driver,
		events:         cfg.Publisher,
		poolFactory:    cfg.PoolFactory,
		binBase:        cfg.BinBase,
		minBin:         cfg.MinBin,
		maxBin:         cfg.MaxBin,
		maxCachedBytes: cfg.MaxCachedBytes,
		skipCleanup:    cfg.SkipCleanup,
		startTime:      time.Now(),
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	} else {
		m.log = zerolog.Nop()
	}
	if m.events == nil {
		m.events = noopPublisher{}
	}
	if m.poolFactory == nil {
		m.poolFactory = func(drv driver.Driver, pc pool.Config) (Pool, error) {
			return pool.New(drv, pc)
		}
	}
	if m.binBase == 0 {
		m.binBase = defaultBinBase
	}
	if m.minBin == 0 {
		m.minBin = defaultMinBin
	}
	if m.maxBin == 0 {
		m.maxBin = defaultMaxBin
	}
	m.backend = &directBackend{m: m}
	return m
}

// Mode reports the active allocator mode.
func (m *Manager) Mode() Mode { return m.mode }

// PoolName returns a human-readable label for the active backend. For
// diagnostics only.
func (m *Manager) PoolName() string { return m.backend.name() }

// TryAllocate requests size bytes on the active device, scheduled against
// q. It reports false on exhaustion; retry policy is the caller's.
func (m *Manager) TryAllocate(size uint64, q driver.Queue) (driver.DevicePtr, bool) {
	return m.backend.tryAllocate(size, q)
}

// Deallocate releases a pointer obtained from TryAllocate. A nil pointer
// is a no-op; a failing free panics, valid pointers are expected to always
// free cleanly.
func (m *Manager) Deallocate(ptr driver.DevicePtr, q driver.Queue) {
	if ptr == 0 {
		return
	}
	m.backend.deallocate(ptr, q)
}

// GetInfo reports free and total memory of the active device. Under the
// caching backend this is served from the bookkeeping table without a
// driver round trip; staleness between refreshes is the accepted price.
func (m *Manager) GetInfo() (free, total uint64) {
	return m.backend.getInfo()
}

// fatal logs the unrecoverable condition and escalates. Used for failures
// the manager must not paper over: failing frees and a missing pool.
func (m *Manager) fatal(err error, msg string) {
	m.log.Error().Err(err).Msg(msg)
	panic(fmt.Sprintf("%s: %v", msg, err))
}
