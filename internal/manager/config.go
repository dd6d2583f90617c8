package manager

import (
	"github.com/rs/zerolog"

	"devmem/internal/driver"
	"devmem/internal/pool"
)

// debugEnv forces debug logging on regardless of the flag passed to Init.
// Resolved once at Init, never re-read per call.
const debugEnv = "DEVMEM_DEBUG"

// Pool-construction defaults handed to the pool factory at Init: bins from
// 2^6 to 2^22 bytes, no cached-bytes cap, explicit cleanup on close.
const (
	defaultBinBase = 2
	defaultMinBin  = 6
	defaultMaxBin  = 22
)

// Pool is the caching-pool contract the manager depends on. It must be
// internally thread-safe for concurrent Allocate/Free.
// *pool.CachingPool implements it.
type Pool interface {
	Allocate(size uint64, device int, q driver.Queue) (driver.DevicePtr, error)
	Free(ptr driver.DevicePtr) error
	CachedBytes(device int) pool.CachedBytes
	Flush() error
	Close() error
}

// PoolFactory builds the pool a caching Init installs. Tests substitute
// stubs here.
type PoolFactory func(drv driver.Driver, cfg pool.Config) (Pool, error)

// Config encapsulates all tunables for Manager construction. Driver is
// required; everything else has a sensible default.
type Config struct {
	Driver driver.Driver

	// Logger receives diagnostics; nil discards them.
	Logger *zerolog.Logger

	// Publisher receives lifecycle events; nil drops them.
	Publisher EventPublisher

	// PoolFactory overrides caching-pool construction; nil builds the
	// real binned pool.
	PoolFactory PoolFactory

	// Pool tunables. Zero values take the package defaults above.
	BinBase        uint
	MinBin         uint
	MaxBin         uint
	MaxCachedBytes uint64
	SkipCleanup    bool
}

// poolConfig assembles the pool construction parameters for Init.
func (m *Manager) poolConfig() pool.Config {
	return pool.Config{
		BinBase:        m.binBase,
		MinBin:         m.minBin,
		MaxBin:         m.maxBin,
		MaxCachedBytes: m.maxCachedBytes,
		SkipCleanup:    m.skipCleanup,
		Debug:          m.debug,
		Logger:         m.log,
	}
}
