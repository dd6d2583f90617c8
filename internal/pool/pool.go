// Package pool implements a binned caching allocator over a raw device
// driver. Freed blocks are parked in per-device free lists keyed by bin
// size and handed back on later requests without a driver call. When the
// driver reports exhaustion the pool flushes its free lists for the
// pressured device and retries once; callers see only the final outcome.
//
// The pool is safe for concurrent Allocate/Free from multiple goroutines.
package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"devmem/internal/driver"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultBinBase = 2
	defaultMinBin  = 6
	defaultMaxBin  = 22
)

// Config encapsulates all tunables for pool construction.
type Config struct {
	// BinBase is the geometric base of bin sizes.
	BinBase uint
	// MinBin is the exponent of the smallest bin: the smallest block the
	// pool hands out is BinBase^MinBin bytes.
	MinBin uint
	// MaxBin is the exponent of the largest cached bin. Requests above
	// BinBase^MaxBin bypass the cache entirely.
	MaxBin uint
	// MaxCachedBytes caps bytes parked in free lists per device;
	// 0 means unbounded.
	MaxCachedBytes uint64
	// SkipCleanup leaves parked blocks to the driver on Close instead of
	// freeing them explicitly.
	SkipCleanup bool
	// Debug enables per-operation logging.
	Debug bool
	// Logger receives debug output. Ignored unless Debug is set.
	Logger zerolog.Logger
}

// ErrClosed is returned for operations on a closed pool.
var ErrClosed = errors.New("pool: closed")

// CachedBytes is a per-device snapshot of pool occupancy.
type CachedBytes struct {
	// Free is bytes parked in free lists: allocated from the driver's
	// perspective but instantly reusable.
	Free uint64
	// Live is bytes handed out through the pool and not yet returned.
	Live uint64
}

type block struct {
	device int
	bin    uint
	bytes  uint64
}

// CachingPool caches freed device blocks in power-of-BinBase sized bins.
type CachingPool struct {
	drv driver.Driver
	cfg Config
	log zerolog.Logger

	mu     sync.Mutex
	free   map[int]map[uint][]driver.DevicePtr
	live   map[driver.DevicePtr]block
	cached map[int]*CachedBytes
	closed bool
}

// New constructs a caching pool over drv. Zero Config fields take package
// defaults; an inverted bin range is a configuration error.
func New(drv driver.Driver, cfg Config) (*CachingPool, error) {
	if cfg.BinBase == 0 {
		cfg.BinBase = defaultBinBase
	}
	if cfg.MinBin == 0 {
		cfg.MinBin = defaultMinBin
	}
	if cfg.MaxBin == 0 {
		cfg.MaxBin = defaultMaxBin
	}
	if cfg.BinBase < 2 {
		return nil, fmt.Errorf("pool: bin base must be >= 2, got %d", cfg.BinBase)
	}
	if cfg.MinBin > cfg.MaxBin {
		return nil, fmt.Errorf("pool: min bin %d exceeds max bin %d", cfg.MinBin, cfg.MaxBin)
	}
	return &CachingPool{
		drv:    drv,
		cfg:    cfg,
		log:    cfg.Logger,
		free:   make(map[int]map[uint][]driver.DevicePtr),
		live:   make(map[driver.DevicePtr]block),
		cached: make(map[int]*CachedBytes),
	}, nil
}

// binFor maps a request size to (bin exponent, rounded byte size).
// Oversize requests keep their exact size and carry a bin above MaxBin so
// Free routes them straight back to the driver.
func (p *CachingPool) binFor(size uint64) (uint, uint64) {
	bin := p.cfg.MinBin
	bytes := pow(p.cfg.BinBase, bin)
	for bytes < size {
		if bin == p.cfg.MaxBin {
			return p.cfg.MaxBin + 1, size
		}
		bin++
		bytes *= uint64(p.cfg.BinBase)
	}
	return bin, bytes
}

func pow(base, exp uint) uint64 {
	v := uint64(1)
	for i := uint(0); i < exp; i++ {
		v *= uint64(base)
	}
	return v
}

// Allocate returns a block of at least size bytes on the given device,
// reusing a parked block of the matching bin when one exists. On driver
// exhaustion the device's free lists are flushed and the allocation
// retried once.
func (p *CachingPool) Allocate(size uint64, device int, q driver.Queue) (driver.DevicePtr, error) {
	bin, bytes := p.binFor(size)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}

	if bin <= p.cfg.MaxBin {
		if ptr, ok := p.takeFreeLocked(device, bin); ok {
			p.live[ptr] = block{device: device, bin: bin, bytes: bytes}
			c := p.counterLocked(device)
			c.Free -= bytes
			c.Live += bytes
			if p.cfg.Debug {
				p.log.Debug().Int("device", device).Uint64("bytes", bytes).Msg("pool: reused cached block")
			}
			return ptr, nil
		}
	}

	guard, err := driver.PinDevice(p.drv, device)
	if err != nil {
		return 0, err
	}
	defer guard.Release()

	ptr, err := p.drv.Malloc(bytes)
	if errors.Is(err, driver.ErrOutOfMemory) {
		// Evict everything parked on this device, then retry once.
		if ferr := p.flushDeviceLocked(device); ferr != nil {
			return 0, ferr
		}
		if p.cfg.Debug {
			p.log.Debug().Int("device", device).Uint64("bytes", bytes).Msg("pool: flushed free lists, retrying")
		}
		ptr, err = p.drv.Malloc(bytes)
	}
	if err != nil {
		return 0, err
	}
	p.live[ptr] = block{device: device, bin: bin, bytes: bytes}
	p.counterLocked(device).Live += bytes
	return ptr, nil
}

// Free returns a block to the pool. Blocks within the cached bin range are
// parked for reuse; oversize blocks, and blocks that would push a device
// past MaxCachedBytes, go straight back to the driver.
func (p *CachingPool) Free(ptr driver.DevicePtr) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.live[ptr]
	if !ok {
		return fmt.Errorf("pool: %w: %#x", driver.ErrInvalidPointer, uintptr(ptr))
	}
	delete(p.live, ptr)
	c := p.counterLocked(b.device)
	c.Live -= b.bytes

	cacheable := !p.closed && b.bin <= p.cfg.MaxBin &&
		(p.cfg.MaxCachedBytes == 0 || c.Free+b.bytes <= p.cfg.MaxCachedBytes)
	if !cacheable {
		return p.driverFree(ptr, b.device)
	}

	byBin, ok := p.free[b.device]
	if !ok {
		byBin = make(map[uint][]driver.DevicePtr)
		p.free[b.device] = byBin
	}
	byBin[b.bin] = append(byBin[b.bin], ptr)
	c.Free += b.bytes
	if p.cfg.Debug {
		p.log.Debug().Int("device", b.device).Uint64("bytes", b.bytes).Msg("pool: parked block")
	}
	return nil
}

// CachedBytes reports pool occupancy for a device.
func (p *CachingPool) CachedBytes(device int) CachedBytes {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.cached[device]; ok {
		return *c
	}
	return CachedBytes{}
}

// FlushDevice releases every parked block on a device back to the driver.
func (p *CachingPool) FlushDevice(device int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushDeviceLocked(device)
}

// Flush releases every parked block on every device.
func (p *CachingPool) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for device := range p.free {
		if err := p.flushDeviceLocked(device); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the free lists (unless SkipCleanup is set) and rejects
// further use. Blocks still held by callers stay valid; they return to the
// driver on Free.
func (p *CachingPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.cfg.SkipCleanup {
		return nil
	}
	for device := range p.free {
		if err := p.flushDeviceLocked(device); err != nil {
			return err
		}
	}
	return nil
}

// takeFreeLocked pops a parked block of the given bin, preferring the most
// recently parked one.
func (p *CachingPool) takeFreeLocked(device int, bin uint) (driver.DevicePtr, bool) {
	byBin, ok := p.free[device]
	if !ok {
		return 0, false
	}
	ptrs := byBin[bin]
	if len(ptrs) == 0 {
		return 0, false
	}
	ptr := ptrs[len(ptrs)-1]
	byBin[bin] = ptrs[:len(ptrs)-1]
	return ptr, true
}

func (p *CachingPool) flushDeviceLocked(device int) error {
	byBin, ok := p.free[device]
	if !ok {
		return nil
	}
	c := p.counterLocked(device)
	for bin, ptrs := range byBin {
		for _, ptr := range ptrs {
			if err := p.driverFree(ptr, device); err != nil {
				return err
			}
			c.Free -= pow(p.cfg.BinBase, bin)
		}
		delete(byBin, bin)
	}
	return nil
}

// driverFree hands a block back to the driver with the owning device
// pinned, mirroring how it was allocated.
func (p *CachingPool) driverFree(ptr driver.DevicePtr, device int) error {
	guard, err := driver.PinDevice(p.drv, device)
	if err != nil {
		return err
	}
	defer guard.Release()
	return p.drv.Free(ptr)
}

// counterLocked returns the occupancy counter for a device, creating it on
// first touch.
func (p *CachingPool) counterLocked(device int) *CachedBytes {
	c, ok := p.cached[device]
	if !ok {
		c = &CachedBytes{}
		p.cached[device] = c
	}
	return c
}
