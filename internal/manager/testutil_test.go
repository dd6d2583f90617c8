package manager

import (
	"sync"

	"devmem/internal/driver"
	"devmem/internal/pool"
)

// stubPool is a scriptable Pool for exercising the manager's anomaly and
// accounting paths without real pool behavior.
type stubPool struct {
	mu       sync.Mutex
	drv      driver.Driver
	allocErr error // returned by every Allocate until cleared
	cached   map[int]pool.CachedBytes

	allocCalls int
	freeCalls  int
	closeCalls int
	nextPtr    driver.DevicePtr
}

func newStubPool(drv driver.Driver) *stubPool {
	return &stubPool{drv: drv, cached: make(map[int]pool.CachedBytes), nextPtr: 0x100}
}

func (p *stubPool) Allocate(size uint64, device int, q driver.Queue) (driver.DevicePtr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allocCalls++
	if p.allocErr != nil {
		return 0, p.allocErr
	}
	ptr := p.nextPtr
	p.nextPtr += driver.DevicePtr(size) + 1
	return ptr, nil
}

func (p *stubPool) Free(ptr driver.DevicePtr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freeCalls++
	return nil
}

func (p *stubPool) CachedBytes(device int) pool.CachedBytes {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cached[device]
}

func (p *stubPool) Flush() error { return nil }

func (p *stubPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCalls++
	return nil
}

func (p *stubPool) setLive(device int, live uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.cached[device]
	c.Live = live
	p.cached[device] = c
}

func (p *stubPool) setAllocErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allocErr = err
}

func (p *stubPool) counters() (allocs, frees, closes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocCalls, p.freeCalls, p.closeCalls
}

// stubFactory wires a prebuilt stub pool into Manager construction.
func stubFactory(p Pool) PoolFactory {
	return func(driver.Driver, pool.Config) (Pool, error) { return p, nil }
}

// fakeDriver reports fixed memory figures so clamping paths can be driven
// into disagreement, which the simulated driver never produces.
type fakeDriver struct {
	*driver.SimDriver
	propsTotal  uint64
	driverFree  uint64
	driverTotal uint64
}

func (d *fakeDriver) Properties(device int) (driver.Properties, error) {
	return driver.Properties{Name: "fake", TotalMemory: d.propsTotal}, nil
}

func (d *fakeDriver) MemGetInfo() (uint64, uint64, error) {
	return d.driverFree, d.driverTotal, nil
}
