package driver

import (
	"fmt"
	"sync"
)

// SimDriver is an in-memory Driver used by tests and by devmemd when no
// hardware binding is compiled in. Each simulated device has a fixed
// capacity and simple first-fit-free accounting; pointers are synthetic
// handles with no backing storage.
type SimDriver struct {
	mu      sync.Mutex
	devices []simDevice
	allocs  map[DevicePtr]simAlloc
	active  int
	lastErr error
	nextPtr DevicePtr

	// failNext, when set, fails the next Malloc with this error
	// regardless of capacity. Cleared after firing.
	failNext error

	// Call counters, readable via Counters for assertions.
	mallocCalls int
	freeCalls   int
}

type simDevice struct {
	name  string
	total uint64
	used  uint64
}

type simAlloc struct {
	device int
	size   uint64
}

// NewSimDriver builds a simulated driver with one device per capacity
// given, in ordinal order. Device 0 starts active.
func NewSimDriver(capacities ...uint64) *SimDriver {
	d := &SimDriver{nextPtr: 0x1000}
	for i, c := range capacities {
		d.devices = append(d.devices, simDevice{
			name:  fmt.Sprintf("simulated device %d", i),
			total: c,
		})
	}
	d.allocs = make(map[DevicePtr]simAlloc)
	return d
}

// SimCounters is a snapshot of driver call counts.
type SimCounters struct {
	MallocCalls int
	FreeCalls   int
}

func (d *SimDriver) DeviceCount() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.devices), nil
}

func (d *SimDriver) GetDevice() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active, nil
}

func (d *SimDriver) SetDevice(device int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if device < 0 || device >= len(d.devices) {
		return d.record(fmt.Errorf("%w: %d", ErrInvalidDevice, device))
	}
	d.active = device
	return nil
}

func (d *SimDriver) Properties(device int) (Properties, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if device < 0 || device >= len(d.devices) {
		return Properties{}, d.record(fmt.Errorf("%w: %d", ErrInvalidDevice, device))
	}
	dev := d.devices[device]
	return Properties{Name: dev.name, TotalMemory: dev.total}, nil
}

func (d *SimDriver) MemGetInfo() (uint64, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active >= len(d.devices) {
		return 0, 0, d.record(fmt.Errorf("%w: %d", ErrInvalidDevice, d.active))
	}
	dev := d.devices[d.active]
	return dev.total - dev.used, dev.total, nil
}

func (d *SimDriver) Malloc(size uint64) (DevicePtr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mallocCalls++
	if d.failNext != nil {
		err := d.failNext
		d.failNext = nil
		return 0, d.record(err)
	}
	if d.active >= len(d.devices) {
		return 0, d.record(fmt.Errorf("%w: %d", ErrInvalidDevice, d.active))
	}
	dev := &d.devices[d.active]
	if size > dev.total-dev.used {
		return 0, d.record(fmt.Errorf("%w: device %d: %d bytes requested, %d free",
			ErrOutOfMemory, d.active, size, dev.total-dev.used))
	}
	dev.used += size
	ptr := d.nextPtr
	d.nextPtr += DevicePtr(size)
	if d.nextPtr <= ptr { // size 0 still needs a unique handle
		d.nextPtr++
	}
	d.allocs[ptr] = simAlloc{device: d.active, size: size}
	return ptr, nil
}

func (d *SimDriver) Free(ptr DevicePtr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.freeCalls++
	a, ok := d.allocs[ptr]
	if !ok {
		return d.record(fmt.Errorf("%w: %#x", ErrInvalidPointer, uintptr(ptr)))
	}
	delete(d.allocs, ptr)
	d.devices[a.device].used -= a.size
	return nil
}

func (d *SimDriver) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.lastErr
	d.lastErr = nil
	return err
}

// FailNextMalloc forces the next Malloc to fail with err, modelling driver
// exhaustion independent of simulated capacity.
func (d *SimDriver) FailNextMalloc(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = err
}

// SetLastError plants an error in the sticky register, modelling a residual
// error left behind by an internally retried operation.
func (d *SimDriver) SetLastError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastErr = err
}

// UsedBytes reports the simulated bytes outstanding on a device.
func (d *SimDriver) UsedBytes(device int) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.devices[device].used
}

// Counters returns a snapshot of driver call counts.
func (d *SimDriver) Counters() SimCounters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return SimCounters{MallocCalls: d.mallocCalls, FreeCalls: d.freeCalls}
}

// record stores err in the sticky register and returns it.
func (d *SimDriver) record(err error) error {
	d.lastErr = err
	return err
}
