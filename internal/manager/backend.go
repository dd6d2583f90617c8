package manager

import "devmem/internal/driver"

// backend is the capability set both allocator variants implement. The
// variant is selected once at Init; methods never re-check the mode.
type backend interface {
	tryAllocate(size uint64, q driver.Queue) (driver.DevicePtr, bool)
	deallocate(ptr driver.DevicePtr, q driver.Queue)
	getInfo() (free, total uint64)
	name() string
}

// directBackend issues one driver call per request, no bookkeeping.
type directBackend struct {
	m *Manager
}

func (b *directBackend) name() string { return "direct allocator" }

func (b *directBackend) tryAllocate(size uint64, q driver.Queue) (driver.DevicePtr, bool) {
	ptr, err := b.m.drv.Malloc(size)
	if err != nil {
		allocationFailuresTotal.WithLabelValues(b.name()).Inc()
		return ptr, false
	}
	allocationsTotal.WithLabelValues(b.name()).Inc()
	return ptr, true
}

func (b *directBackend) deallocate(ptr driver.DevicePtr, q driver.Queue) {
	if err := b.m.drv.Free(ptr); err != nil {
		b.m.fatal(err, "device free failed")
	}
	deallocationsTotal.WithLabelValues(b.name()).Inc()
}

func (b *directBackend) getInfo() (uint64, uint64) {
	free, total, err := b.m.drv.MemGetInfo()
	if err != nil {
		b.m.fatal(err, "device memory query failed")
	}
	return free, total
}
