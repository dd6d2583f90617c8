package manager

import (
	"strconv"

	"devmem/internal/driver"
)

// UpdateDevInfo refreshes the bookkeeping entry for one device from the
// driver. The active device is pinned for the query and the previous one
// restored on every exit path.
//
// Total is clamped to the hardware-reported capacity; free is the driver's
// figure plus the bytes the pool holds live for the device (in use from
// the driver's view, reclaimable from the application's), clamped to
// total. The flush counter is preserved across refreshes.
func (m *Manager) UpdateDevInfo(device int) error {
	guard, err := driver.PinDevice(m.drv, device)
	if err != nil {
		return err
	}
	defer guard.Release()

	if device >= len(m.devInfo) {
		grown := make([]deviceInfo, device+1)
		copy(grown, m.devInfo)
		m.devInfo = grown
	}

	props, err := m.drv.Properties(device)
	if err != nil {
		return err
	}
	free, total, err := m.drv.MemGetInfo()
	if err != nil {
		return err
	}
	if m.debug {
		m.log.Debug().
			Int("device", device).
			Uint64("hardware_total", props.TotalMemory).
			Uint64("driver_free", free).
			Uint64("driver_total", total).
			Msg("device memory queried")
	}

	if props.TotalMemory < total {
		total = props.TotalMemory
	}
	if m.pool != nil {
		free += m.pool.CachedBytes(device).Live
	}
	if free > total {
		free = total
	}
	m.devInfo[device].total = total
	m.devInfo[device].free = free

	label := strconv.Itoa(device)
	deviceTotalBytes.WithLabelValues(label).Set(float64(total))
	deviceFreeBytes.WithLabelValues(label).Set(float64(free))
	if m.debug {
		m.log.Debug().
			Int("device", device).
			Uint64("free", free).
			Uint64("total", total).
			Msg("device info updated")
	}
	return nil
}
