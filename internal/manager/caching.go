package manager

import (
	"strconv"

	"devmem/internal/driver"
)

// cachingBackend delegates to the binned pool and keeps the device table
// honest: any allocation anomaly triggers a refresh of every initialized
// entry, since cache pressure on one device can stale the accounting of
// all of them.
type cachingBackend struct {
	m    *Manager
	pool Pool
}

func (b *cachingBackend) name() string { return "caching pool allocator" }

func (b *cachingBackend) tryAllocate(size uint64, q driver.Queue) (driver.DevicePtr, bool) {
	m := b.m
	cur, err := m.drv.GetDevice()
	if err != nil {
		m.fatal(err, "active device query failed")
	}

	// Flush-and-retry on exhaustion happens inside the pool.
	ptr, allocErr := b.pool.Allocate(size, cur, q)

	// A pool-internal retry that eventually succeeded leaves a residual
	// error in the driver's sticky register; reading it acknowledges it.
	residual := m.drv.LastError()

	if allocErr != nil || residual != nil {
		if m.debug {
			m.log.Debug().
				Err(allocErr).
				AnErr("residual", residual).
				Uint64("size", size).
				Int("device", cur).
				Msg("allocation anomaly, refreshing device table")
		}
		for i := range m.devInfo {
			if m.devInfo[i].total == 0 {
				continue
			}
			if err := m.UpdateDevInfo(i); err != nil {
				m.log.Error().Err(err).Int("device", i).Msg("device info refresh failed")
			}
			if i == cur {
				m.devInfo[i].flushCount++
				cacheFlushesTotal.WithLabelValues(strconv.Itoa(i)).Inc()
			}
		}
		m.events.Publish(Event{Name: "cache_flush", Device: cur, Fields: map[string]any{
			"size":     size,
			"failed":   allocErr != nil,
			"residual": residual != nil,
		}})
	}

	if allocErr != nil {
		allocationFailuresTotal.WithLabelValues(b.name()).Inc()
		return ptr, false
	}
	allocationsTotal.WithLabelValues(b.name()).Inc()
	return ptr, true
}

func (b *cachingBackend) deallocate(ptr driver.DevicePtr, q driver.Queue) {
	if err := b.pool.Free(ptr); err != nil {
		b.m.fatal(err, "pool free failed")
	}
	deallocationsTotal.WithLabelValues(b.name()).Inc()
}

// getInfo serves from the bookkeeping table. The table's free figure
// already includes bytes parked in the pool at refresh time; subtracting
// the bytes the pool holds live right now excludes memory that is
// genuinely out on loan, without a driver query.
func (b *cachingBackend) getInfo() (uint64, uint64) {
	m := b.m
	cur, err := m.drv.GetDevice()
	if err != nil {
		m.fatal(err, "active device query failed")
	}
	if cur >= len(m.devInfo) {
		return 0, 0
	}
	info := m.devInfo[cur]
	live := b.pool.CachedBytes(cur).Live
	free := info.free
	if live < free {
		free -= live
	} else {
		free = 0
	}
	return free, info.total
}
