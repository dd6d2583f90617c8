package manager

import (
	"time"

	"devmem/pkg/types"
)

// Devices returns the bookkeeping table as view types, one entry per
// device the manager has initialized or queried.
func (m *Manager) Devices() []types.DeviceStatus {
	out := make([]types.DeviceStatus, 0, len(m.devInfo))
	for i, info := range m.devInfo {
		out = append(out, types.DeviceStatus{
			Device:     i,
			TotalBytes: info.total,
			FreeBytes:  info.free,
			FlushCount: info.flushCount,
		})
	}
	return out
}

// DeviceStatus returns the bookkeeping entry for one device.
func (m *Manager) DeviceStatus(device int) (types.DeviceStatus, error) {
	if device < 0 || device >= len(m.devInfo) {
		return types.DeviceStatus{}, ErrUnknownDevice(device)
	}
	info := m.devInfo[device]
	return types.DeviceStatus{
		Device:     device,
		TotalBytes: info.total,
		FreeBytes:  info.free,
		FlushCount: info.flushCount,
	}, nil
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	resp := types.StatusResponse{
		Backend:        m.PoolName(),
		Caching:        m.mode == ModeCaching,
		Devices:        m.Devices(),
		UptimeSeconds:  int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	if m.mode == ModeCaching && m.pool != nil {
		for i := range m.devInfo {
			c := m.pool.CachedBytes(i)
			resp.CachedFreeBytes += c.Free
			resp.CachedLiveBytes += c.Live
		}
	}
	return resp
}
