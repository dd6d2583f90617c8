package types

// DeviceStatus is the manager's bookkeeping view of one device.
type DeviceStatus struct {
	// Small integer id the driver uses to address the device.
	Device int `json:"device"`
	// Total memory capacity in bytes as last observed.
	TotalBytes uint64 `json:"total_bytes"`
	// Free memory in bytes as last observed, corrected for bytes held
	// live inside the caching pool (reclaimable without a driver call).
	FreeBytes uint64 `json:"free_bytes"`
	// Number of times this device was implicated in a forced refresh
	// after an allocation anomaly.
	FlushCount uint64 `json:"flush_count"`
}

// MemInfo is a free/total memory pair for the currently active device.
type MemInfo struct {
	FreeBytes  uint64 `json:"free_bytes"`
	TotalBytes uint64 `json:"total_bytes"`
}
