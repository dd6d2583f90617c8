package types

// DevicesResponse wraps the device table returned by GET /devices.
type DevicesResponse struct {
	Devices []DeviceStatus `json:"devices"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Active allocator backend label ("caching pool allocator" or
	// "direct allocator").
	Backend string `json:"backend"`
	// True when the caching pool backend is active.
	Caching bool `json:"caching"`
	// Per-device bookkeeping entries for every device the manager has
	// initialized or queried.
	Devices []DeviceStatus `json:"devices"`
	// Bytes currently sitting in the pool's free lists across all
	// devices (zero under the direct backend).
	CachedFreeBytes uint64 `json:"cached_free_bytes"`
	// Bytes handed out by the pool and not yet returned (zero under the
	// direct backend).
	CachedLiveBytes uint64 `json:"cached_live_bytes"`
	// Uptime of the server in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	Error string `json:"error"`
	// HTTP status code.
	Code int `json:"code"`
}
