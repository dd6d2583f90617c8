// Package manager routes device-memory allocation between two
// interchangeable backends: a direct one calling the driver for every
// request, and a caching one delegating to a binned pool that reuses freed
// blocks. On top of backend dispatch it keeps a per-device bookkeeping
// table (free/total bytes corrected for pool occupancy, flush counters)
// and refreshes it whenever an allocation anomaly suggests the cached view
// went stale. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: Mode enum and the internal device table entry.
//   - lifecycle.go: Init/Close and backend selection.
//   - backend.go: the backend capability set and the direct backend.
//   - caching.go: the caching backend and its anomaly-refresh path.
//   - devinfo.go: per-device bookkeeping refresh (UpdateDevInfo).
//   - errors.go: error types and helpers (IsUnknownDevice).
//   - events.go: EventPublisher and the in-memory publisher for tests.
//   - metrics.go: Prometheus collectors.
//   - status.go: Status/Devices reporting for the HTTP layer.
//
// The manager adds no locking of its own: callers serialize Init/Close,
// and concurrent TryAllocate/Deallocate rely on the pool being internally
// thread-safe. Frees are expected to always succeed for valid pointers;
// a failing free, like a failed pool construction, escalates to a panic.
package manager
