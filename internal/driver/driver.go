// Package driver defines the raw device allocation API the memory manager
// sits on top of, plus a simulated in-memory implementation for tests and
// the devmemd tool. Real hardware bindings implement Driver behind a build
// tag; everything above this package is hardware-agnostic.
package driver

import "errors"

// DevicePtr is an opaque device memory handle returned by Malloc. The zero
// value is the null pointer.
type DevicePtr uintptr

// Queue is an opaque execution-queue handle an allocation may be scheduled
// against. The zero value is the device's default queue.
type Queue uintptr

// DefaultQueue schedules work on the device's default execution queue.
const DefaultQueue Queue = 0

// Properties is the hardware property block of a device.
type Properties struct {
	Name        string
	TotalMemory uint64
}

// Sentinel errors a Driver implementation reports. Callers match with
// errors.Is, never by message.
var (
	ErrOutOfMemory    = errors.New("device out of memory")
	ErrInvalidDevice  = errors.New("invalid device ordinal")
	ErrInvalidPointer = errors.New("invalid device pointer")
)

// Driver is the raw device API. Implementations keep an ambient
// "active device" register: Malloc, Free and MemGetInfo act on whichever
// device was last selected with SetDevice.
//
// Implementations also keep a sticky last-error register in the style of
// device runtimes: any failing call records its error, and LastError
// returns and clears it. A successful call does not clear a previously
// recorded error.
type Driver interface {
	// DeviceCount reports the number of devices visible to the process.
	DeviceCount() (int, error)

	// GetDevice returns the ordinal of the active device.
	GetDevice() (int, error)

	// SetDevice makes the given device the active one.
	SetDevice(device int) error

	// Properties returns the hardware property block for a device.
	Properties(device int) (Properties, error)

	// MemGetInfo reports free and total memory of the active device as
	// the driver sees it (pool-cached bytes count as in use).
	MemGetInfo() (free, total uint64, err error)

	// Malloc allocates size bytes on the active device.
	Malloc(size uint64) (DevicePtr, error)

	// Free releases a pointer previously returned by Malloc.
	Free(ptr DevicePtr) error

	// LastError returns the sticky error register and clears it.
	// nil means no error occurred since the last call.
	LastError() error
}
