package manager

import "strconv"

// unknownDeviceError signals a device id outside the bookkeeping table,
// for 404 mapping in the HTTP layer.
type unknownDeviceError struct{ device int }

func (e unknownDeviceError) Error() string {
	return "unknown device: " + strconv.Itoa(e.device)
}

// ErrUnknownDevice constructs an unknownDeviceError.
func ErrUnknownDevice(device int) error { return unknownDeviceError{device: device} }

// IsUnknownDevice reports whether err indicates a device id the manager
// has never initialized or queried.
func IsUnknownDevice(err error) bool {
	_, ok := err.(unknownDeviceError)
	return ok
}
