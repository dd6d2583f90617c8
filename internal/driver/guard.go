package driver

// Guard pins the driver's active device and restores the previous one on
// Release. It makes device-switching operations side-effect free with
// respect to the ambient active-device register on every exit path.
type Guard struct {
	drv  Driver
	prev int
	done bool
}

// PinDevice records the active device, switches to the requested one and
// returns a Guard whose Release switches back. Callers must Release on all
// paths, typically via defer.
func PinDevice(drv Driver, device int) (*Guard, error) {
	prev, err := drv.GetDevice()
	if err != nil {
		return nil, err
	}
	if err := drv.SetDevice(device); err != nil {
		return nil, err
	}
	return &Guard{drv: drv, prev: prev}, nil
}

// Release restores the device that was active when the guard was taken.
// Safe to call more than once; only the first call switches.
func (g *Guard) Release() error {
	if g == nil || g.done {
		return nil
	}
	g.done = true
	return g.drv.SetDevice(g.prev)
}
