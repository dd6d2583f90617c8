package manager

import (
	"errors"
	"os"
)

// Init selects the allocator backend for the given devices. An empty
// device set forces direct mode: a caching pool with no known devices is
// meaningless. Debug resolves once here as flag OR environment override.
//
// For ModeCaching any pre-existing pool is closed first (errors ignored),
// a fresh pool is built and the device table primed for every requested
// device. Construction is expected to succeed; ending up without a pool is
// a precondition violation and panics.
//
// Init is not safe against concurrent manager calls; callers serialize.
func (m *Manager) Init(devices []int, mode Mode, debug bool) error {
	m.debug = debug || os.Getenv(debugEnv) != ""
	if len(devices) == 0 {
		mode = ModeDirect
	}
	switch mode {
	case ModeCaching:
		if m.pool != nil {
			// Just in case a pool was installed earlier.
			_ = m.pool.Close()
			m.pool = nil
		}
		p, err := m.poolFactory(m.drv, m.poolConfig())
		if err != nil {
			m.log.Error().Err(err).Msg("caching pool construction failed")
		} else {
			m.pool = p
		}
		if m.pool == nil {
			m.fatal(errors.New("pool factory returned no pool"), "caching pool unavailable")
		}
		m.backend = &cachingBackend{m: m, pool: m.pool}
		for _, dev := range devices {
			if err := m.UpdateDevInfo(dev); err != nil {
				return err
			}
		}
	default:
		mode = ModeDirect
		m.backend = &directBackend{m: m}
	}
	m.mode = mode
	if m.debug {
		m.log.Debug().Str("backend", m.backend.name()).Msg("device memory manager initialized")
	}
	return nil
}

// Close tears down the pool, if any, and resets the manager to direct
// mode. Idempotent; the manager may be re-Init'ed afterwards.
func (m *Manager) Close() {
	if m.pool != nil {
		if err := m.pool.Close(); err != nil {
			m.log.Error().Err(err).Msg("pool close failed")
		}
		m.pool = nil
	}
	m.mode = ModeDirect
	m.backend = &directBackend{m: m}
}
