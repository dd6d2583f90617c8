package manager

import (
	"testing"

	"devmem/internal/driver"
)

func TestGetInfoDirectIsDriverPassthrough(t *testing.T) {
	drv := driver.NewSimDriver(64 * mib)
	m := New(Config{Driver: drv})
	if _, err := drv.Malloc(10 * mib); err != nil {
		t.Fatalf("malloc: %v", err)
	}
	free, total := m.GetInfo()
	wantFree, wantTotal, _ := drv.MemGetInfo()
	if free != wantFree || total != wantTotal {
		t.Fatalf("GetInfo = (%d, %d), want (%d, %d)", free, total, wantFree, wantTotal)
	}
}

func TestGetInfoCachingSubtractsLiveBytes(t *testing.T) {
	drv := driver.NewSimDriver(gib)
	p := newStubPool(drv)
	m := New(Config{Driver: drv, PoolFactory: stubFactory(p)})
	if err := m.Init([]int{0}, ModeCaching, false); err != nil {
		t.Fatalf("init: %v", err)
	}
	d, _ := m.DeviceStatus(0)

	p.setLive(0, 256*mib)
	free, total := m.GetInfo()
	if total != d.TotalBytes {
		t.Fatalf("total = %d, want table value %d", total, d.TotalBytes)
	}
	if want := d.FreeBytes - 256*mib; free != want {
		t.Fatalf("free = %d, want %d", free, want)
	}
}

func TestGetInfoCachingAvoidsDriverQuery(t *testing.T) {
	drv := driver.NewSimDriver(gib)
	p := newStubPool(drv)
	m := New(Config{Driver: drv, PoolFactory: stubFactory(p)})
	if err := m.Init([]int{0}, ModeCaching, false); err != nil {
		t.Fatalf("init: %v", err)
	}
	before, _, _ := drv.MemGetInfo()
	// Consume driver memory behind the manager's back; the cached view
	// must not notice until the next refresh.
	if _, err := drv.Malloc(512 * mib); err != nil {
		t.Fatalf("malloc: %v", err)
	}
	free, _ := m.GetInfo()
	if free != before {
		t.Fatalf("expected stale cached figure %d, got %d", before, free)
	}
	if err := m.UpdateDevInfo(0); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	free, _ = m.GetInfo()
	if free != before-512*mib {
		t.Fatalf("expected refreshed figure %d, got %d", before-512*mib, free)
	}
}

func TestGetInfoCachingSaturatesAtZero(t *testing.T) {
	drv := driver.NewSimDriver(gib)
	p := newStubPool(drv)
	m := New(Config{Driver: drv, PoolFactory: stubFactory(p)})
	if err := m.Init([]int{0}, ModeCaching, false); err != nil {
		t.Fatalf("init: %v", err)
	}
	p.setLive(0, 4*gib) // stale beyond the table's free figure
	free, _ := m.GetInfo()
	if free != 0 {
		t.Fatalf("expected saturation at zero, got %d", free)
	}
}
