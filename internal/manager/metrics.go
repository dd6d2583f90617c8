package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	allocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devmem",
			Subsystem: "manager",
			Name:      "allocations_total",
			Help:      "Total number of successful device allocations",
		},
		[]string{"backend"},
	)

	allocationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devmem",
			Subsystem: "manager",
			Name:      "allocation_failures_total",
			Help:      "Total number of failed device allocations",
		},
		[]string{"backend"},
	)

	deallocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devmem",
			Subsystem: "manager",
			Name:      "deallocations_total",
			Help:      "Total number of device deallocations",
		},
		[]string{"backend"},
	)

	cacheFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devmem",
			Subsystem: "manager",
			Name:      "cache_flushes_total",
			Help:      "Forced device-table refreshes attributed to a device",
		},
		[]string{"device"},
	)

	deviceFreeBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "devmem",
			Subsystem: "manager",
			Name:      "device_free_bytes",
			Help:      "Free device memory as last observed, corrected for pool occupancy",
		},
		[]string{"device"},
	)

	deviceTotalBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "devmem",
			Subsystem: "manager",
			Name:      "device_total_bytes",
			Help:      "Total device memory as last observed",
		},
		[]string{"device"},
	)
)

func init() {
	prometheus.MustRegister(
		allocationsTotal,
		allocationFailuresTotal,
		deallocationsTotal,
		cacheFlushesTotal,
		deviceFreeBytes,
		deviceTotalBytes,
	)
}
