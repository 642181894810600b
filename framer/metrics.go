package framer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/serialframe/metric"
)

// framerMetrics holds Prometheus metrics for framer operations. Counters are
// incremented under the framer lock alongside the statistics fields so both
// views stay in lock-step.
type framerMetrics struct {
	records        prometheus.Counter
	recordBytes    prometheus.Counter
	bytesReceived  prometheus.Counter
	overflows      prometheus.Counter
	bytesDiscarded prometheus.Counter
	emptyRecords   prometheus.Counter
	discards       prometheus.Counter
	handlerFaults  prometheus.Counter

	usage       prometheus.Gauge
	peakUsage   prometheus.Gauge
	utilization prometheus.Gauge
}

// newFramerMetrics creates and registers framer metrics with the provided registry.
func newFramerMetrics(registry *metric.MetricsRegistry, prefix string) (*framerMetrics, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "serialframe",
			Subsystem:   "framer",
			Name:        name,
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "serialframe",
			Subsystem:   "framer",
			Name:        name,
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        help,
		})
	}

	m := &framerMetrics{
		records:        counter("records_total", "Total number of records delivered"),
		recordBytes:    counter("record_bytes_total", "Total payload bytes delivered in records"),
		bytesReceived:  counter("bytes_received_total", "Total bytes consumed from the source"),
		overflows:      counter("overflow_events_total", "Total drop-oldest overflow events"),
		bytesDiscarded: counter("bytes_discarded_total", "Total bytes lost to overflow and discard"),
		emptyRecords:   counter("empty_records_total", "Total empty records skipped"),
		discards:       counter("discards_total", "Total manual discard operations"),
		handlerFaults:  counter("handler_faults_total", "Total handler panics recovered at delivery"),
		usage:          gauge("usage_bytes", "Currently buffered bytes"),
		peakUsage:      gauge("peak_usage_bytes", "High-water mark of buffered bytes"),
		utilization:    gauge("utilization", "Buffer utilization as a ratio (0.0 to 1.0)"),
	}

	counters := []struct {
		name string
		c    prometheus.Counter
	}{
		{"framer_records", m.records},
		{"framer_record_bytes", m.recordBytes},
		{"framer_bytes_received", m.bytesReceived},
		{"framer_overflows", m.overflows},
		{"framer_bytes_discarded", m.bytesDiscarded},
		{"framer_empty_records", m.emptyRecords},
		{"framer_discards", m.discards},
		{"framer_handler_faults", m.handlerFaults},
	}
	for _, reg := range counters {
		if err := registry.RegisterCounter(prefix, reg.name, reg.c); err != nil {
			return nil, err
		}
	}

	gauges := []struct {
		name string
		g    prometheus.Gauge
	}{
		{"framer_usage", m.usage},
		{"framer_peak_usage", m.peakUsage},
		{"framer_utilization", m.utilization},
	}
	for _, reg := range gauges {
		if err := registry.RegisterGauge(prefix, reg.name, reg.g); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// recordIngest accounts for n bytes landing in the ring.
func (m *framerMetrics) recordIngest(n, usage, capacity, peak int) {
	if n > 0 {
		m.bytesReceived.Add(float64(n))
	}
	m.usage.Set(float64(usage))
	m.peakUsage.Set(float64(peak))
	m.utilization.Set(float64(usage) / float64(capacity))
}

// recordOverflow accounts for one drop-oldest event that evicted dropped
// buffered bytes. The skipped portion of an over-capacity batch is accounted
// separately through recordSkipped as it is consumed.
func (m *framerMetrics) recordOverflow(dropped int) {
	m.overflows.Inc()
	if dropped > 0 {
		m.bytesDiscarded.Add(float64(dropped))
	}
}

// recordSkipped accounts for incoming bytes dropped without being stored.
func (m *framerMetrics) recordSkipped(n int) {
	if n > 0 {
		m.bytesDiscarded.Add(float64(n))
	}
}

// recordEmitted accounts for one delivered record of length bytes.
func (m *framerMetrics) recordEmitted(length int) {
	m.records.Inc()
	m.recordBytes.Add(float64(length))
}

// recordEmpty accounts for one skipped empty record.
func (m *framerMetrics) recordEmpty() {
	m.emptyRecords.Inc()
}

// recordDiscard accounts for one manual discard of n bytes.
func (m *framerMetrics) recordDiscard(n int) {
	m.discards.Inc()
	if n > 0 {
		m.bytesDiscarded.Add(float64(n))
	}
}

// recordFault accounts for one recovered handler panic.
func (m *framerMetrics) recordFault() {
	m.handlerFaults.Inc()
}

// updateUsage refreshes the usage gauges after scanning removed bytes.
func (m *framerMetrics) updateUsage(usage, capacity int) {
	m.usage.Set(float64(usage))
	m.utilization.Set(float64(usage) / float64(capacity))
}
