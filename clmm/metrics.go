package clmm

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters and gauges a Pool updates as it processes
// operations. It is threaded through NewPool exactly the way the teacher
// threads a prometheus.Registerer into ethstateops.NewStateOps and
// ethereum.Dial: the caller owns the registry, the callee owns the metric
// definitions.
type Metrics struct {
	swapsTotal        *prometheus.CounterVec
	mintsTotal        prometheus.Counter
	burnsTotal        prometheus.Counter
	collectsTotal     prometheus.Counter
	flashesTotal      prometheus.Counter
	activeLiquidity   prometheus.Gauge
	oracleCardinality prometheus.Gauge
}

// NewMetrics registers a Pool's metric set against reg. Passing nil returns
// a Metrics whose methods are safe no-ops, so Pool never has to nil-check it.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		swapsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_total",
			Help:      "Total number of completed swaps, labeled by direction.",
		}, []string{"zero_for_one"}),
		mintsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mints_total",
			Help:      "Total number of completed mints.",
		}),
		burnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "burns_total",
			Help:      "Total number of completed burns.",
		}),
		collectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collects_total",
			Help:      "Total number of completed collects.",
		}),
		flashesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flashes_total",
			Help:      "Total number of completed flash loans.",
		}),
		activeLiquidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_liquidity",
			Help:      "Current in-range liquidity, as a float64 approximation of the 128-bit value.",
		}),
		oracleCardinality: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "oracle_observation_cardinality",
			Help:      "Current populated length of the oracle observation ring.",
		}),
	}

	reg.MustRegister(
		m.swapsTotal,
		m.mintsTotal,
		m.burnsTotal,
		m.collectsTotal,
		m.flashesTotal,
		m.activeLiquidity,
		m.oracleCardinality,
	)
	return m
}

func (m *Metrics) swap(zeroForOne bool) {
	if m == nil {
		return
	}
	label := "false"
	if zeroForOne {
		label = "true"
	}
	m.swapsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) mint() {
	if m == nil {
		return
	}
	m.mintsTotal.Inc()
}

func (m *Metrics) burn() {
	if m == nil {
		return
	}
	m.burnsTotal.Inc()
}

func (m *Metrics) collect() {
	if m == nil {
		return
	}
	m.collectsTotal.Inc()
}

func (m *Metrics) flash() {
	if m == nil {
		return
	}
	m.flashesTotal.Inc()
}

func (m *Metrics) setActiveLiquidity(l float64) {
	if m == nil {
		return
	}
	m.activeLiquidity.Set(l)
}

func (m *Metrics) setOracleCardinality(c float64) {
	if m == nil {
		return
	}
	m.oracleCardinality.Set(c)
}
