// Package ndpmetrics exposes Prometheus metrics for the NDP endpoint
// pipeline (IngressPipe, PktGen, Network).
package ndpmetrics

import "github.com/prometheus/client_golang/prometheus"

// -------------------------------------------------------------------------
// Prometheus metric constants
// -------------------------------------------------------------------------

const (
	namespace = "ndp"
	subsystem = "endpoint"
)

// Label names.
const (
	labelFlags = "flags"
	labelKind  = "kind"
)

// -------------------------------------------------------------------------
// Collector
// -------------------------------------------------------------------------

// Collector holds all NDP Prometheus metrics.
type Collector struct {
	// PacketsClassified counts packets IngressPipe has dispatched, by
	// flag combination (e.g. "DATA", "DATA|CHOP", "ACK", "NACK|PULL").
	PacketsClassified *prometheus.CounterVec

	// CreditUpdates counts credit table writes.
	CreditUpdates prometheus.Counter

	// PullsGenerated counts PULL control packets CtrlPktEvent was asked
	// to emit, before coalescing/pacing.
	PullsGenerated prometheus.Counter

	// PullsCoalesced counts PULLs that absorbed a standalone ACK or NACK
	// rather than releasing them separately.
	PullsCoalesced prometheus.Counter

	// PullsPacedNs observes the delay, in nanoseconds, the pacer imposed
	// before releasing a PULL.
	PullsPacedNs prometheus.Histogram

	// TrimsApplied counts data packets the Network trimmed.
	TrimsApplied prometheus.Counter

	// ArbiterDropped counts control packets PktGen dropped because the
	// arbiter queue was full.
	ArbiterDropped *prometheus.CounterVec
}

// NewCollector creates a Collector with all NDP metrics registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.PacketsClassified,
		c.CreditUpdates,
		c.PullsGenerated,
		c.PullsCoalesced,
		c.PullsPacedNs,
		c.TrimsApplied,
		c.ArbiterDropped,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering
// them.
func newMetrics() *Collector {
	return &Collector{
		PacketsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_classified_total",
			Help:      "Total packets IngressPipe has classified, by flag combination.",
		}, []string{labelFlags}),

		CreditUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "credit_updates_total",
			Help:      "Total credit table writes across all rx_msg_ids.",
		}),

		PullsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pulls_generated_total",
			Help:      "Total PULL control packets requested from PktGen, before coalescing.",
		}),

		PullsCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pulls_coalesced_total",
			Help:      "Total PULLs that absorbed a standalone ACK or NACK.",
		}),

		PullsPacedNs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pulls_paced_ns",
			Help:      "Delay, in nanoseconds, the pacer imposed before releasing a PULL.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}),

		TrimsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "trims_applied_total",
			Help:      "Total data packets the Network trimmed (CHOP).",
		}),

		ArbiterDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "arbiter_dropped_total",
			Help:      "Total control packets dropped because the arbiter queue was full.",
		}, []string{labelKind}),
	}
}

// -------------------------------------------------------------------------
// Recording helpers
// -------------------------------------------------------------------------

// ObservePacketClassified records one packet IngressPipe has dispatched.
func (c *Collector) ObservePacketClassified(flags string) {
	c.PacketsClassified.WithLabelValues(flags).Inc()
}

// ObserveCreditUpdate records one credit table write.
func (c *Collector) ObserveCreditUpdate() {
	c.CreditUpdates.Inc()
}

// ObservePullGenerated records one PULL requested from PktGen.
func (c *Collector) ObservePullGenerated() {
	c.PullsGenerated.Inc()
}

// ObservePullCoalesced records one PULL that absorbed a standalone
// ACK/NACK.
func (c *Collector) ObservePullCoalesced() {
	c.PullsCoalesced.Inc()
}

// ObservePullPaced records the pacer delay, in nanoseconds, before a
// PULL was released.
func (c *Collector) ObservePullPaced(delayNs float64) {
	c.PullsPacedNs.Observe(delayNs)
}

// ObserveTrimApplied records one data packet trimmed by the Network.
func (c *Collector) ObserveTrimApplied() {
	c.TrimsApplied.Inc()
}

// ObserveArbiterDropped records one control packet dropped because the
// arbiter queue was full, labelled by the flags of the dropped packet.
func (c *Collector) ObserveArbiterDropped(kind string) {
	c.ArbiterDropped.WithLabelValues(kind).Inc()
}
