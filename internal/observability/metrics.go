package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the paper-trading desk.
// All collectors are optional: components treat a nil *Metrics as disabled.
type Metrics struct {
	// --- Order lifecycle ---
	OrdersAccepted *prometheus.CounterVec
	OrdersRejected *prometheus.CounterVec
	OrdersCanceled *prometheus.CounterVec
	OrderFills     *prometheus.CounterVec
	FillQuantity   *prometheus.HistogramVec

	// --- Accounting ---
	Equity       prometheus.Gauge
	PeakEquity   prometheus.Gauge
	FeesCharged  *prometheus.CounterVec
	RealizedPnL  *prometheus.CounterVec

	// --- Funding ---
	FundingCharges *prometheus.CounterVec

	// --- Risk ---
	MarginLevel       prometheus.Gauge
	RiskActionsIssued *prometheus.CounterVec

	// --- Persistence ---
	SnapshotSaves  *prometheus.CounterVec
	SnapshotErrors prometheus.Counter
}

// NewMetrics registers all collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OrdersAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_orders_accepted_total",
			Help: "Orders accepted, by instrument",
		}, []string{"instrument"}),
		OrdersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_orders_rejected_total",
			Help: "Orders rejected, by instrument and reason",
		}, []string{"instrument", "reason"}),
		OrdersCanceled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_orders_canceled_total",
			Help: "Orders canceled, by instrument",
		}, []string{"instrument"}),
		OrderFills: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_order_fills_total",
			Help: "Simulated fills, by instrument and liquidity role",
		}, []string{"instrument", "role"}),
		FillQuantity: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "papertrade_fill_quantity",
			Help:    "Per-fill quantity distribution",
			Buckets: prometheus.ExponentialBuckets(0.0001, 10, 8),
		}, []string{"instrument"}),
		Equity: factory.NewGauge(prometheus.GaugeOpts{
			Name: "papertrade_equity",
			Help: "Current portfolio equity in quote terms",
		}),
		PeakEquity: factory.NewGauge(prometheus.GaugeOpts{
			Name: "papertrade_peak_equity",
			Help: "Peak portfolio equity observed",
		}),
		FeesCharged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_fees_charged_total",
			Help: "Cumulative fees charged, by instrument",
		}, []string{"instrument"}),
		RealizedPnL: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_realized_pnl_events_total",
			Help: "Fills that realized PnL, by instrument and transition",
		}, []string{"instrument", "transition"}),
		FundingCharges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_funding_charges_total",
			Help: "Funding settlements applied, by instrument",
		}, []string{"instrument"}),
		MarginLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "papertrade_margin_level",
			Help: "Current margin level (0=safe .. 4=bankrupt)",
		}),
		RiskActionsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_risk_actions_total",
			Help: "Advisory liquidation actions emitted, by kind",
		}, []string{"kind"}),
		SnapshotSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_snapshot_saves_total",
			Help: "State snapshot saves, by backend",
		}, []string{"backend"}),
		SnapshotErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_snapshot_errors_total",
			Help: "State snapshot save failures",
		}),
	}
}
