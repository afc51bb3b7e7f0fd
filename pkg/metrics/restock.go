package metrics

import "github.com/prometheus/client_golang/prometheus"

// Redemption channels.
const (
	ChannelSupplier = "supplier"
	ChannelScan     = "scan"
)

// RestockMetrics tracks restock code issuance and redemption.
type RestockMetrics struct {
	issued        prometheus.Counter
	fulfilled     *prometheus.CounterVec
	cancelled     prometheus.Counter
	invalidCodes  *prometheus.CounterVec
	notifyFailure *prometheus.CounterVec
	expiredOpen   prometheus.Gauge
}

// NewRestockMetrics registers restock metrics on reg. A nil registerer yields no-op metrics.
func NewRestockMetrics(reg prometheus.Registerer) *RestockMetrics {
	if reg == nil {
		return &RestockMetrics{}
	}
	m := &RestockMetrics{
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_restock_codes_issued_total",
			Help: "Restock requests created with a fresh code.",
		}),
		fulfilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_restock_fulfilled_total",
			Help: "Restock requests fulfilled, by redemption channel.",
		}, []string{"channel"}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_restock_cancelled_total",
			Help: "Restock requests cancelled by an admin.",
		}),
		invalidCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_restock_invalid_code_total",
			Help: "Rejected code redemptions, by channel and internal reason.",
		}, []string{"channel", "reason"}),
		notifyFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_restock_notification_failures_total",
			Help: "Supplier emails that could not be sent.",
		}, []string{"kind"}),
		expiredOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_restock_expired_open",
			Help: "Requests past expiry with neither fulfillment nor cancellation, as of the last report.",
		}),
	}
	reg.MustRegister(m.issued, m.fulfilled, m.cancelled, m.invalidCodes, m.notifyFailure, m.expiredOpen)
	return m
}

func (m *RestockMetrics) IncIssued() {
	if m == nil || m.issued == nil {
		return
	}
	m.issued.Inc()
}

func (m *RestockMetrics) IncFulfilled(channel string) {
	if m == nil || m.fulfilled == nil {
		return
	}
	m.fulfilled.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *RestockMetrics) IncCancelled() {
	if m == nil || m.cancelled == nil {
		return
	}
	m.cancelled.Inc()
}

func (m *RestockMetrics) IncInvalidCode(channel, reason string) {
	if m == nil || m.invalidCodes == nil {
		return
	}
	m.invalidCodes.WithLabelValues(normalizeLabel(channel), normalizeLabel(reason)).Inc()
}

func (m *RestockMetrics) IncNotificationFailure(kind string) {
	if m == nil || m.notifyFailure == nil {
		return
	}
	m.notifyFailure.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *RestockMetrics) SetExpiredOpen(count int64) {
	if m == nil || m.expiredOpen == nil {
		return
	}
	m.expiredOpen.Set(float64(count))
}
