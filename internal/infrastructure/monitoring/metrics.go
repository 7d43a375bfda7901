package monitoring

import (
	"strconv"

	"emberlink/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector exposes relay and console counters on /metrics.
type MetricsCollector struct {
	payloadsForwarded *prometheus.CounterVec
	payloadsDropped   *prometheus.CounterVec
	pumpRestarts      *prometheus.CounterVec

	linkRSSI     *prometheus.GaugeVec
	linkLoss     *prometheus.GaugeVec
	linkQuality  *prometheus.GaugeVec
	endpointLive *prometheus.GaugeVec

	beatsReceived   prometheus.Counter
	reportsReceived prometheus.Counter
	reportsInvalid  prometheus.Counter
	alertsTotal     *prometheus.CounterVec
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		payloadsForwarded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emberlink_payloads_forwarded_total",
				Help: "Payloads copied between radio sides",
			},
			[]string{"channel", "direction"},
		),
		payloadsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emberlink_payloads_dropped_total",
				Help: "Payloads dropped because the outbound side was unavailable",
			},
			[]string{"channel", "direction"},
		),
		pumpRestarts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emberlink_pump_restarts_total",
				Help: "Forwarding pump restarts after a transport failure",
			},
			[]string{"channel", "direction"},
		),
		linkRSSI: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "emberlink_link_rssi_dbm",
				Help: "Smoothed RSSI per directional link",
			},
			[]string{"from", "to", "iface"},
		),
		linkLoss: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "emberlink_link_loss_ratio",
				Help: "Packet loss ratio over the recent window per directional link",
			},
			[]string{"from", "to", "iface"},
		),
		linkQuality: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "emberlink_link_quality_score",
				Help: "Normalized 0-100 link quality per directional link",
			},
			[]string{"from", "to", "iface"},
		),
		endpointLive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "emberlink_endpoint_liveness",
				Help: "Endpoint liveness: 0 alive, 1 stale, 2 lost",
			},
			[]string{"endpoint"},
		),
		beatsReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "emberlink_heartbeats_received_total",
				Help: "Heartbeat payloads decoded by the console",
			},
		),
		reportsReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "emberlink_link_reports_received_total",
				Help: "Link quality reports accepted by the console",
			},
		),
		reportsInvalid: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "emberlink_link_reports_invalid_total",
				Help: "Link quality reports discarded as malformed",
			},
		),
		alertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emberlink_liveness_alerts_total",
				Help: "Liveness transitions fanned out to alert sinks",
			},
			[]string{"to"},
		),
	}
}

func channelLabel(id domain.ChannelID) string {
	return strconv.Itoa(int(id))
}

func (m *MetricsCollector) RecordForwarded(id domain.ChannelID, direction string) {
	m.payloadsForwarded.WithLabelValues(channelLabel(id), direction).Inc()
}

func (m *MetricsCollector) RecordDropped(id domain.ChannelID, direction string) {
	m.payloadsDropped.WithLabelValues(channelLabel(id), direction).Inc()
}

func (m *MetricsCollector) RecordPumpRestart(id domain.ChannelID, direction string) {
	m.pumpRestarts.WithLabelValues(channelLabel(id), direction).Inc()
}

func (m *MetricsCollector) UpdateLink(link domain.Link) {
	from := string(link.Key.From)
	to := string(link.Key.To)
	iface := string(link.Key.Iface)
	m.linkRSSI.WithLabelValues(from, to, iface).Set(link.RSSI)
	m.linkLoss.WithLabelValues(from, to, iface).Set(link.Loss)
	m.linkQuality.WithLabelValues(from, to, iface).Set(link.QualityScore())
}

func livenessValue(state domain.Liveness) float64 {
	switch state {
	case domain.LivenessStale:
		return 1
	case domain.LivenessLost:
		return 2
	default:
		return 0
	}
}

func (m *MetricsCollector) UpdateLiveness(id domain.EndpointID, state domain.Liveness) {
	m.endpointLive.WithLabelValues(string(id)).Set(livenessValue(state))
}

func (m *MetricsCollector) RecordBeat() {
	m.beatsReceived.Inc()
}

func (m *MetricsCollector) RecordReport() {
	m.reportsReceived.Inc()
}

func (m *MetricsCollector) RecordInvalidReport() {
	m.reportsInvalid.Inc()
}

func (m *MetricsCollector) RecordAlert(to domain.Liveness) {
	m.alertsTotal.WithLabelValues(string(to)).Inc()
}
