package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FlowMetrics tracks the login and download flows. Constructed once in
// main against the default registry; tests pass their own registry.
type FlowMetrics struct {
	loginsTotal      *prometheus.CounterVec
	qrPollsTotal     prometheus.Counter
	qrRefreshesTotal prometheus.Counter
	downloadPolls    prometheus.Counter
	downloadsTotal   *prometheus.CounterVec
	sessionEvictions prometheus.Counter
	flowDuration     *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *FlowMetrics {
	m := &FlowMetrics{
		loginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accord_logins_total",
				Help: "Total number of completed login attempts",
			},
			[]string{"method", "result"},
		),
		qrPollsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accord_qr_status_polls_total",
				Help: "Total number of QR login status polls issued",
			},
		),
		qrRefreshesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accord_qr_refreshes_total",
				Help: "Total number of QR code refreshes",
			},
		),
		downloadPolls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accord_download_status_polls_total",
				Help: "Total number of download job status polls issued",
			},
		),
		downloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accord_downloads_total",
				Help: "Total number of chat downloads by terminal status",
			},
			[]string{"status"},
		),
		sessionEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accord_session_evictions_total",
				Help: "Total number of flow instances evicted for idleness",
			},
		),
		flowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accord_flow_duration_seconds",
				Help:    "Time from flow start to terminal state",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"flow"},
		),
	}

	reg.MustRegister(
		m.loginsTotal,
		m.qrPollsTotal,
		m.qrRefreshesTotal,
		m.downloadPolls,
		m.downloadsTotal,
		m.sessionEvictions,
		m.flowDuration,
	)
	return m
}

func (m *FlowMetrics) IncLogin(method, result string) {
	if m == nil {
		return
	}
	m.loginsTotal.WithLabelValues(method, result).Inc()
}

func (m *FlowMetrics) IncQRPoll() {
	if m == nil {
		return
	}
	m.qrPollsTotal.Inc()
}

func (m *FlowMetrics) IncQRRefresh() {
	if m == nil {
		return
	}
	m.qrRefreshesTotal.Inc()
}

func (m *FlowMetrics) IncDownloadPoll() {
	if m == nil {
		return
	}
	m.downloadPolls.Inc()
}

func (m *FlowMetrics) IncDownload(status string) {
	if m == nil {
		return
	}
	m.downloadsTotal.WithLabelValues(status).Inc()
}

func (m *FlowMetrics) IncSessionEviction() {
	if m == nil {
		return
	}
	m.sessionEvictions.Inc()
}

func (m *FlowMetrics) ObserveFlowDuration(flow string, seconds float64) {
	if m == nil {
		return
	}
	m.flowDuration.WithLabelValues(flow).Observe(seconds)
}
