package sham

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an optional recorder for protocol-level observability —
// counters and gauges, never consulted by the protocol engine itself, so
// wiring one in never turns into congestion control by the back door
// (§1 non-goal). A nil *Metrics is a valid no-op receiver.
type Metrics struct {
	dataSent    prometheus.Counter
	dataRecv    prometheus.Counter
	retransmits prometheus.Counter
	drops       prometheus.Counter
	acksSent    prometheus.Counter
	windowCount prometheus.Gauge
	recvBuffer  prometheus.Gauge
}

// NewMetrics creates and registers a Metrics recorder against reg. Pass a
// fresh prometheus.NewRegistry() per server process, or nil to use the
// default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dataSent:    prometheus.NewCounter(prometheus.CounterOpts{Name: "sham_data_segments_sent_total"}),
		dataRecv:    prometheus.NewCounter(prometheus.CounterOpts{Name: "sham_data_segments_received_total"}),
		retransmits: prometheus.NewCounter(prometheus.CounterOpts{Name: "sham_retransmits_total"}),
		drops:       prometheus.NewCounter(prometheus.CounterOpts{Name: "sham_simulated_drops_total"}),
		acksSent:    prometheus.NewCounter(prometheus.CounterOpts{Name: "sham_acks_sent_total"}),
		windowCount: prometheus.NewGauge(prometheus.GaugeOpts{Name: "sham_send_window_count"}),
		recvBuffer:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "sham_recv_buffer_used_bytes"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.dataSent, m.dataRecv, m.retransmits, m.drops, m.acksSent, m.windowCount, m.recvBuffer)
	return m
}

func (m *Metrics) dataSegmentSent() {
	if m != nil {
		m.dataSent.Inc()
	}
}

func (m *Metrics) dataSegmentReceived() {
	if m != nil {
		m.dataRecv.Inc()
	}
}

func (m *Metrics) retransmit() {
	if m != nil {
		m.retransmits.Inc()
	}
}

func (m *Metrics) drop() {
	if m != nil {
		m.drops.Inc()
	}
}

func (m *Metrics) ackSent() {
	if m != nil {
		m.acksSent.Inc()
	}
}

func (m *Metrics) setWindowCount(n int) {
	if m != nil {
		m.windowCount.Set(float64(n))
	}
}

func (m *Metrics) setRecvBufferUsed(n int) {
	if m != nil {
		m.recvBuffer.Set(float64(n))
	}
}
