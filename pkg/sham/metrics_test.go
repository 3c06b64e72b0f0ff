package sham

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsNilReceiverIsNoOp(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.dataSegmentSent()
		m.dataSegmentReceived()
		m.retransmit()
		m.drop()
		m.ackSent()
		m.setWindowCount(3)
		m.setRecvBufferUsed(128)
	})
}

func TestMetricsRecordsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.dataSegmentSent()
	m.dataSegmentSent()
	m.retransmit()

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if metric.GetCounter() != nil {
				counts[f.GetName()] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), counts["sham_data_segments_sent_total"])
	assert.Equal(t, float64(1), counts["sham_retransmits_total"])
}
