package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the mirror.
const (
	MeasurementHumidity = "humidity"
	MeasurementSession  = "session"
	MeasurementLink     = "wifi_link"
)

// HumiditySample is one node's reading in a published batch.
type HumiditySample struct {
	NodeID   int
	Humidity float64
	Raw      int
}

// WriteBatch records every sample of a published batch at ts.
//
// Tags: mesh_id, node_id. Fields: humidity (percent), raw (ADC counts).
func (m *Mirror) WriteBatch(meshID string, samples []HumiditySample, ts time.Time) {
	if !m.IsConnected() {
		return
	}

	for _, s := range samples {
		point := write.NewPoint(
			MeasurementHumidity,
			map[string]string{
				"mesh_id": meshID,
				"node_id": strconv.Itoa(s.NodeID),
			},
			map[string]interface{}{
				"humidity": s.Humidity,
				"raw":      s.Raw,
			},
			ts,
		)
		m.writeAPI.WritePoint(point)
	}
}

// WriteConnectResult records the outcome of a broker connect attempt.
// Code 0 is success; other values follow the transport's connect codes.
func (m *Mirror) WriteConnectResult(meshID string, code int, ts time.Time) {
	if !m.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementSession,
		map[string]string{
			"mesh_id": meshID,
			"event":   "connect",
		},
		map[string]interface{}{
			"code":    code,
			"success": code == 0,
		},
		ts,
	)
	m.writeAPI.WritePoint(point)
}

// WriteLink records the WiFi channel the node associated on.
func (m *Mirror) WriteLink(meshID string, channel int, ts time.Time) {
	if !m.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementLink,
		map[string]string{
			"mesh_id": meshID,
		},
		map[string]interface{}{
			"channel": channel,
		},
		ts,
	)
	m.writeAPI.WritePoint(point)
}
