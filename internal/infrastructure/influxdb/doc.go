// Package influxdb mirrors the node's telemetry into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. The mirror is
// optional: Open returns ErrDisabled when it is switched off, and every
// write is a non-blocking no-op once the mirror is closed.
//
// # Measurements
//
//	humidity   tags mesh_id, node_id   fields humidity, raw
//	session    tags mesh_id, event     fields code, success
//	wifi_link  tags mesh_id            fields channel
//
// # Usage
//
//	mirror, err := influxdb.Open(cfg.InfluxDB)
//	if err != nil && !errors.Is(err, influxdb.ErrDisabled) {
//	    log.Warn("telemetry mirror unavailable", "error", err)
//	}
//	defer mirror.Close()
//
//	mirror.WriteBatch("node-A", samples, time.Now())
package influxdb
