// Package influxdb records device status history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with batched
// non-blocking writes, connection health checks, and an async error
// callback. The integration is optional: when disabled in
// configuration, Connect returns ErrDisabled and the bridge runs
// without metrics.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    // ErrDisabled is expected when the integration is off
//	}
//	defer client.Close()
//
//	client.WriteStatus("esp32_light_001", "on", "alice", "telegram")
package influxdb
