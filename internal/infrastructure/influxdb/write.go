package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteStatus records one device status transition.
//
// This is the primary measurement: every status event relayed to chat
// users lands here, so operators can chart device activity over time.
// The write is non-blocking; data is batched and sent asynchronously.
// It satisfies the status relay's metrics contract.
//
// Parameters:
//   - deviceID: Device the status belongs to
//   - status: Reported state ("on", "off", ...)
//   - username: User whose command caused the transition
//   - platform: Messaging platform the command came from
func (c *Client) WriteStatus(deviceID, status, username, platform string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_status",
		map[string]string{
			"device_id": deviceID,
			"platform":  platform,
		},
		map[string]interface{}{
			"status":   status,
			"username": username,
			"on":       boolValue(status == "on"),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// boolValue stores on/off as 1/0 so the field is graphable.
func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// WriteCommand records that a command envelope was published, tagged
// by outcome so command volume and failure rates can be charted.
func (c *Client) WriteCommand(deviceID, command string, succeeded bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_commands",
		map[string]string{
			"device_id": deviceID,
			"command":   command,
		},
		map[string]interface{}{
			"succeeded": succeeded,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and
// fields, for measurements the helpers do not cover.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
