package journal

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const Measurement = "smartbin_event"

// EventToPoint normalizza un Event in un *write.Point per InfluxDB.
func EventToPoint(evt Event) *write.Point {
	sev := evt.Severity
	if sev == "" {
		sev = SeverityInfo
	}
	tags := map[string]string{
		"event_type": string(evt.Type),
		"bin_id":     evt.BinID,
		"severity":   string(sev),
	}
	if evt.Category != "" {
		tags["category"] = evt.Category
	}

	fields := make(map[string]interface{}, len(evt.Fields)+1)
	for k, v := range evt.Fields {
		fields[k] = v
	}
	// un point senza field viene rifiutato da Influx
	if _, ok := fields["count"]; !ok {
		fields["count"] = int64(1)
	}

	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return influxdb2.NewPoint(Measurement, tags, fields, ts)
}
