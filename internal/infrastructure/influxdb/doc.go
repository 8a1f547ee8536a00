// Package influxdb writes export statistics to InfluxDB v2.
//
// One pv_export point is written per finished PV, tagged with the PV name
// and outcome, carrying the record counters and duration as fields. Writes
// are batched and non-blocking; failures surface through SetOnError.
//
// Configuration:
//
//	influxdb:
//	  enabled: true
//	  url: "http://localhost:8086"
//	  token: ""              # set via PBEXPORT_INFLUXDB_TOKEN
//	  org: "controls"
//	  bucket: "pbexport"
//	  batch_size: 100
//	  flush_interval: 10     # seconds
package influxdb
