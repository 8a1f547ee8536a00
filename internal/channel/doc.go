// Package channel defines the data model shared by the historian reader and
// the protobuf exporter.
//
// A channel (process variable, PV) produces a time-ordered series of samples.
// Each sample carries a timestamp, an alarm severity and status, and a value
// of one of fourteen shapes: seven scalar kinds, each in scalar or array
// (waveform) form.
//
// # Values
//
// Value is a closed tagged union. The fourteen concrete types below are the
// only implementations; consumers dispatch with a type switch:
//
//	switch v := s.Value.(type) {
//	case channel.ScalarDouble:
//	    ...
//	case channel.VectorDouble:
//	    ...
//	}
//
// Values are constructed once, when the historian cursor decodes a raw
// sample, and are read-only afterwards.
//
// # Severity
//
// The historian overloads the severity field to record archiver-level
// events (disconnects, archive engine shutdown, repeat suppression). Classify
// maps a raw severity code onto the Connectivity classes used by the
// exporter's state machine.
package channel
