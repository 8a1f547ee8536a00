// Package mqtt publishes pbexport events to an MQTT broker.
//
// The exporter connects once per process, announces itself on the retained
// status topic and registers a Last Will so subscribers see it go offline
// if it dies mid-batch. A Notifier publishes one JSON message per finished
// PV on pbexport/export/<outcome>.
//
// Topic hierarchy:
//
//	pbexport/status            retained online/offline status
//	pbexport/export/ok         successful PV exports
//	pbexport/export/failed     failed PV exports
//
// Thread Safety:
//   - Client and Notifier are safe for concurrent use; exportall calls the
//     Notifier from every worker.
package mqtt
