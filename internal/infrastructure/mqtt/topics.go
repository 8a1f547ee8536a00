package mqtt

import "fmt"

// TopicPrefix is the root of every pbexport topic.
const TopicPrefix = "pbexport"

// Topics builds pbexport topic names.
//
//	mqtt.Topics{}.ExportOutcome("failed") // "pbexport/export/failed"
type Topics struct{}

// Status returns the retained online/offline status topic.
func (Topics) Status() string {
	return TopicPrefix + "/status"
}

// ExportOutcome returns the topic for finished exports with outcome.
func (Topics) ExportOutcome(outcome string) string {
	return fmt.Sprintf("%s/export/%s", TopicPrefix, outcome)
}

// ExportAll returns the wildcard matching every export event.
func (Topics) ExportAll() string {
	return TopicPrefix + "/export/+"
}
