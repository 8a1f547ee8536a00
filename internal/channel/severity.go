package channel

// Archiver-level severity codes written by the archive engine in place of
// an alarm severity.
const (
	// SeverityMaxAlarm is the highest ordinary alarm severity (INVALID).
	SeverityMaxAlarm = 3

	// SeverityArchiveDisabled marks the start of a period where archiving
	// of the channel was disabled.
	SeverityArchiveDisabled = 0x0f08

	// SeverityRepeat marks a repeat-count sample.
	SeverityRepeat = 0x0f10

	// SeverityArchiveOff marks an archive engine shutdown.
	SeverityArchiveOff = 0x0f20

	// SeverityDisconnected marks loss of the channel connection.
	SeverityDisconnected = 0x0f40

	// SeverityEstRepeat marks an estimated repeat-count sample.
	SeverityEstRepeat = 0x0f80
)

// Connectivity classifies a severity code for the export state machine.
type Connectivity int

const (
	// Connected covers ordinary alarm severities 0..3.
	Connected Connectivity = iota
	// Disconnected means the channel connection was lost.
	Disconnected
	// ArchiveOff means the archive engine was shut down.
	ArchiveOff
	// ArchiveDisabled means archiving was disabled for the channel.
	ArchiveDisabled
	// SpecialOther is any other severity code, e.g. repeat suppression.
	SpecialOther
)

// String returns a lower-case name for logs.
func (c Connectivity) String() string {
	switch c {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case ArchiveOff:
		return "archive_off"
	case ArchiveDisabled:
		return "archive_disabled"
	default:
		return "special"
	}
}

// IsOutage reports whether c is one of the three loss-of-archiving classes.
func (c Connectivity) IsOutage() bool {
	return c == Disconnected || c == ArchiveOff || c == ArchiveDisabled
}

// Classify maps a raw severity code to its Connectivity class.
func Classify(severity int32) Connectivity {
	switch {
	case severity >= 0 && severity <= SeverityMaxAlarm:
		return Connected
	case severity == SeverityDisconnected:
		return Disconnected
	case severity == SeverityArchiveOff:
		return ArchiveOff
	case severity == SeverityArchiveDisabled:
		return ArchiveDisabled
	default:
		return SpecialOther
	}
}
