package export

import (
	"strconv"

	"github.com/nerrad567/pbexport/internal/channel"
	"github.com/nerrad567/pbexport/internal/pb"
)

// Annotation field names written on the first sample after an outage.
const (
	fieldCnxLost     = "cnxlostepsecs"
	fieldCnxRegained = "cnxregainedepsecs"
	fieldStartup     = "startup"
	fieldResume      = "resume"
)

// restartKind records why archiving stopped. Higher values take priority.
type restartKind uint8

const (
	restartNone restartKind = iota
	restartResume
	restartStartup
)

// connectivity tracks archiver outages for one PV.
type connectivity struct {
	since   channel.Timestamp
	pending bool
	restart restartKind
}

// verdict is the state machine's decision for one sample.
type verdict struct {
	class channel.Connectivity

	// write is false for suppressed outage samples.
	write bool

	// attachable is true when static fields may be attached.
	attachable bool

	annotations []pb.FieldValue
}

// observe advances the state machine by one sample.
func (c *connectivity) observe(s channel.Sample) verdict {
	class := channel.Classify(s.Severity)

	switch {
	case class.IsOutage():
		if !c.pending {
			c.since = s.Time
			c.pending = true
		}
		switch class {
		case channel.ArchiveOff:
			c.restart = restartStartup
		case channel.ArchiveDisabled:
			if c.restart == restartNone {
				c.restart = restartResume
			}
		}
		return verdict{class: class}

	case class == channel.Connected:
		v := verdict{class: class, write: true, attachable: true}
		if c.pending {
			v.annotations = c.annotations(s.Time)
			c.pending = false
			c.restart = restartNone
		}
		return v

	default:
		// Special severities are written as-is and never carry the outage
		// annotation; it is deliberately deferred to the next connected
		// sample.
		return verdict{class: class, write: true}
	}
}

func (c *connectivity) annotations(regained channel.Timestamp) []pb.FieldValue {
	out := []pb.FieldValue{
		{Name: fieldCnxLost, Val: strconv.FormatInt(c.since.Sec, 10)},
		{Name: fieldCnxRegained, Val: strconv.FormatInt(regained.Sec, 10)},
	}
	switch c.restart {
	case restartStartup:
		out = append(out, pb.FieldValue{Name: fieldStartup, Val: "true"})
	case restartResume:
		out = append(out, pb.FieldValue{Name: fieldResume, Val: "true"})
	}
	return out
}
