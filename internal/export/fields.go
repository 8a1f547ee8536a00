package export

import (
	"strconv"
	"strings"

	"github.com/nerrad567/pbexport/internal/channel"
	"github.com/nerrad567/pbexport/internal/pb"
)

// Static field names.
const (
	fieldHOPR   = "HOPR"
	fieldLOPR   = "LOPR"
	fieldEGU    = "EGU"
	fieldHIHI   = "HIHI"
	fieldHIGH   = "HIGH"
	fieldLOW    = "LOW"
	fieldLOLO   = "LOLO"
	fieldPREC   = "PREC"
	fieldStates = "states"
)

// staticFields derives the descriptive fields attached once per day to
// records of a channel with the given shape.
//
// Numeric kinds get the display range and units, numeric scalars also the
// alarm limits, and floating kinds the precision. Enums get their state
// labels joined with ';'. Strings and bytes get nothing.
func staticFields(shape channel.Shape, meta channel.Meta) []pb.FieldValue {
	var out []pb.FieldValue

	switch {
	case shape.Kind.IsNumeric():
		lim := meta.Limits
		if lim == nil {
			return nil
		}
		out = append(out,
			pb.FieldValue{Name: fieldHOPR, Val: formatLimit(lim.DisplayHigh)},
			pb.FieldValue{Name: fieldLOPR, Val: formatLimit(lim.DisplayLow)},
			pb.FieldValue{Name: fieldEGU, Val: lim.Units},
		)
		if !shape.Array {
			out = append(out,
				pb.FieldValue{Name: fieldHIHI, Val: formatLimit(lim.HighAlarm)},
				pb.FieldValue{Name: fieldHIGH, Val: formatLimit(lim.HighWarn)},
				pb.FieldValue{Name: fieldLOW, Val: formatLimit(lim.LowWarn)},
				pb.FieldValue{Name: fieldLOLO, Val: formatLimit(lim.LowAlarm)},
			)
		}
		if shape.Kind.IsFloating() {
			out = append(out, pb.FieldValue{Name: fieldPREC, Val: strconv.Itoa(int(lim.Precision))})
		}

	case shape.Kind == channel.KindEnum:
		if len(meta.States) > 0 {
			out = append(out, pb.FieldValue{Name: fieldStates, Val: strings.Join(meta.States, ";")})
		}
	}
	return out
}

func formatLimit(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// dayTracker remembers the UTC day static fields were last attached.
type dayTracker struct {
	day int64
	set bool
}

// due reports whether a record at sec falls on a new day.
func (d *dayTracker) due(sec int64) bool {
	return !d.set || dayOf(sec) != d.day
}

func (d *dayTracker) mark(sec int64) {
	d.day, d.set = dayOf(sec), true
}
