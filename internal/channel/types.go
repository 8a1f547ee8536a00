package channel

import (
	"fmt"
	"time"
)

// Kind is the scalar element kind of a channel.
type Kind uint8

// Scalar element kinds, in historian (DBR) order.
const (
	KindString Kind = iota
	KindByte
	KindShort
	KindEnum
	KindInt
	KindFloat
	KindDouble
)

// kindNames maps kinds to the names used in logs and the historian schema.
var kindNames = [...]string{
	KindString: "string",
	KindByte:   "byte",
	KindShort:  "short",
	KindEnum:   "enum",
	KindInt:    "int",
	KindFloat:  "float",
	KindDouble: "double",
}

// String returns the lower-case kind name.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the seven supported kinds.
func (k Kind) Valid() bool {
	return k <= KindDouble
}

// IsNumeric reports whether k carries display and alarm limits.
// Enum and byte channels are not numeric in this sense.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindShort, KindInt, KindFloat, KindDouble:
		return true
	default:
		return false
	}
}

// IsFloating reports whether k carries a display precision.
func (k Kind) IsFloating() bool {
	return k == KindFloat || k == KindDouble
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown channel kind %q", name)
}

// Shape is the (kind, array-ness) pair that fixes the wire type of a file.
type Shape struct {
	Kind  Kind
	Array bool
}

// String returns e.g. "scalar double" or "waveform short".
func (s Shape) String() string {
	if s.Array {
		return "waveform " + s.Kind.String()
	}
	return "scalar " + s.Kind.String()
}

// Timestamp is a POSIX timestamp with nanosecond resolution.
type Timestamp struct {
	Sec  int64
	Nsec uint32
}

// Compare returns -1, 0 or +1 as t is before, equal to, or after u.
func (t Timestamp) Compare(u Timestamp) int {
	switch {
	case t.Sec < u.Sec:
		return -1
	case t.Sec > u.Sec:
		return 1
	case t.Nsec < u.Nsec:
		return -1
	case t.Nsec > u.Nsec:
		return 1
	default:
		return 0
	}
}

// Before reports whether t is strictly before u.
func (t Timestamp) Before(u Timestamp) bool {
	return t.Compare(u) < 0
}

// Time converts t to a UTC time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Sec, int64(t.Nsec)).UTC()
}

// String formats t as RFC 3339 with nanoseconds.
func (t Timestamp) String() string {
	return t.Time().Format(time.RFC3339Nano)
}

// Sample is one decoded historian sample.
type Sample struct {
	Time     Timestamp
	Severity int32
	Status   int32
	Value    Value
}

// Shape returns the shape of the sample's value.
func (s Sample) Shape() Shape {
	return s.Value.Shape()
}

// Meta holds the static descriptive information of a channel.
//
// Numeric channels carry Limits; enumerated channels carry States.
// Either may be absent.
type Meta struct {
	Limits *Limits
	States []string
}

// Limits are the display and alarm limits of a numeric channel.
type Limits struct {
	DisplayHigh float64
	DisplayLow  float64
	Units       string
	HighAlarm   float64
	HighWarn    float64
	LowWarn     float64
	LowAlarm    float64
	Precision   int32
}
