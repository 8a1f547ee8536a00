package pb

import (
	"fmt"

	"github.com/nerrad567/pbexport/internal/channel"
)

// PayloadType is the wire type code stored in a file header.
type PayloadType int32

// Payload type codes. The numbering is part of the file format.
const (
	TypeScalarString   PayloadType = 0
	TypeScalarShort    PayloadType = 1
	TypeScalarFloat    PayloadType = 2
	TypeScalarEnum     PayloadType = 3
	TypeScalarByte     PayloadType = 4
	TypeScalarInt      PayloadType = 5
	TypeScalarDouble   PayloadType = 6
	TypeWaveformString PayloadType = 7
	TypeWaveformShort  PayloadType = 8
	TypeWaveformFloat  PayloadType = 9
	TypeWaveformEnum   PayloadType = 10
	TypeWaveformByte   PayloadType = 11
	TypeWaveformInt    PayloadType = 12
	TypeWaveformDouble PayloadType = 13
)

// typeShapes maps each payload type to its channel shape.
var typeShapes = map[PayloadType]channel.Shape{
	TypeScalarString:   {Kind: channel.KindString},
	TypeScalarShort:    {Kind: channel.KindShort},
	TypeScalarFloat:    {Kind: channel.KindFloat},
	TypeScalarEnum:     {Kind: channel.KindEnum},
	TypeScalarByte:     {Kind: channel.KindByte},
	TypeScalarInt:      {Kind: channel.KindInt},
	TypeScalarDouble:   {Kind: channel.KindDouble},
	TypeWaveformString: {Kind: channel.KindString, Array: true},
	TypeWaveformShort:  {Kind: channel.KindShort, Array: true},
	TypeWaveformFloat:  {Kind: channel.KindFloat, Array: true},
	TypeWaveformEnum:   {Kind: channel.KindEnum, Array: true},
	TypeWaveformByte:   {Kind: channel.KindByte, Array: true},
	TypeWaveformInt:    {Kind: channel.KindInt, Array: true},
	TypeWaveformDouble: {Kind: channel.KindDouble, Array: true},
}

// TypeOf returns the payload type for a channel shape.
func TypeOf(shape channel.Shape) (PayloadType, error) {
	for t, s := range typeShapes {
		if s == shape {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, shape)
}

// Shape returns the channel shape of t.
func (t PayloadType) Shape() (channel.Shape, error) {
	s, ok := typeShapes[t]
	if !ok {
		return channel.Shape{}, fmt.Errorf("%w: code %d", ErrUnsupportedType, int32(t))
	}
	return s, nil
}

// String returns the schema name of t, e.g. "SCALAR_DOUBLE".
func (t PayloadType) String() string {
	s, ok := typeShapes[t]
	if !ok {
		return fmt.Sprintf("PayloadType(%d)", int32(t))
	}
	prefix := "SCALAR_"
	if s.Array {
		prefix = "WAVEFORM_"
	}
	switch s.Kind {
	case channel.KindString:
		return prefix + "STRING"
	case channel.KindByte:
		return prefix + "BYTE"
	case channel.KindShort:
		return prefix + "SHORT"
	case channel.KindEnum:
		return prefix + "ENUM"
	case channel.KindInt:
		return prefix + "INT"
	case channel.KindFloat:
		return prefix + "FLOAT"
	default:
		return prefix + "DOUBLE"
	}
}

// FieldValue is a name/value annotation attached to a header or sample.
type FieldValue struct {
	Name string
	Val  string
}

// PayloadInfo is the first record of every file.
type PayloadInfo struct {
	Type         PayloadType
	PVName       string
	Year         int32
	ElementCount int32
	Headers      []FieldValue
}

// Record is one sample message.
type Record struct {
	SecondsIntoYear uint32
	Nano            uint32
	Severity        int32
	Status          int32
	Value           channel.Value
	Fields          []FieldValue

	// RepeatCount is only populated when decoding; the exporter never
	// writes it.
	RepeatCount uint32
}
