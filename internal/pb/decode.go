package pb

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nerrad567/pbexport/internal/channel"
)

// ParsePayloadInfo decodes a file header.
//
// The type, pvname and year fields are required; a header missing any of
// them yields ErrCorruptRecord.
func ParsePayloadInfo(b []byte) (PayloadInfo, error) {
	var (
		info                      PayloadInfo
		haveType, haveName, haveY bool
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return info, corrupt("header tag", n)
		}
		b = b[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return info, corrupt("header type", m)
			}
			info.Type = PayloadType(int32(v))
			haveType = true
			n = m
		case num == 2 && typ == protowire.BytesType:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return info, corrupt("header pvname", m)
			}
			info.PVName = s
			haveName = true
			n = m
		case num == 3 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return info, corrupt("header year", m)
			}
			info.Year = int32(v)
			haveY = true
			n = m
		case num == 4 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return info, corrupt("header elementCount", m)
			}
			info.ElementCount = int32(v)
			n = m
		case num == 15 && typ == protowire.BytesType:
			fv, m, err := consumeFieldValue(b)
			if err != nil {
				return info, err
			}
			info.Headers = append(info.Headers, fv)
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return info, corrupt("header field", n)
			}
		}
		b = b[n:]
	}

	if !haveType || !haveName || !haveY {
		return info, fmt.Errorf("%w: header is missing required fields", ErrCorruptRecord)
	}
	return info, nil
}

// DecodeTimestamp decodes only the secondsintoyear and nano fields of a
// sample message. Other fields are skipped without being interpreted.
func DecodeTimestamp(b []byte) (secondsIntoYear, nano uint32, err error) {
	var haveSecs, haveNano bool

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, 0, corrupt("sample tag", n)
		}
		b = b[n:]

		switch {
		case num == fieldSecondsIntoYear && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return 0, 0, corrupt("secondsintoyear", m)
			}
			secondsIntoYear, haveSecs, n = uint32(v), true, m
		case num == fieldNano && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return 0, 0, corrupt("nano", m)
			}
			nano, haveNano, n = uint32(v), true, m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return 0, 0, corrupt("sample field", n)
			}
		}
		b = b[n:]
	}

	if !haveSecs || !haveNano {
		return 0, 0, fmt.Errorf("%w: sample is missing its timestamp", ErrCorruptRecord)
	}
	return secondsIntoYear, nano, nil
}

// DecodeRecord fully decodes a sample message of payload type t.
func DecodeRecord(t PayloadType, b []byte) (Record, error) {
	var rec Record

	shape, err := t.Shape()
	if err != nil {
		return rec, err
	}

	vs := valueState{shape: shape}
	var haveSecs, haveNano bool

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return rec, corrupt("sample tag", n)
		}
		b = b[n:]

		switch {
		case num == fieldSecondsIntoYear && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return rec, corrupt("secondsintoyear", m)
			}
			rec.SecondsIntoYear, haveSecs, n = uint32(v), true, m
		case num == fieldNano && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return rec, corrupt("nano", m)
			}
			rec.Nano, haveNano, n = uint32(v), true, m
		case num == fieldVal:
			m, err := vs.consume(typ, b)
			if err != nil {
				return rec, err
			}
			n = m
		case num == fieldSeverity && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return rec, corrupt("severity", m)
			}
			rec.Severity, n = int32(v), m
		case num == fieldStatus && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return rec, corrupt("status", m)
			}
			rec.Status, n = int32(v), m
		case num == fieldRepeatCount && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return rec, corrupt("repeatcount", m)
			}
			rec.RepeatCount, n = uint32(v), m
		case num == fieldFieldValues && typ == protowire.BytesType:
			fv, m, err := consumeFieldValue(b)
			if err != nil {
				return rec, err
			}
			rec.Fields = append(rec.Fields, fv)
			n = m
		default:
			// fieldactualchange and unknown fields.
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return rec, corrupt("sample field", n)
			}
		}
		b = b[n:]
	}

	if !haveSecs || !haveNano {
		return rec, fmt.Errorf("%w: sample is missing its timestamp", ErrCorruptRecord)
	}
	rec.Value, err = vs.value()
	if err != nil {
		return rec, err
	}
	return rec, nil
}

func consumeFieldValue(b []byte) (FieldValue, int, error) {
	var fv FieldValue

	msg, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return fv, 0, corrupt("field value", n)
	}

	for len(msg) > 0 {
		num, typ, m := protowire.ConsumeTag(msg)
		if m < 0 {
			return fv, 0, corrupt("field value tag", m)
		}
		msg = msg[m:]

		switch {
		case num == fieldFVName && typ == protowire.BytesType:
			s, k := protowire.ConsumeString(msg)
			if k < 0 {
				return fv, 0, corrupt("field value name", k)
			}
			fv.Name, m = s, k
		case num == fieldFVVal && typ == protowire.BytesType:
			s, k := protowire.ConsumeString(msg)
			if k < 0 {
				return fv, 0, corrupt("field value val", k)
			}
			fv.Val, m = s, k
		default:
			m = protowire.ConsumeFieldValue(num, typ, msg)
			if m < 0 {
				return fv, 0, corrupt("field value field", m)
			}
		}
		msg = msg[m:]
	}
	return fv, n, nil
}

func corrupt(what string, n int) error {
	return fmt.Errorf("%w: %s: %v", ErrCorruptRecord, what, protowire.ParseError(n))
}

// valueState accumulates field 3 occurrences for one shape. Scalars keep
// the last occurrence; arrays concatenate packed and unpacked elements.
type valueState struct {
	shape channel.Shape
	seen  bool

	strs  []string
	bytes []byte
	ints  []int32
	f32   []float32
	f64   []float64
}

func (s *valueState) consume(typ protowire.Type, b []byte) (int, error) {
	s.seen = true

	switch s.shape.Kind {
	case channel.KindString:
		if typ != protowire.BytesType {
			return 0, wireType("string", typ)
		}
		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return 0, corrupt("string value", n)
		}
		s.strs = append(s.strs, v)
		return n, nil

	case channel.KindByte:
		if typ != protowire.BytesType {
			return 0, wireType("bytes", typ)
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, corrupt("bytes value", n)
		}
		s.bytes = append(s.bytes[:0], v...)
		return n, nil

	case channel.KindShort, channel.KindEnum:
		return s.consumeZigZag(typ, b)

	case channel.KindInt:
		return consumeFixed32(typ, b, func(v uint32) { s.ints = append(s.ints, int32(v)) })

	case channel.KindFloat:
		return consumeFixed32(typ, b, func(v uint32) { s.f32 = append(s.f32, math.Float32frombits(v)) })

	case channel.KindDouble:
		return consumeFixed64(typ, b, func(v uint64) { s.f64 = append(s.f64, math.Float64frombits(v)) })
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, s.shape)
}

func (s *valueState) consumeZigZag(typ protowire.Type, b []byte) (int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return 0, corrupt("varint value", n)
		}
		s.ints = append(s.ints, int32(protowire.DecodeZigZag(v&math.MaxUint32)))
		return n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, corrupt("packed value", n)
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return 0, corrupt("packed varint", m)
			}
			s.ints = append(s.ints, int32(protowire.DecodeZigZag(v&math.MaxUint32)))
			packed = packed[m:]
		}
		return n, nil
	default:
		return 0, wireType("sint32", typ)
	}
}

func consumeFixed32(typ protowire.Type, b []byte, add func(uint32)) (int, error) {
	switch typ {
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return 0, corrupt("fixed32 value", n)
		}
		add(v)
		return n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, corrupt("packed value", n)
		}
		if len(packed)%4 != 0 {
			return 0, fmt.Errorf("%w: packed fixed32 length %d", ErrCorruptRecord, len(packed))
		}
		for len(packed) > 0 {
			v, _ := protowire.ConsumeFixed32(packed)
			add(v)
			packed = packed[4:]
		}
		return n, nil
	default:
		return 0, wireType("fixed32", typ)
	}
}

func consumeFixed64(typ protowire.Type, b []byte, add func(uint64)) (int, error) {
	switch typ {
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return 0, corrupt("fixed64 value", n)
		}
		add(v)
		return n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, corrupt("packed value", n)
		}
		if len(packed)%8 != 0 {
			return 0, fmt.Errorf("%w: packed fixed64 length %d", ErrCorruptRecord, len(packed))
		}
		for len(packed) > 0 {
			v, _ := protowire.ConsumeFixed64(packed)
			add(v)
			packed = packed[8:]
		}
		return n, nil
	default:
		return 0, wireType("fixed64", typ)
	}
}

func wireType(want string, got protowire.Type) error {
	return fmt.Errorf("%w: value has wire type %d, want %s", ErrCorruptRecord, got, want)
}

// value builds the decoded channel.Value.
func (s *valueState) value() (channel.Value, error) {
	if !s.shape.Array && !s.seen {
		return nil, fmt.Errorf("%w: value is missing", ErrCorruptRecord)
	}

	if s.shape.Array {
		return s.vector()
	}

	missing := fmt.Errorf("%w: value is missing", ErrCorruptRecord)

	switch s.shape.Kind {
	case channel.KindString:
		v, ok := last(s.strs)
		if !ok {
			return nil, missing
		}
		return channel.ScalarString(v), nil
	case channel.KindByte:
		if len(s.bytes) != 1 {
			return nil, fmt.Errorf("%w: scalar byte has length %d", ErrCorruptRecord, len(s.bytes))
		}
		return channel.ScalarByte(s.bytes[0]), nil
	case channel.KindShort:
		v, ok := last(s.ints)
		if !ok {
			return nil, missing
		}
		if v < math.MinInt16 || v > math.MaxInt16 {
			return nil, fmt.Errorf("%w: short value %d out of range", ErrCorruptRecord, v)
		}
		return channel.ScalarShort(v), nil
	case channel.KindEnum:
		v, ok := last(s.ints)
		if !ok {
			return nil, missing
		}
		if v < 0 || v > math.MaxUint16 {
			return nil, fmt.Errorf("%w: enum value %d out of range", ErrCorruptRecord, v)
		}
		return channel.ScalarEnum(v), nil
	case channel.KindInt:
		v, ok := last(s.ints)
		if !ok {
			return nil, missing
		}
		return channel.ScalarInt(v), nil
	case channel.KindFloat:
		v, ok := last(s.f32)
		if !ok {
			return nil, missing
		}
		return channel.ScalarFloat(v), nil
	case channel.KindDouble:
		v, ok := last(s.f64)
		if !ok {
			return nil, missing
		}
		return channel.ScalarDouble(v), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, s.shape)
}

func (s *valueState) vector() (channel.Value, error) {
	switch s.shape.Kind {
	case channel.KindString:
		return channel.VectorString(nonNil(s.strs)), nil
	case channel.KindByte:
		return channel.VectorByte(nonNil(s.bytes)), nil
	case channel.KindShort:
		out := make(channel.VectorShort, len(s.ints))
		for i, v := range s.ints {
			if v < math.MinInt16 || v > math.MaxInt16 {
				return nil, fmt.Errorf("%w: short element %d out of range", ErrCorruptRecord, v)
			}
			out[i] = int16(v)
		}
		return out, nil
	case channel.KindEnum:
		out := make(channel.VectorEnum, len(s.ints))
		for i, v := range s.ints {
			if v < 0 || v > math.MaxUint16 {
				return nil, fmt.Errorf("%w: enum element %d out of range", ErrCorruptRecord, v)
			}
			out[i] = uint16(v)
		}
		return out, nil
	case channel.KindInt:
		return channel.VectorInt(nonNil(s.ints)), nil
	case channel.KindFloat:
		return channel.VectorFloat(nonNil(s.f32)), nil
	case channel.KindDouble:
		return channel.VectorDouble(nonNil(s.f64)), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, s.shape)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func last[T any](s []T) (T, bool) {
	if len(s) == 0 {
		var zero T
		return zero, false
	}
	return s[len(s)-1], true
}
