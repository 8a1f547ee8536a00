package pb

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nerrad567/pbexport/internal/channel"
)

// Field numbers shared by all sample messages.
const (
	fieldSecondsIntoYear   protowire.Number = 1
	fieldNano              protowire.Number = 2
	fieldVal               protowire.Number = 3
	fieldSeverity          protowire.Number = 4
	fieldStatus            protowire.Number = 5
	fieldRepeatCount       protowire.Number = 6
	fieldFieldValues       protowire.Number = 7
	fieldFieldActualChange protowire.Number = 8
)

// Field numbers of FieldValue.
const (
	fieldFVName protowire.Number = 1
	fieldFVVal  protowire.Number = 2
)

// valueAppender appends field 3 for one specific value shape.
type valueAppender func(dst []byte, v channel.Value) ([]byte, bool)

// Encoder serializes sample records of a single payload type.
//
// The value encoder is selected once, when the Encoder is created, and
// reused for every record of the file.
type Encoder struct {
	typ         PayloadType
	shape       channel.Shape
	appendValue valueAppender
}

// NewEncoder returns the Encoder for shape.
//
// Returns:
//   - *Encoder: encoder bound to the shape's payload type
//   - error: wraps ErrUnsupportedType if the shape has no payload type
func NewEncoder(shape channel.Shape) (*Encoder, error) {
	typ, err := TypeOf(shape)
	if err != nil {
		return nil, err
	}

	var fn valueAppender
	switch typ {
	case TypeScalarString:
		fn = appendScalarString
	case TypeScalarByte:
		fn = appendScalarByte
	case TypeScalarShort:
		fn = appendScalarShort
	case TypeScalarEnum:
		fn = appendScalarEnum
	case TypeScalarInt:
		fn = appendScalarInt
	case TypeScalarFloat:
		fn = appendScalarFloat
	case TypeScalarDouble:
		fn = appendScalarDouble
	case TypeWaveformString:
		fn = appendVectorString
	case TypeWaveformByte:
		fn = appendVectorByte
	case TypeWaveformShort:
		fn = appendVectorShort
	case TypeWaveformEnum:
		fn = appendVectorEnum
	case TypeWaveformInt:
		fn = appendVectorInt
	case TypeWaveformFloat:
		fn = appendVectorFloat
	case TypeWaveformDouble:
		fn = appendVectorDouble
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, shape)
	}

	return &Encoder{typ: typ, shape: shape, appendValue: fn}, nil
}

// Type returns the payload type written in the file header.
func (e *Encoder) Type() PayloadType {
	return e.typ
}

// Shape returns the channel shape the encoder accepts.
func (e *Encoder) Shape() channel.Shape {
	return e.shape
}

// Append serializes r and appends it to dst.
//
// Severity and status are omitted when zero. A value whose shape differs
// from the encoder's yields ErrTypeMismatch and dst is returned unchanged.
func (e *Encoder) Append(dst []byte, r Record) ([]byte, error) {
	if r.Value == nil {
		return dst, fmt.Errorf("%w: record has no value", ErrCorruptRecord)
	}

	out := protowire.AppendTag(dst, fieldSecondsIntoYear, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(r.SecondsIntoYear))
	out = protowire.AppendTag(out, fieldNano, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(r.Nano))

	out, ok := e.appendValue(out, r.Value)
	if !ok {
		return dst, fmt.Errorf("%w: %s value in %s file", ErrTypeMismatch, r.Value.Shape(), e.typ)
	}

	if r.Severity != 0 {
		out = appendInt32(out, fieldSeverity, r.Severity)
	}
	if r.Status != 0 {
		out = appendInt32(out, fieldStatus, r.Status)
	}
	for _, fv := range r.Fields {
		out = appendFieldValue(out, fieldFieldValues, fv)
	}
	return out, nil
}

// AppendPayloadInfo serializes a file header and appends it to dst.
func AppendPayloadInfo(dst []byte, info PayloadInfo) []byte {
	dst = protowire.AppendTag(dst, 1, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(int64(info.Type)))
	dst = protowire.AppendTag(dst, 2, protowire.BytesType)
	dst = protowire.AppendString(dst, info.PVName)
	dst = appendInt32(dst, 3, info.Year)
	dst = appendInt32(dst, 4, info.ElementCount)
	for _, fv := range info.Headers {
		dst = appendFieldValue(dst, 15, fv)
	}
	return dst
}

// appendInt32 writes a proto int32 (sign-extended varint).
func appendInt32(dst []byte, num protowire.Number, v int32) []byte {
	dst = protowire.AppendTag(dst, num, protowire.VarintType)
	return protowire.AppendVarint(dst, uint64(int64(v)))
}

func appendFieldValue(dst []byte, num protowire.Number, fv FieldValue) []byte {
	size := protowire.SizeTag(fieldFVName) + protowire.SizeBytes(len(fv.Name)) +
		protowire.SizeTag(fieldFVVal) + protowire.SizeBytes(len(fv.Val))

	dst = protowire.AppendTag(dst, num, protowire.BytesType)
	dst = protowire.AppendVarint(dst, uint64(size))
	dst = protowire.AppendTag(dst, fieldFVName, protowire.BytesType)
	dst = protowire.AppendString(dst, fv.Name)
	dst = protowire.AppendTag(dst, fieldFVVal, protowire.BytesType)
	return protowire.AppendString(dst, fv.Val)
}

func zigzag32(v int32) uint64 {
	return protowire.EncodeZigZag(int64(v))
}

// Scalars.

func appendScalarString(dst []byte, v channel.Value) ([]byte, bool) {
	s, ok := v.(channel.ScalarString)
	if !ok {
		return dst, false
	}
	dst = protowire.AppendTag(dst, fieldVal, protowire.BytesType)
	return protowire.AppendString(dst, string(s)), true
}

// appendScalarByte writes a scalar byte as a one-character bytes field.
func appendScalarByte(dst []byte, v channel.Value) ([]byte, bool) {
	b, ok := v.(channel.ScalarByte)
	if !ok {
		return dst, false
	}
	dst = protowire.AppendTag(dst, fieldVal, protowire.BytesType)
	return protowire.AppendBytes(dst, []byte{byte(b)}), true
}

func appendScalarShort(dst []byte, v channel.Value) ([]byte, bool) {
	s, ok := v.(channel.ScalarShort)
	if !ok {
		return dst, false
	}
	dst = protowire.AppendTag(dst, fieldVal, protowire.VarintType)
	return protowire.AppendVarint(dst, zigzag32(int32(s))), true
}

func appendScalarEnum(dst []byte, v channel.Value) ([]byte, bool) {
	e, ok := v.(channel.ScalarEnum)
	if !ok {
		return dst, false
	}
	dst = protowire.AppendTag(dst, fieldVal, protowire.VarintType)
	return protowire.AppendVarint(dst, zigzag32(int32(e))), true
}

func appendScalarInt(dst []byte, v channel.Value) ([]byte, bool) {
	i, ok := v.(channel.ScalarInt)
	if !ok {
		return dst, false
	}
	dst = protowire.AppendTag(dst, fieldVal, protowire.Fixed32Type)
	return protowire.AppendFixed32(dst, uint32(i)), true
}

func appendScalarFloat(dst []byte, v channel.Value) ([]byte, bool) {
	f, ok := v.(channel.ScalarFloat)
	if !ok {
		return dst, false
	}
	dst = protowire.AppendTag(dst, fieldVal, protowire.Fixed32Type)
	return protowire.AppendFixed32(dst, math.Float32bits(float32(f))), true
}

func appendScalarDouble(dst []byte, v channel.Value) ([]byte, bool) {
	d, ok := v.(channel.ScalarDouble)
	if !ok {
		return dst, false
	}
	dst = protowire.AppendTag(dst, fieldVal, protowire.Fixed64Type)
	return protowire.AppendFixed64(dst, math.Float64bits(float64(d))), true
}

// Arrays. Numeric arrays are packed; an empty array writes no field.

func appendVectorString(dst []byte, v channel.Value) ([]byte, bool) {
	ss, ok := v.(channel.VectorString)
	if !ok {
		return dst, false
	}
	for _, s := range ss {
		dst = protowire.AppendTag(dst, fieldVal, protowire.BytesType)
		dst = protowire.AppendString(dst, s)
	}
	return dst, true
}

// appendVectorByte writes a byte waveform as a single bytes field rather
// than a numeric array.
func appendVectorByte(dst []byte, v channel.Value) ([]byte, bool) {
	b, ok := v.(channel.VectorByte)
	if !ok {
		return dst, false
	}
	dst = protowire.AppendTag(dst, fieldVal, protowire.BytesType)
	return protowire.AppendBytes(dst, b), true
}

func appendVectorShort(dst []byte, v channel.Value) ([]byte, bool) {
	ss, ok := v.(channel.VectorShort)
	if !ok {
		return dst, false
	}
	vals := make([]int32, len(ss))
	for i, s := range ss {
		vals[i] = int32(s)
	}
	return appendPackedZigZag(dst, vals), true
}

func appendVectorEnum(dst []byte, v channel.Value) ([]byte, bool) {
	es, ok := v.(channel.VectorEnum)
	if !ok {
		return dst, false
	}
	vals := make([]int32, len(es))
	for i, e := range es {
		vals[i] = int32(e)
	}
	return appendPackedZigZag(dst, vals), true
}

func appendVectorInt(dst []byte, v channel.Value) ([]byte, bool) {
	is, ok := v.(channel.VectorInt)
	if !ok {
		return dst, false
	}
	if len(is) == 0 {
		return dst, true
	}
	dst = protowire.AppendTag(dst, fieldVal, protowire.BytesType)
	dst = protowire.AppendVarint(dst, uint64(4*len(is)))
	for _, i := range is {
		dst = protowire.AppendFixed32(dst, uint32(i))
	}
	return dst, true
}

func appendVectorFloat(dst []byte, v channel.Value) ([]byte, bool) {
	fs, ok := v.(channel.VectorFloat)
	if !ok {
		return dst, false
	}
	if len(fs) == 0 {
		return dst, true
	}
	dst = protowire.AppendTag(dst, fieldVal, protowire.BytesType)
	dst = protowire.AppendVarint(dst, uint64(4*len(fs)))
	for _, f := range fs {
		dst = protowire.AppendFixed32(dst, math.Float32bits(f))
	}
	return dst, true
}

func appendVectorDouble(dst []byte, v channel.Value) ([]byte, bool) {
	ds, ok := v.(channel.VectorDouble)
	if !ok {
		return dst, false
	}
	if len(ds) == 0 {
		return dst, true
	}
	dst = protowire.AppendTag(dst, fieldVal, protowire.BytesType)
	dst = protowire.AppendVarint(dst, uint64(8*len(ds)))
	for _, d := range ds {
		dst = protowire.AppendFixed64(dst, math.Float64bits(d))
	}
	return dst, true
}

func appendPackedZigZag(dst []byte, vals []int32) []byte {
	if len(vals) == 0 {
		return dst
	}
	size := 0
	for _, v := range vals {
		size += protowire.SizeVarint(zigzag32(v))
	}
	dst = protowire.AppendTag(dst, fieldVal, protowire.BytesType)
	dst = protowire.AppendVarint(dst, uint64(size))
	for _, v := range vals {
		dst = protowire.AppendVarint(dst, zigzag32(v))
	}
	return dst
}
