package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nerrad567/pbexport/internal/channel"
)

// DBR type codes used in the kind columns.
const (
	dbrString = 0
	dbrShort  = 1
	dbrFloat  = 2
	dbrEnum   = 3
	dbrChar   = 4
	dbrLong   = 5
	dbrDouble = 6
)

// maxStringSize is the width of one string slot.
const maxStringSize = 40

var dbrKinds = map[int]channel.Kind{
	dbrString: channel.KindString,
	dbrShort:  channel.KindShort,
	dbrFloat:  channel.KindFloat,
	dbrEnum:   channel.KindEnum,
	dbrChar:   channel.KindByte,
	dbrLong:   channel.KindInt,
	dbrDouble: channel.KindDouble,
}

var kindSizes = map[channel.Kind]int{
	channel.KindString: maxStringSize,
	channel.KindByte:   1,
	channel.KindShort:  2,
	channel.KindEnum:   2,
	channel.KindInt:    4,
	channel.KindFloat:  4,
	channel.KindDouble: 8,
}

func kindFromDBR(code int) (channel.Kind, error) {
	k, ok := dbrKinds[code]
	if !ok {
		return 0, fmt.Errorf("%w: unknown DBR type %d", ErrCorruptHeader, code)
	}
	return k, nil
}

// decodeValue converts a raw little-endian element buffer into a Value.
func decodeValue(shape channel.Shape, count int, raw []byte) (channel.Value, error) {
	if count < 0 || (!shape.Array && count != 1) {
		return nil, fmt.Errorf("%w: %s sample with %d elements", ErrCorruptHeader, shape, count)
	}
	size := kindSizes[shape.Kind]
	if len(raw) != size*count {
		return nil, fmt.Errorf("%w: %s sample of %d elements has %d bytes, want %d",
			ErrCorruptHeader, shape, count, len(raw), size*count)
	}

	le := binary.LittleEndian
	if !shape.Array {
		switch shape.Kind {
		case channel.KindString:
			return channel.ScalarString(cString(raw)), nil
		case channel.KindByte:
			return channel.ScalarByte(raw[0]), nil
		case channel.KindShort:
			return channel.ScalarShort(int16(le.Uint16(raw))), nil
		case channel.KindEnum:
			return channel.ScalarEnum(le.Uint16(raw)), nil
		case channel.KindInt:
			return channel.ScalarInt(int32(le.Uint32(raw))), nil
		case channel.KindFloat:
			return channel.ScalarFloat(math.Float32frombits(le.Uint32(raw))), nil
		case channel.KindDouble:
			return channel.ScalarDouble(math.Float64frombits(le.Uint64(raw))), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrCorruptHeader, shape)
	}

	switch shape.Kind {
	case channel.KindString:
		out := make(channel.VectorString, count)
		for i := range out {
			out[i] = cString(raw[i*size : (i+1)*size])
		}
		return out, nil
	case channel.KindByte:
		return channel.VectorByte(bytes.Clone(raw)), nil
	case channel.KindShort:
		out := make(channel.VectorShort, count)
		for i := range out {
			out[i] = int16(le.Uint16(raw[i*size:]))
		}
		return out, nil
	case channel.KindEnum:
		out := make(channel.VectorEnum, count)
		for i := range out {
			out[i] = le.Uint16(raw[i*size:])
		}
		return out, nil
	case channel.KindInt:
		out := make(channel.VectorInt, count)
		for i := range out {
			out[i] = int32(le.Uint32(raw[i*size:]))
		}
		return out, nil
	case channel.KindFloat:
		out := make(channel.VectorFloat, count)
		for i := range out {
			out[i] = math.Float32frombits(le.Uint32(raw[i*size:]))
		}
		return out, nil
	case channel.KindDouble:
		out := make(channel.VectorDouble, count)
		for i := range out {
			out[i] = math.Float64frombits(le.Uint64(raw[i*size:]))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCorruptHeader, shape)
}

// cString returns the bytes of b up to the first NUL.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
