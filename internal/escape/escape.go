package escape

import (
	"errors"
	"fmt"
)

// Framing bytes.
const (
	// Esc introduces an escape sequence.
	Esc byte = 0x1b

	// Terminator ends every record.
	Terminator byte = '\n'

	codeEsc     byte = 0x01
	codeNewline byte = 0x02
	codeReturn  byte = 0x03
)

// ErrCorrupt is returned when an escape sequence cannot be decoded.
var ErrCorrupt = errors.New("escape: corrupt record")

// Append escapes src and appends the result to dst. No terminator is added.
func Append(dst, src []byte) []byte {
	for _, c := range src {
		switch c {
		case Esc:
			dst = append(dst, Esc, codeEsc)
		case '\n':
			dst = append(dst, Esc, codeNewline)
		case '\r':
			dst = append(dst, Esc, codeReturn)
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

// Line returns the escaped form of src followed by the terminator.
func Line(src []byte) []byte {
	out := make([]byte, 0, EscapedLen(src)+1)
	out = Append(out, src)
	return append(out, Terminator)
}

// EscapedLen returns the length of the escaped form of src.
func EscapedLen(src []byte) int {
	n := len(src)
	for _, c := range src {
		if c == Esc || c == '\n' || c == '\r' {
			n++
		}
	}
	return n
}

// Unescape reverses Append, appending the decoded bytes of src to dst.
// src must not include the terminator.
//
// An escape byte followed by an unknown code, or at the end of src, yields
// ErrCorrupt.
func Unescape(dst, src []byte) ([]byte, error) {
	for i := 0; i < len(src); i++ {
		c := src[i]
		if c != Esc {
			dst = append(dst, c)
			continue
		}
		i++
		if i == len(src) {
			return dst, fmt.Errorf("%w: dangling escape at offset %d", ErrCorrupt, i-1)
		}
		switch src[i] {
		case codeEsc:
			dst = append(dst, Esc)
		case codeNewline:
			dst = append(dst, '\n')
		case codeReturn:
			dst = append(dst, '\r')
		default:
			return dst, fmt.Errorf("%w: unknown escape code 0x%02x at offset %d", ErrCorrupt, src[i], i-1)
		}
	}
	return dst, nil
}
