package channel

// Value is the decoded value of a sample. Exactly one of the fourteen types
// in this file implements it.
type Value interface {
	// Shape returns the kind and array-ness of the value.
	Shape() Shape

	// Len returns the element count: 1 for scalars, the length for arrays.
	Len() int

	isValue()
}

// Scalar values.
type (
	ScalarString string
	ScalarByte   byte
	ScalarShort  int16
	ScalarEnum   uint16
	ScalarInt    int32
	ScalarFloat  float32
	ScalarDouble float64
)

// Array (waveform) values.
type (
	VectorString []string
	VectorByte   []byte
	VectorShort  []int16
	VectorEnum   []uint16
	VectorInt    []int32
	VectorFloat  []float32
	VectorDouble []float64
)

func (ScalarString) Shape() Shape { return Shape{Kind: KindString} }
func (ScalarByte) Shape() Shape   { return Shape{Kind: KindByte} }
func (ScalarShort) Shape() Shape  { return Shape{Kind: KindShort} }
func (ScalarEnum) Shape() Shape   { return Shape{Kind: KindEnum} }
func (ScalarInt) Shape() Shape    { return Shape{Kind: KindInt} }
func (ScalarFloat) Shape() Shape  { return Shape{Kind: KindFloat} }
func (ScalarDouble) Shape() Shape { return Shape{Kind: KindDouble} }

func (VectorString) Shape() Shape { return Shape{Kind: KindString, Array: true} }
func (VectorByte) Shape() Shape   { return Shape{Kind: KindByte, Array: true} }
func (VectorShort) Shape() Shape  { return Shape{Kind: KindShort, Array: true} }
func (VectorEnum) Shape() Shape   { return Shape{Kind: KindEnum, Array: true} }
func (VectorInt) Shape() Shape    { return Shape{Kind: KindInt, Array: true} }
func (VectorFloat) Shape() Shape  { return Shape{Kind: KindFloat, Array: true} }
func (VectorDouble) Shape() Shape { return Shape{Kind: KindDouble, Array: true} }

func (ScalarString) Len() int { return 1 }
func (ScalarByte) Len() int   { return 1 }
func (ScalarShort) Len() int  { return 1 }
func (ScalarEnum) Len() int   { return 1 }
func (ScalarInt) Len() int    { return 1 }
func (ScalarFloat) Len() int  { return 1 }
func (ScalarDouble) Len() int { return 1 }

func (v VectorString) Len() int { return len(v) }
func (v VectorByte) Len() int   { return len(v) }
func (v VectorShort) Len() int  { return len(v) }
func (v VectorEnum) Len() int   { return len(v) }
func (v VectorInt) Len() int    { return len(v) }
func (v VectorFloat) Len() int  { return len(v) }
func (v VectorDouble) Len() int { return len(v) }

func (ScalarString) isValue() {}
func (ScalarByte) isValue()   {}
func (ScalarShort) isValue()  {}
func (ScalarEnum) isValue()   {}
func (ScalarInt) isValue()    {}
func (ScalarFloat) isValue()  {}
func (ScalarDouble) isValue() {}
func (VectorString) isValue() {}
func (VectorByte) isValue()   {}
func (VectorShort) isValue()  {}
func (VectorEnum) isValue()   {}
func (VectorInt) isValue()    {}
func (VectorFloat) isValue()  {}
func (VectorDouble) isValue() {}
