package ir

import (
	"fmt"
	"unsafe"
)

// Ownership states who frees a buffer's memory.
type Ownership int

const (
	// Borrowed memory belongs to the caller; the route only references it
	// for the duration of a call.
	Borrowed Ownership = iota
	// Owned memory was allocated on behalf of the descriptor's holder.
	Owned
)

func (o Ownership) String() string {
	if o == Owned {
		return "owned"
	}
	return "borrowed"
}

// Element is the set of Go types that can back a Buffer.
type Element interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64 | ~complex64 | ~complex128
}

// Buffer is a raw element buffer handed to Route.Run. Element i lives at
// byte offset i*Stride*Kind.Size() of Data.
type Buffer struct {
	Data      []byte
	Kind      Kind
	Count     int // logical elements
	Stride    int // element stride; 0 or 1 means contiguous
	Ownership Ownership
}

// KindOf returns the Kind that corresponds to T.
func KindOf[T Element]() Kind {
	var zero T
	switch any(zero).(type) {
	case int8:
		return KindI1
	case int16:
		return KindI2
	case int32:
		return KindI4
	case int64:
		return KindI8
	case float32:
		return KindR4
	case float64:
		return KindR8
	case complex64:
		return KindC8
	case complex128:
		return KindC16
	}
	// Named types fall back to their size and shape.
	switch unsafe.Sizeof(zero) {
	case 1:
		return KindI1
	case 2:
		return KindI2
	default:
		return KindInvalid
	}
}

// BufferOf views a typed slice as a Buffer without copying.
func BufferOf[T Element](s []T, own Ownership) Buffer {
	b := Buffer{Kind: KindOf[T](), Count: len(s), Stride: 1, Ownership: own}
	if len(s) > 0 {
		b.Data = unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
	}
	return b
}

// NewBuffer wraps raw bytes holding contiguous elements of kind k.
func NewBuffer(data []byte, k Kind) Buffer {
	n := 0
	if k.Size() > 0 {
		n = len(data) / k.Size()
	}
	return Buffer{Data: data, Kind: k, Count: n, Stride: 1, Ownership: Borrowed}
}

// View reinterprets the buffer's bytes as a []T covering every physical
// element (stride included). The buffer kind must match T's size.
func View[T Element](b Buffer) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if len(b.Data) < size {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b.Data[0])), len(b.Data)/size)
}

// ElemStride returns the stride in elements, treating 0 as contiguous.
func (b Buffer) ElemStride() int {
	if b.Stride <= 0 {
		return 1
	}
	return b.Stride
}

// Contiguous reports whether elements are densely packed.
func (b Buffer) Contiguous() bool {
	return b.ElemStride() == 1
}

// Validate checks that Data holds Count elements at the given stride.
func (b Buffer) Validate() error {
	if b.Count == 0 {
		return nil
	}
	if !b.Kind.Valid() {
		return fmt.Errorf("buffer: invalid kind %v", b.Kind)
	}
	need := ((b.Count-1)*b.ElemStride() + 1) * b.Kind.Size()
	if len(b.Data) < need {
		return fmt.Errorf("buffer: %d bytes cannot hold %d %v elements at stride %d", len(b.Data), b.Count, b.Kind, b.ElemStride())
	}
	return nil
}

// ByteOffset returns the byte offset of logical element i.
func (b Buffer) ByteOffset(i int) int {
	return i * b.ElemStride() * b.Kind.Size()
}
