package storage

import (
	"fmt"
	"unsafe"

	"github.com/LynnColeArt/sbench"
)

// Float is the set of element types a buffer can hold.
type Float interface {
	~float32 | ~float64
}

// Buffer is an allocated region described by an Info. It is owned by the
// variant that created it and never resized.
type Buffer[T Float] struct {
	name  string
	info  *Info
	alloc Allocator
	raw   []byte
	data  []T
}

// ElementSize returns sizeof(T) in bytes.
func ElementSize[T Float]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// BufferAlignment returns the byte boundary a buffer's base must satisfy
// so that logical (0,0,0) is aligned to M elements.
func BufferAlignment[T Float](info *Info) int {
	a := info.Alignment().Value() * ElementSize[T]()
	return a / gcd(a, sbench.CacheLineSize) * sbench.CacheLineSize
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// NewBuffer allocates storage for info through alloc.
func NewBuffer[T Float](name string, alloc Allocator, info *Info) (*Buffer[T], error) {
	if info == nil {
		return nil, sbench.NewConfigurationError("NewBuffer", "nil storage info")
	}
	esize := ElementSize[T]()
	raw, err := alloc.Allocate(info.Size()*esize, BufferAlignment[T](info))
	if err != nil {
		return nil, fmt.Errorf("allocating %s: %w", name, err)
	}
	data := unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), info.Size())
	return &Buffer[T]{name: name, info: info, alloc: alloc, raw: raw, data: data}, nil
}

// Name returns the buffer name.
func (b *Buffer[T]) Name() string { return b.name }

// Info returns the storage description.
func (b *Buffer[T]) Info() *Info { return b.info }

// Raw returns every allocated element, halo and padding included.
func (b *Buffer[T]) Raw() []T { return b.data }

// Bytes returns the underlying memory.
func (b *Buffer[T]) Bytes() []byte { return b.raw }

// Origin is the index in Raw of logical (0,0,0).
func (b *Buffer[T]) Origin() int { return b.info.zeroOffset }

// Index returns the index in Raw of logical (i, j, k).
func (b *Buffer[T]) Index(i, j, k int) int { return b.info.Index(i, j, k) }

// At returns the element at logical (i, j, k).
func (b *Buffer[T]) At(i, j, k int) T { return b.data[b.info.Index(i, j, k)] }

// Set stores v at logical (i, j, k).
func (b *Buffer[T]) Set(i, j, k int, v T) { b.data[b.info.Index(i, j, k)] = v }

// Fill sets every allocated element to v.
func (b *Buffer[T]) Fill(v T) {
	for i := range b.data {
		b.data[i] = v
	}
}

// CopyFrom copies all elements of src, which must share the same layout.
func (b *Buffer[T]) CopyFrom(src *Buffer[T]) error {
	if src.info.Size() != b.info.Size() || src.info.Strides() != b.info.Strides() {
		return sbench.NewConfigurationError("CopyFrom", fmt.Sprintf("layout mismatch between %s and %s", src.name, b.name))
	}
	copy(b.data, src.data)
	return nil
}

// Release returns the memory to the allocator. The buffer must not be used
// afterwards.
func (b *Buffer[T]) Release() error {
	if b.raw == nil {
		return nil
	}
	err := b.alloc.Release(b.raw)
	b.raw, b.data = nil, nil
	return err
}
