// Package serial maps record types onto the three operations the streaming
// layer needs: write, read, and byte size. The strategy for a type is chosen
// once, when its Serializer is constructed; after that the hot path costs a
// single interface call.
//
// Strategy precedence mirrors the storage format documentation:
//
//  1. POD — trivially copyable types are blitted in host byte order.
//  2. Methods — the record implements StreamMarshaler/StreamUnmarshaler.
//  3. Funcs — caller-supplied free functions.
//  4. Library specializations — String and Slice.
//
// Detect walks the same precedence for callers that want probing instead of
// an explicit constructor.
package serial

import (
	"io"

	"github.com/sortio/extmerge/errs"
)

// Serializer encodes and decodes single records of type E.
//
// Write and Read report record-level failures, including partial transfers.
// Size returns the encoded size of one record in bytes; for types that do
// not declare their size this is computed by encoding into a counting sink,
// which is O(n) in the record size. Record types on hot paths should
// implement StreamSizer (or pass a size func to Funcs) to make it O(1).
type Serializer[E any] interface {
	// Write encodes *v to w.
	Write(w io.Writer, v *E) error

	// Read decodes one record from r into *v. A clean end of input before
	// the first byte returns io.EOF; a partial record is an error.
	Read(r io.Reader, v *E) error

	// Size returns the encoded size of *v in bytes.
	Size(v *E) uint64

	// FixedSize returns the per-record encoded size and true when every
	// record of this type encodes to the same number of bytes.
	FixedSize() (uint64, bool)
}

// BulkSerializer is implemented by serializers that can transfer a whole
// slice of records in one host read or write. The file stream uses it to
// fill and drain its record buffer without a per-record call.
type BulkSerializer[E any] interface {
	Serializer[E]

	// WriteBulk encodes all of src to w.
	WriteBulk(w io.Writer, src []E) error

	// ReadBulk decodes up to len(dst) records from r, returning the count
	// decoded. A clean end of input at a record boundary returns io.EOF
	// alongside the count; a trailing partial record is an error.
	ReadBulk(r io.Reader, dst []E) (int, error)
}

// Detect probes E for a usable strategy, in precedence order: POD blit,
// stream methods, then the string specialization. Types that need free
// functions or the Slice specialization must be constructed explicitly.
func Detect[E any]() (Serializer[E], error) {
	if s, err := POD[E](); err == nil {
		return s, nil
	}
	if s, err := Methods[E](); err == nil {
		return s, nil
	}
	var zero E
	if _, ok := any(zero).(string); ok {
		return any(String()).(Serializer[E]), nil
	}
	return nil, errs.InvalidArgument("no serialization strategy for %T; implement StreamMarshaler/StreamUnmarshaler or use serial.Funcs", zero)
}

// countingWriter discards everything written to it and keeps a byte count.
// It is the in-memory equivalent of encoding to the OS null device.
type countingWriter struct {
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += uint64(len(p))
	return len(p), nil
}

// sizeByWriting measures the encoded size of a record by running its encode
// function against a counting sink. O(n) in the record size.
func sizeByWriting(encode func(io.Writer) error) uint64 {
	var c countingWriter
	if err := encode(&c); err != nil {
		return 0
	}
	return c.n
}
