package serial

import (
	"encoding/binary"
	"io"

	"github.com/sortio/extmerge/errs"
)

// stringCodec encodes a string as a little-endian u64 length followed by
// the raw bytes.
type stringCodec struct{}

// String returns the variable-length string serializer.
func String() Serializer[string] {
	return stringCodec{}
}

func (stringCodec) Write(w io.Writer, v *string) error {
	var hdr [8]byte
	binary.LittleEndian.PutUint64(hdr[:], uint64(len(*v)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errs.Serialization(err, "write string length")
	}
	if _, err := io.WriteString(w, *v); err != nil {
		return errs.Serialization(err, "write string payload of %d bytes", len(*v))
	}
	return nil
}

func (stringCodec) Read(r io.Reader, v *string) error {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return errs.Serialization(err, "read string length")
	}
	n := binary.LittleEndian.Uint64(hdr[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return errs.Serialization(err, "read string payload of %d bytes", n)
	}
	*v = string(buf)
	return nil
}

func (stringCodec) Size(v *string) uint64 {
	return 8 + uint64(len(*v))
}

func (stringCodec) FixedSize() (uint64, bool) {
	return 0, false
}

// sliceCodec encodes a homogeneous sequence as a little-endian u64 count
// followed by the recursively encoded elements.
type sliceCodec[E any] struct {
	elem Serializer[E]
}

// Slice returns the serializer for []E given the element serializer.
func Slice[E any](elem Serializer[E]) Serializer[[]E] {
	return sliceCodec[E]{elem: elem}
}

func (c sliceCodec[E]) Write(w io.Writer, v *[]E) error {
	var hdr [8]byte
	binary.LittleEndian.PutUint64(hdr[:], uint64(len(*v)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errs.Serialization(err, "write sequence count")
	}
	for i := range *v {
		if err := c.elem.Write(w, &(*v)[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c sliceCodec[E]) Read(r io.Reader, v *[]E) error {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return errs.Serialization(err, "read sequence count")
	}
	n := binary.LittleEndian.Uint64(hdr[:])
	out := make([]E, n)
	for i := uint64(0); i < n; i++ {
		if err := c.elem.Read(r, &out[i]); err != nil {
			if err == io.EOF {
				return errs.Serialization(nil, "sequence truncated at element %d of %d", i, n)
			}
			return err
		}
	}
	*v = out
	return nil
}

func (c sliceCodec[E]) Size(v *[]E) uint64 {
	if fixed, ok := c.elem.FixedSize(); ok {
		return 8 + fixed*uint64(len(*v))
	}
	total := uint64(8)
	for i := range *v {
		total += c.elem.Size(&(*v)[i])
	}
	return total
}

func (c sliceCodec[E]) FixedSize() (uint64, bool) {
	return 0, false
}
