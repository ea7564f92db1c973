package serial

import (
	"io"

	"github.com/sortio/extmerge/errs"
)

// WriteFunc encodes *v to w.
type WriteFunc[E any] func(w io.Writer, v *E) error

// ReadFunc decodes one record from r into *v.
type ReadFunc[E any] func(r io.Reader, v *E) error

// SizeFunc returns the encoded size of *v in bytes.
type SizeFunc[E any] func(v *E) uint64

// funcCodec dispatches to caller-supplied free functions.
type funcCodec[E any] struct {
	write WriteFunc[E]
	read  ReadFunc[E]
	size  SizeFunc[E]
}

// Funcs returns a serializer backed by free functions. size may be nil, in
// which case Size falls back to encoding into a counting sink (O(n)).
func Funcs[E any](write WriteFunc[E], read ReadFunc[E], size SizeFunc[E]) (Serializer[E], error) {
	if write == nil || read == nil {
		return nil, errs.InvalidArgument("serial.Funcs requires both write and read functions")
	}
	return &funcCodec[E]{write: write, read: read, size: size}, nil
}

func (c *funcCodec[E]) Write(w io.Writer, v *E) error {
	if err := c.write(w, v); err != nil {
		return errs.Serialization(err, "encode record")
	}
	return nil
}

func (c *funcCodec[E]) Read(r io.Reader, v *E) error {
	if err := c.read(r, v); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return errs.Serialization(err, "decode record")
	}
	return nil
}

func (c *funcCodec[E]) Size(v *E) uint64 {
	if c.size != nil {
		return c.size(v)
	}
	return sizeByWriting(func(w io.Writer) error {
		return c.write(w, v)
	})
}

func (c *funcCodec[E]) FixedSize() (uint64, bool) {
	return 0, false
}
