package serial

import (
	"io"
	"reflect"
	"unsafe"

	"github.com/sortio/extmerge/errs"
)

// podCodec blits records as raw bytes in host byte order. The encoded form
// is sizeof(E) bytes per record and is intentionally not portable across
// hosts with different layouts; callers needing portability should use a
// method or function strategy that normalizes byte order.
type podCodec[E any] struct {
	size uintptr
}

// POD returns the blit serializer for E. It fails with ErrInvalidArgument
// when E contains pointers, slices, maps, strings, interfaces, channels or
// functions, since their in-memory representation is not self-contained.
func POD[E any]() (Serializer[E], error) {
	var zero E
	t := reflect.TypeOf(zero)
	if t == nil || !blittable(t) {
		return nil, errs.InvalidArgument("type %T is not trivially copyable", zero)
	}
	return &podCodec[E]{size: unsafe.Sizeof(zero)}, nil
}

// blittable reports whether values of t can be copied byte for byte.
func blittable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return blittable(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !blittable(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (c *podCodec[E]) bytes(v *E) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), c.size)
}

func (c *podCodec[E]) Write(w io.Writer, v *E) error {
	if _, err := w.Write(c.bytes(v)); err != nil {
		return errs.Serialization(err, "write %d byte record", c.size)
	}
	return nil
}

func (c *podCodec[E]) Read(r io.Reader, v *E) error {
	if _, err := io.ReadFull(r, c.bytes(v)); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return errs.Serialization(err, "read %d byte record", c.size)
	}
	return nil
}

func (c *podCodec[E]) Size(*E) uint64 {
	return uint64(c.size)
}

func (c *podCodec[E]) FixedSize() (uint64, bool) {
	return uint64(c.size), true
}

// WriteBulk writes the whole slice with a single host write.
func (c *podCodec[E]) WriteBulk(w io.Writer, src []E) error {
	if len(src) == 0 {
		return nil
	}
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&src[0])), c.size*uintptr(len(src)))
	if _, err := w.Write(raw); err != nil {
		return errs.Serialization(err, "bulk write %d records", len(src))
	}
	return nil
}

// ReadBulk fills dst with a single host read, tolerating a short read at a
// record boundary.
func (c *podCodec[E]) ReadBulk(r io.Reader, dst []E) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&dst[0])), c.size*uintptr(len(dst)))
	n, err := io.ReadFull(r, raw)
	records := n / int(c.size)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if n%int(c.size) != 0 {
				return records, errs.Serialization(nil, "truncated record after %d whole records", records)
			}
			return records, io.EOF
		}
		return records, errs.Serialization(err, "bulk read")
	}
	return records, nil
}
