package serial

import (
	"io"

	"github.com/sortio/extmerge/errs"
)

// StreamMarshaler is implemented by record types that encode themselves.
type StreamMarshaler interface {
	MarshalStream(w io.Writer) error
}

// StreamUnmarshaler is implemented by record types that decode themselves.
type StreamUnmarshaler interface {
	UnmarshalStream(r io.Reader) error
}

// StreamSizer is optionally implemented by record types that know their
// encoded size without encoding. Implementing it turns the sorter's
// per-record size query from O(n) into O(1).
type StreamSizer interface {
	StreamSize() uint64
}

// methodCodec dispatches to the record's own marshal/unmarshal methods.
type methodCodec[E any] struct {
	sized bool
}

// Methods returns the serializer backed by E's stream methods. The methods
// must be declared on *E so UnmarshalStream can populate the record.
func Methods[E any]() (Serializer[E], error) {
	var zero E
	if _, ok := any(&zero).(StreamMarshaler); !ok {
		return nil, errs.InvalidArgument("%T does not implement serial.StreamMarshaler", &zero)
	}
	if _, ok := any(&zero).(StreamUnmarshaler); !ok {
		return nil, errs.InvalidArgument("%T does not implement serial.StreamUnmarshaler", &zero)
	}
	_, sized := any(&zero).(StreamSizer)
	return &methodCodec[E]{sized: sized}, nil
}

func (c *methodCodec[E]) Write(w io.Writer, v *E) error {
	if err := any(v).(StreamMarshaler).MarshalStream(w); err != nil {
		return errs.Serialization(err, "marshal record")
	}
	return nil
}

func (c *methodCodec[E]) Read(r io.Reader, v *E) error {
	if err := any(v).(StreamUnmarshaler).UnmarshalStream(r); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return errs.Serialization(err, "unmarshal record")
	}
	return nil
}

func (c *methodCodec[E]) Size(v *E) uint64 {
	if c.sized {
		return any(v).(StreamSizer).StreamSize()
	}
	return sizeByWriting(func(w io.Writer) error {
		return any(v).(StreamMarshaler).MarshalStream(w)
	})
}

func (c *methodCodec[E]) FixedSize() (uint64, bool) {
	return 0, false
}
