package stream

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sortio/extmerge/errs"
	"github.com/sortio/extmerge/serial"
	"github.com/sortio/extmerge/tempstore"
)

// headerSize is the fixed length of the record-count header: one
// little-endian u64 at offset zero.
const headerSize = 8

// FileFactory creates file-backed streams. Storage IDs are file paths;
// temporary IDs live under a tempstore.Manager namespace that is cleaned up
// when the factory is closed.
type FileFactory[E any] struct {
	ser serial.Serializer[E]
	tmp *tempstore.Manager
	log logrus.FieldLogger
}

// NewFileFactory returns a factory writing the on-disk sequence format
// (u64 little-endian count header, then records encoded by ser). tempDir
// names the scratch directory; empty picks a unique one under the OS temp
// dir. log may be nil.
func NewFileFactory[E any](ser serial.Serializer[E], tempDir string, log logrus.FieldLogger) (*FileFactory[E], error) {
	if ser == nil {
		return nil, errs.InvalidArgument("file factory requires a serializer")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	tmp, err := tempstore.New(tempDir, log)
	if err != nil {
		return nil, errs.IO(err, "initialize temp namespace")
	}
	return &FileFactory[E]{ser: ser, tmp: tmp, log: log}, nil
}

// Close releases the factory's temp namespace, removing any intermediate
// runs it still holds when the namespace is owned.
func (f *FileFactory[E]) Close() error {
	return f.tmp.Close()
}

// OpenInput implements Factory.
func (f *FileFactory[E]) OpenInput(id string, bufRecords int) (InputStream[E], error) {
	return newFileInput[E](id, bufRecords, f.ser, f.log)
}

// CreateOutput implements Factory.
func (f *FileFactory[E]) CreateOutput(id string, bufRecords int) (OutputStream[E], error) {
	return newFileOutput[E](id, bufRecords, f.ser, f.log)
}

// CreateTempOutput implements Factory.
func (f *FileFactory[E]) CreateTempOutput(bufRecords int) (string, OutputStream[E], error) {
	id := f.tmp.NextID()
	out, err := newFileOutput[E](id, bufRecords, f.ser, f.log)
	if err != nil {
		return "", nil, err
	}
	return id, out, nil
}

// Delete implements Factory. Missing files are not an error.
func (f *FileFactory[E]) Delete(id string) error {
	if err := os.Remove(id); err != nil && !os.IsNotExist(err) {
		return errs.IO(err, "delete %s", id)
	}
	return nil
}

// MakePermanent implements Factory. It renames in place when the host
// allows and falls back to a stream copy for cross-device moves.
func (f *FileFactory[E]) MakePermanent(tempID, finalID string) error {
	if tempID == finalID {
		return nil
	}
	if err := os.Remove(finalID); err != nil && !os.IsNotExist(err) {
		return errs.IO(err, "replace %s", finalID)
	}
	if err := os.Rename(tempID, finalID); err == nil {
		return nil
	} else {
		f.log.Warnf("stream: rename %s -> %s failed (%v), copying instead", tempID, finalID, err)
	}

	src, err := f.OpenInput(tempID, copyBufferRecords)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := f.CreateOutput(finalID, copyBufferRecords)
	if err != nil {
		return err
	}
	for !src.Exhausted() {
		v, err := src.TakeValue()
		if err != nil {
			return err
		}
		if err := dst.Write(v); err != nil {
			return err
		}
		if err := src.Advance(); err != nil {
			return err
		}
	}
	if err := dst.Finalize(); err != nil {
		return err
	}
	return f.Delete(tempID)
}

// copyBufferRecords sizes the streams used by the rename fallback.
const copyBufferRecords = 1024

// Exists implements Factory.
func (f *FileFactory[E]) Exists(id string) bool {
	_, err := os.Stat(id)
	return err == nil
}

// TempNamespace implements Factory.
func (f *FileFactory[E]) TempNamespace() string {
	return f.tmp.Dir()
}

// fileInput reads a finalized sequence from disk, one buffer refill at a
// time, holding one decoded value ahead of the cursor.
type fileInput[E any] struct {
	id          string
	f           *os.File
	r           *bufio.Reader
	ser         serial.Serializer[E]
	buf         *Buffer[E]
	headerCount uint64
	readCount   uint64
	exhausted   bool
	cur         E
	hasValue    bool
	log         logrus.FieldLogger
}

func newFileInput[E any](id string, bufRecords int, ser serial.Serializer[E], log logrus.FieldLogger) (*fileInput[E], error) {
	buf, err := NewBuffer[E](bufRecords)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(id)
	if err != nil {
		return nil, errs.IO(err, "open input %s", id)
	}
	s := &fileInput[E]{
		id:  id,
		f:   f,
		r:   bufio.NewReaderSize(f, hostBufferBytes(bufRecords, ser)),
		ser: ser,
		buf: buf,
		log: log,
	}

	var hdr [headerSize]byte
	if _, err := io.ReadFull(s.r, hdr[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			// shorter than the header: treat as an empty sequence
			s.headerCount = 0
		} else {
			f.Close()
			return nil, errs.IO(err, "read header of %s", id)
		}
	} else {
		s.headerCount = binary.LittleEndian.Uint64(hdr[:])
	}
	log.Debugf("stream: opened %s, header records=%d", id, s.headerCount)

	if s.headerCount == 0 {
		s.exhausted = true
	} else if err := s.Advance(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// hostBufferBytes sizes the bufio layer from the record buffer capacity,
// clamped to a sane range.
func hostBufferBytes[E any](bufRecords int, ser serial.Serializer[E]) int {
	per := uint64(64)
	if fixed, ok := ser.FixedSize(); ok {
		per = fixed
	}
	n := uint64(bufRecords) * per
	switch {
	case n < 4096:
		return 4096
	case n > 1<<20:
		return 1 << 20
	default:
		return int(n)
	}
}

// fill refills the record buffer with up to min(capacity, remaining)
// records. POD types arrive through the serializer's bulk path in one host
// read; everything else decodes record by record.
func (s *fileInput[E]) fill() error {
	s.buf.Clear()
	remaining := s.headerCount - s.readCount
	want := uint64(s.buf.Cap())
	if remaining < want {
		want = remaining
	}
	if want == 0 {
		return nil
	}

	if bulk, ok := s.ser.(serial.BulkSerializer[E]); ok {
		n, err := bulk.ReadBulk(s.r, s.buf.RawData()[:want])
		if err != nil && err != io.EOF {
			return err
		}
		return s.buf.SetValid(n)
	}

	read := 0
	for i := uint64(0); i < want; i++ {
		var e E
		if err := s.ser.Read(s.r, &e); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		s.buf.Push(e)
		read++
	}
	return s.buf.SetValid(read)
}

// Advance implements InputStream.
func (s *fileInput[E]) Advance() error {
	if s.exhausted && !s.hasValue {
		return nil
	}
	if s.readCount >= s.headerCount {
		s.hasValue = false
		s.exhausted = true
		return nil
	}
	if !s.buf.HasMore() {
		if err := s.fill(); err != nil {
			s.hasValue = false
			s.exhausted = true
			return err
		}
		if !s.buf.HasMore() {
			// file ended before the header said it would
			s.hasValue = false
			s.exhausted = true
			return nil
		}
	}
	s.cur = s.buf.ReadNext()
	s.readCount++
	s.hasValue = true
	if s.readCount >= s.headerCount {
		s.exhausted = true
	}
	return nil
}

// Value implements InputStream.
func (s *fileInput[E]) Value() *E {
	if !s.hasValue {
		return nil
	}
	return &s.cur
}

// TakeValue implements InputStream.
func (s *fileInput[E]) TakeValue() (E, error) {
	var zero E
	if !s.hasValue {
		return zero, errs.InvalidState("take from exhausted input %s", s.id)
	}
	out := s.cur
	s.cur = zero
	s.hasValue = false
	return out, nil
}

// Exhausted implements InputStream.
func (s *fileInput[E]) Exhausted() bool {
	return s.exhausted && !s.hasValue
}

// EmptySource implements InputStream.
func (s *fileInput[E]) EmptySource() bool {
	return s.headerCount == 0
}

// Close implements InputStream.
func (s *fileInput[E]) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		return errs.IO(err, "close %s", s.id)
	}
	return nil
}

// fileOutput writes a sequence to disk behind a record buffer, stamping the
// true record count into the header exactly once at finalize. Until then
// the header holds zero, so a writer dropped mid-write leaves a file that
// readers see as empty.
type fileOutput[E any] struct {
	id        string
	f         *os.File
	w         *bufio.Writer
	ser       serial.Serializer[E]
	buf       *Buffer[E]
	written   uint64
	bytes     uint64
	finalized bool
	log       logrus.FieldLogger
}

func newFileOutput[E any](id string, bufRecords int, ser serial.Serializer[E], log logrus.FieldLogger) (*fileOutput[E], error) {
	buf, err := NewBuffer[E](bufRecords)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(id, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errs.IO(err, "create output %s", id)
	}
	s := &fileOutput[E]{
		id:  id,
		f:   f,
		w:   bufio.NewWriterSize(f, hostBufferBytes(bufRecords, ser)),
		ser: ser,
		buf: buf,
		log: log,
	}

	var placeholder [headerSize]byte
	if _, err := s.w.Write(placeholder[:]); err != nil {
		f.Close()
		return nil, errs.IO(err, "write placeholder header to %s", id)
	}
	s.bytes = headerSize
	return s, nil
}

// Write implements OutputStream.
func (s *fileOutput[E]) Write(v E) error {
	if s.finalized {
		return errs.InvalidState("write to finalized output %s", s.id)
	}
	if s.buf.Push(v) {
		if err := s.flush(); err != nil {
			return err
		}
	}
	s.written++
	return nil
}

// flush drains the record buffer to the host. POD types go out as one bulk
// write; everything else encodes record by record, accumulating the byte
// diagnostic as it goes. A partial flush is fatal.
func (s *fileOutput[E]) flush() error {
	if s.buf.IsEmpty() {
		return nil
	}
	data := s.buf.Data()
	if bulk, ok := s.ser.(serial.BulkSerializer[E]); ok {
		if err := bulk.WriteBulk(s.w, data); err != nil {
			return errs.IO(err, "flush %d records to %s", len(data), s.id)
		}
		for i := range data {
			s.bytes += s.ser.Size(&data[i])
		}
	} else {
		for i := range data {
			size := s.ser.Size(&data[i])
			if err := s.ser.Write(s.w, &data[i]); err != nil {
				return err
			}
			s.bytes += size
		}
	}
	s.log.Debugf("stream: flushed %d records to %s", len(data), s.id)
	s.buf.Clear()
	return nil
}

// Finalize implements OutputStream. It flushes, seeks back to offset zero
// and rewrites the header with the true record count, then syncs and closes
// the file. Finalizing twice is a no-op.
func (s *fileOutput[E]) Finalize() error {
	if s.finalized || s.f == nil {
		return nil
	}
	s.finalized = true

	if err := s.flush(); err != nil {
		s.closeQuietly()
		return err
	}
	if err := s.w.Flush(); err != nil {
		s.closeQuietly()
		return errs.IO(err, "flush %s", s.id)
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		s.closeQuietly()
		return errs.IO(err, "seek header of %s", s.id)
	}
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint64(hdr[:], s.written)
	if _, err := s.f.Write(hdr[:]); err != nil {
		s.closeQuietly()
		return errs.IO(err, "write header of %s", s.id)
	}
	if err := s.f.Sync(); err != nil {
		s.log.Warnf("stream: sync %s failed: %v", s.id, err)
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		return errs.IO(err, "close %s", s.id)
	}
	s.log.Debugf("stream: finalized %s, header records=%d", s.id, s.written)
	return nil
}

func (s *fileOutput[E]) closeQuietly() {
	if s.f != nil {
		if err := s.f.Close(); err != nil {
			s.log.Errorf("stream: close %s failed: %v", s.id, err)
		}
		s.f = nil
	}
}

// Close implements OutputStream. It finalizes when that has not happened
// yet, so every exit path leaves a valid header behind.
func (s *fileOutput[E]) Close() error {
	if err := s.Finalize(); err != nil {
		s.log.Errorf("stream: finalize on close of %s failed: %v", s.id, err)
		return err
	}
	return nil
}

// Written implements OutputStream.
func (s *fileOutput[E]) Written() uint64 {
	return s.written
}

// BytesWritten implements OutputStream.
func (s *fileOutput[E]) BytesWritten() uint64 {
	return s.bytes
}
