package stream

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sortio/extmerge/errs"
)

// memTempPrefix is the namespace under which the memory factory mints
// temporary IDs. Any string outside it is a valid permanent key.
const memTempPrefix = "mem:tmp/"

// memSequence is one stored sequence: the records plus the independently
// shared declared size that the output stream stamps on finalize. A
// sequence whose producer was never finalized keeps declared at zero and
// reads as empty, mirroring the file backend's header protocol.
type memSequence[E any] struct {
	records  []E
	declared uint64
}

// MemoryFactory keeps sequences in an in-process map. It implements the
// same Factory contract as the file backend, so the sorter and its tests
// run unchanged over either. A MemoryFactory is confined to one goroutine
// unless the caller adds external synchronization.
type MemoryFactory[E any] struct {
	storages map[string]*memSequence[E]
	counter  uint64
	log      logrus.FieldLogger
}

// NewMemoryFactory returns an empty in-memory factory. log may be nil.
func NewMemoryFactory[E any](log logrus.FieldLogger) *MemoryFactory[E] {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MemoryFactory[E]{
		storages: make(map[string]*memSequence[E]),
		log:      log,
	}
}

// Put stores a sequence under id with its declared size equal to its
// length, the way a finalized producer would leave it. Convenient for
// seeding test inputs.
func (f *MemoryFactory[E]) Put(id string, records []E) {
	f.storages[id] = &memSequence[E]{records: records, declared: uint64(len(records))}
}

// Get returns the stored records and declared size for id.
func (f *MemoryFactory[E]) Get(id string) ([]E, uint64, bool) {
	seq, ok := f.storages[id]
	if !ok {
		return nil, 0, false
	}
	return seq.records, seq.declared, true
}

// OpenInput implements Factory.
func (f *MemoryFactory[E]) OpenInput(id string, bufRecords int) (InputStream[E], error) {
	if bufRecords < 1 {
		return nil, errs.InvalidArgument("buffer capacity must be at least 1, got %d", bufRecords)
	}
	seq, ok := f.storages[id]
	if !ok {
		return nil, errs.IO(nil, "no stored sequence %q", id)
	}
	limit := seq.declared
	if limit > uint64(len(seq.records)) {
		f.log.Warnf("stream: sequence %q declares %d records but holds %d, clamping", id, limit, len(seq.records))
		limit = uint64(len(seq.records))
	}
	s := &memInput[E]{id: id, records: seq.records, limit: limit}
	if limit == 0 {
		s.exhausted = true
	} else if err := s.Advance(); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateOutput implements Factory. Existing content under id is discarded.
func (f *MemoryFactory[E]) CreateOutput(id string, bufRecords int) (OutputStream[E], error) {
	if bufRecords < 1 {
		return nil, errs.InvalidArgument("buffer capacity must be at least 1, got %d", bufRecords)
	}
	seq := &memSequence[E]{}
	f.storages[id] = seq
	return &memOutput[E]{id: id, seq: seq}, nil
}

// CreateTempOutput implements Factory.
func (f *MemoryFactory[E]) CreateTempOutput(bufRecords int) (string, OutputStream[E], error) {
	id := fmt.Sprintf("%s%d", memTempPrefix, f.counter)
	f.counter++
	out, err := f.CreateOutput(id, bufRecords)
	if err != nil {
		return "", nil, err
	}
	return id, out, nil
}

// Delete implements Factory.
func (f *MemoryFactory[E]) Delete(id string) error {
	delete(f.storages, id)
	return nil
}

// MakePermanent implements Factory. The shared sequence moves from one key
// to the other.
func (f *MemoryFactory[E]) MakePermanent(tempID, finalID string) error {
	if tempID == finalID {
		return nil
	}
	seq, ok := f.storages[tempID]
	if !ok {
		return errs.IO(nil, "no stored sequence %q to make permanent", tempID)
	}
	f.storages[finalID] = seq
	delete(f.storages, tempID)
	return nil
}

// Exists implements Factory.
func (f *MemoryFactory[E]) Exists(id string) bool {
	_, ok := f.storages[id]
	return ok
}

// TempNamespace implements Factory.
func (f *MemoryFactory[E]) TempNamespace() string {
	return memTempPrefix
}

// memInput reads an immutable view of a stored sequence.
type memInput[E any] struct {
	id        string
	records   []E
	limit     uint64
	cursor    uint64
	cur       E
	hasValue  bool
	exhausted bool
}

// Advance implements InputStream.
func (s *memInput[E]) Advance() error {
	if s.cursor >= s.limit {
		s.hasValue = false
		s.exhausted = true
		return nil
	}
	s.cur = s.records[s.cursor]
	s.cursor++
	s.hasValue = true
	if s.cursor >= s.limit {
		s.exhausted = true
	}
	return nil
}

// Value implements InputStream.
func (s *memInput[E]) Value() *E {
	if !s.hasValue {
		return nil
	}
	return &s.cur
}

// TakeValue implements InputStream.
func (s *memInput[E]) TakeValue() (E, error) {
	var zero E
	if !s.hasValue {
		return zero, errs.InvalidState("take from exhausted input %q", s.id)
	}
	out := s.cur
	s.cur = zero
	s.hasValue = false
	return out, nil
}

// Exhausted implements InputStream.
func (s *memInput[E]) Exhausted() bool {
	return s.exhausted && !s.hasValue
}

// EmptySource implements InputStream.
func (s *memInput[E]) EmptySource() bool {
	return s.limit == 0
}

// Close implements InputStream.
func (s *memInput[E]) Close() error {
	return nil
}

// memOutput appends records to a shared sequence and stamps the declared
// size on finalize.
type memOutput[E any] struct {
	id        string
	seq       *memSequence[E]
	written   uint64
	finalized bool
}

// Write implements OutputStream.
func (s *memOutput[E]) Write(v E) error {
	if s.finalized {
		return errs.InvalidState("write to finalized output %q", s.id)
	}
	s.seq.records = append(s.seq.records, v)
	s.written++
	return nil
}

// Finalize implements OutputStream.
func (s *memOutput[E]) Finalize() error {
	if s.finalized {
		return nil
	}
	s.finalized = true
	s.seq.declared = s.written
	return nil
}

// Close implements OutputStream.
func (s *memOutput[E]) Close() error {
	return s.Finalize()
}

// Written implements OutputStream.
func (s *memOutput[E]) Written() uint64 {
	return s.written
}

// BytesWritten implements OutputStream. The memory backend has no encoded
// form, so this is always zero.
func (s *memOutput[E]) BytesWritten() uint64 {
	return 0
}
