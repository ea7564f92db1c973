package extmerge

import (
	"slices"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/sortio/extmerge/errs"
	"github.com/sortio/extmerge/metrics"
	"github.com/sortio/extmerge/queue"
	"github.com/sortio/extmerge/serial"
	"github.com/sortio/extmerge/stream"
)

// Compare orders two records. It must implement a strict weak ordering and
// return a negative integer when a sorts before b, zero when equal, and a
// positive integer when a sorts after b, following the semantics of
// cmp.Compare.
type Compare[E any] func(a, b E) int

// Sorter performs one external k-way merge sort from an input sequence to
// an output sequence over a stream factory. A Sorter is single-threaded:
// Sort blocks until the output is finalized or an error surfaces.
type Sorter[E any] struct {
	factory  stream.Factory[E]
	ser      serial.Serializer[E]
	compare  Compare[E]
	inputID  string
	outputID string

	memoryBytes uint64
	fanOut      uint64
	bufRecords  int
	ascending   bool
	log         logrus.FieldLogger

	// wrapperSize is the in-memory size of one record object, used in the
	// footprint estimate for variable-size records.
	wrapperSize uint64
	fixedSize   uint64
	fixed       bool
}

// New validates the parameters and returns a sorter ready to run.
//
// It fails with ErrInvalidArgument when the fan-out is below 2, the buffer
// capacity is not positive, or the serializer, factory or comparator is
// missing, and with ErrOutputUnderTempNamespace when outputID is a strict
// extension of the factory's temp namespace — the sorter will delete and
// rename freely inside that namespace, so caller outputs may not live
// there.
func New[E any](factory stream.Factory[E], ser serial.Serializer[E], compare Compare[E], inputID, outputID string, opts *Options) (*Sorter[E], error) {
	if factory == nil {
		return nil, errs.InvalidArgument("stream factory is required")
	}
	if ser == nil {
		return nil, errs.InvalidArgument("serializer is required")
	}
	if compare == nil {
		return nil, errs.InvalidArgument("comparator is required")
	}
	opts = withDefaults(opts)
	if opts.FanOut < 2 {
		return nil, errs.InvalidArgument("merge fan-out must be at least 2, got %d", opts.FanOut)
	}
	if opts.IOBufferRecords < 1 {
		return nil, errs.InvalidArgument("io buffer capacity must be at least 1, got %d", opts.IOBufferRecords)
	}

	ns := factory.TempNamespace()
	if ns != "" && len(outputID) > len(ns) && outputID[:len(ns)] == ns {
		return nil, errs.ErrOutputUnderTempNamespace
	}

	var zero E
	s := &Sorter[E]{
		factory:     factory,
		ser:         ser,
		compare:     compare,
		inputID:     inputID,
		outputID:    outputID,
		memoryBytes: opts.MemoryBytes,
		fanOut:      opts.FanOut,
		bufRecords:  opts.IOBufferRecords,
		ascending:   !opts.Descending,
		log:         opts.Logger,
		wrapperSize: uint64(unsafe.Sizeof(zero)),
	}
	s.fixedSize, s.fixed = ser.FixedSize()
	return s, nil
}

// Sort runs the complete external sort: initial run creation, repeated
// k-way merge passes, and finalization of the surviving run under the
// output ID.
func (s *Sorter[E]) Sort() error {
	start := time.Now()
	defer func() {
		metrics.SortDuration.Observe(time.Since(start).Seconds())
	}()

	runs, err := s.createInitialRuns()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		s.log.Infof("extmerge: input %s is empty, creating empty output %s", s.inputID, s.outputID)
		return s.writeEmptyOutput()
	}

	for len(runs) > 1 {
		s.log.Infof("extmerge: merge pass over %d runs", len(runs))
		metrics.MergePasses.Inc()

		var nextPass []string
		var consumed []string
		for i := 0; i < len(runs); i += int(s.fanOut) {
			end := i + int(s.fanOut)
			if end > len(runs) {
				end = len(runs)
			}
			group := runs[i:end]

			// The first chunk of the last pass goes straight to the
			// caller's output. With len(runs) <= fanOut there is exactly
			// one chunk; keep the predicate as is so that stays true.
			var mergedID string
			if len(runs) <= int(s.fanOut) && i == 0 {
				mergedID = s.outputID
				s.log.Infof("extmerge: merging to final output %s", s.outputID)
			} else {
				// reserve a fresh temp id; the merge below reopens it
				id, reserve, err := s.factory.CreateTempOutput(s.bufRecords)
				if err != nil {
					return err
				}
				if err := reserve.Finalize(); err != nil {
					return err
				}
				mergedID = id
			}

			if err := s.mergeGroup(group, mergedID); err != nil {
				return err
			}
			nextPass = append(nextPass, mergedID)
			consumed = append(consumed, group...)
		}

		runs = nextPass
		for _, id := range consumed {
			if id == s.outputID {
				continue
			}
			if err := s.factory.Delete(id); err != nil {
				return err
			}
		}
	}

	switch {
	case len(runs) == 1:
		if runs[0] != s.outputID {
			s.log.Infof("extmerge: renaming %s to %s", runs[0], s.outputID)
			return s.factory.MakePermanent(runs[0], s.outputID)
		}
	case len(runs) == 0 && !s.factory.Exists(s.outputID):
		// should not happen once phase 1 produced runs
		s.log.Warnf("extmerge: no runs left and %s missing, creating empty output", s.outputID)
		return s.writeEmptyOutput()
	case len(runs) > 1:
		return errs.Internal("merge finished with %d runs remaining", len(runs))
	}
	return nil
}

func (s *Sorter[E]) writeEmptyOutput() error {
	out, err := s.factory.CreateOutput(s.outputID, s.bufRecords)
	if err != nil {
		return err
	}
	return out.Finalize()
}

// footprint estimates the memory cost of holding one record in the run
// buffer. Fixed-size records cost their in-memory size only; the on-disk
// size is irrelevant to the RAM budget. Variable records cost their
// serialized payload plus the in-memory wrapper.
func (s *Sorter[E]) footprint(v *E) uint64 {
	if s.fixed {
		return s.wrapperSize
	}
	return s.ser.Size(v) + s.wrapperSize
}

// createInitialRuns drains the input into budget-sized buffers, sorts each
// in memory, and writes it out as a finalized temp run.
func (s *Sorter[E]) createInitialRuns() ([]string, error) {
	in, err := s.factory.OpenInput(s.inputID, s.bufRecords)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	if in.EmptySource() {
		return nil, nil
	}

	less := s.lessFunc()
	var runIDs []string
	runBuf := make([]E, 0)
	runCounter := 0

	for !in.Exhausted() {
		runBuf = runBuf[:0]
		var usage uint64
		runCounter++

		for !in.Exhausted() {
			cur := in.Value()
			fp := s.footprint(cur)

			if len(runBuf) == 0 {
				if fp > s.memoryBytes {
					return nil, errs.MemoryLimit("record footprint %d exceeds budget %d", fp, s.memoryBytes)
				}
			} else if usage+fp > s.memoryBytes {
				break
			}

			usage += fp
			v, err := in.TakeValue()
			if err != nil {
				return nil, err
			}
			runBuf = append(runBuf, v)
			if err := in.Advance(); err != nil {
				return nil, err
			}
		}

		if len(runBuf) == 0 {
			continue
		}
		slices.SortFunc(runBuf, func(a, b E) int {
			if less(a, b) {
				return -1
			}
			if less(b, a) {
				return 1
			}
			return 0
		})

		id, err := s.writeRun(runBuf)
		if err != nil {
			return nil, err
		}
		runIDs = append(runIDs, id)
		s.log.Infof("extmerge: run %d written to %s with %d records, estimated %d bytes in memory",
			runCounter, id, len(runBuf), usage)
	}
	return runIDs, nil
}

// writeRun mints a temp id and writes the sorted buffer to it.
func (s *Sorter[E]) writeRun(runBuf []E) (string, error) {
	id, out, err := s.factory.CreateTempOutput(s.bufRecords)
	if err != nil {
		return "", err
	}
	defer out.Close()

	var zero E
	for i := range runBuf {
		v := runBuf[i]
		runBuf[i] = zero
		if err := out.Write(v); err != nil {
			return "", err
		}
	}
	if err := out.Finalize(); err != nil {
		return "", err
	}
	metrics.RunsCreated.Inc()
	metrics.RecordsWritten.Add(float64(out.Written()))
	metrics.BytesWritten.Add(float64(out.BytesWritten()))
	return id, nil
}

// lessFunc returns the direction-adjusted strict ordering.
func (s *Sorter[E]) lessFunc() func(a, b E) bool {
	if s.ascending {
		return func(a, b E) bool { return s.compare(a, b) < 0 }
	}
	return func(a, b E) bool { return s.compare(a, b) > 0 }
}

// mergeGroup k-way-merges the group's runs into outID. The opened streams
// live in a side slice that outlives the queue of borrowed pointers; empty
// runs are skipped at enqueue time, and a single-run group still goes
// through the same path.
func (s *Sorter[E]) mergeGroup(group []string, outID string) error {
	s.log.Infof("extmerge: merging %d runs into %s", len(group), outID)

	less := s.lessFunc()
	pq := queue.New[stream.InputStream[E]](func(a, b stream.InputStream[E]) bool {
		return less(*a.Value(), *b.Value())
	})

	inputs := make([]stream.InputStream[E], 0, len(group))
	defer func() {
		for _, in := range inputs {
			if err := in.Close(); err != nil {
				s.log.Warnf("extmerge: closing merge input: %v", err)
			}
		}
	}()

	for _, id := range group {
		in, err := s.factory.OpenInput(id, s.bufRecords)
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
		if !in.Exhausted() {
			pq.Push(in)
		}
	}

	out, err := s.factory.CreateOutput(outID, s.bufRecords)
	if err != nil {
		return err
	}
	defer out.Close()

	for pq.Len() > 0 {
		src := pq.Peek()
		v, err := src.TakeValue()
		if err != nil {
			return err
		}
		if err := out.Write(v); err != nil {
			return err
		}
		if err := src.Advance(); err != nil {
			return err
		}
		if src.Exhausted() {
			pq.Pop()
		} else {
			pq.PeekUpdate()
		}
	}

	if err := out.Finalize(); err != nil {
		return err
	}
	metrics.RecordsWritten.Add(float64(out.Written()))
	metrics.BytesWritten.Add(float64(out.BytesWritten()))
	s.log.Infof("extmerge: merged group into %s with %d records", outID, out.Written())
	return nil
}

// Sort is the one-shot convenience wrapper: it builds a Sorter and runs it.
func Sort[E any](factory stream.Factory[E], ser serial.Serializer[E], compare Compare[E], inputID, outputID string, opts *Options) error {
	s, err := New(factory, ser, compare, inputID, outputID, opts)
	if err != nil {
		return err
	}
	return s.Sort()
}
