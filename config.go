package extmerge

import "github.com/sirupsen/logrus"

// Options holds the tuning parameters for a sort.
type Options struct {
	// MemoryBytes is the budget for phase-1 run buffers. It must admit at
	// least one record's footprint or Sort fails with ErrMemoryLimit.
	MemoryBytes uint64

	// FanOut is the merge degree k: how many runs collapse per group in
	// one merge pass. Must be at least 2.
	FanOut uint64

	// IOBufferRecords is the per-stream buffer capacity in records.
	IOBufferRecords int

	// Descending flips the sort direction. The zero value sorts
	// ascending.
	Descending bool

	// Logger receives progress at Info, recoverable oddities at Warn and
	// failures at Error. Nil uses the logrus standard logger.
	Logger logrus.FieldLogger
}

// DefaultOptions returns the options used when none are provided.
func DefaultOptions() *Options {
	return &Options{
		MemoryBytes:     64 << 20,
		FanOut:          8,
		IOBufferRecords: 1024,
	}
}

// withDefaults takes provided options and replaces unset values with the
// defaults.
func withDefaults(o *Options) *Options {
	d := DefaultOptions()
	if o == nil {
		d.Logger = logrus.StandardLogger()
		return d
	}
	out := *o
	if out.MemoryBytes == 0 {
		out.MemoryBytes = d.MemoryBytes
	}
	if out.FanOut == 0 {
		out.FanOut = d.FanOut
	}
	if out.IOBufferRecords == 0 {
		out.IOBufferRecords = d.IOBufferRecords
	}
	if out.Logger == nil {
		out.Logger = logrus.StandardLogger()
	}
	return &out
}
