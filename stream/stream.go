// Package stream defines the record stream contract the sorter operates
// over, together with its two implementations: a durable file backend and
// an in-memory backend. The sorter is written once against the interfaces;
// the concrete backend is chosen when the factory is constructed.
package stream

// InputStream reads a finalized record sequence one record at a time,
// keeping one value cached ahead of the cursor.
type InputStream[E any] interface {
	// Advance loads the next record into the cached current value, or
	// marks the stream exhausted when none remain.
	Advance() error

	// Value borrows the cached current record. It returns nil once the
	// stream is exhausted.
	Value() *E

	// TakeValue moves the cached current record out of the stream and
	// marks it as needing an Advance. It fails with ErrInvalidState when
	// the stream is exhausted.
	TakeValue() (E, error)

	// Exhausted reports whether no current value exists and none remain.
	Exhausted() bool

	// EmptySource reports whether the backing sequence declared zero
	// records when the stream was opened.
	EmptySource() bool

	// Close releases the stream's resources. Closing twice is a no-op.
	Close() error
}

// OutputStream writes a record sequence and stamps the true record count
// into its header on finalize.
type OutputStream[E any] interface {
	// Write appends one record. It fails with ErrInvalidState after the
	// stream has been finalized.
	Write(v E) error

	// Finalize flushes buffered records, rewrites the header with the
	// true record count, and closes the backing storage. Finalizing twice
	// is a no-op.
	Finalize() error

	// Close finalizes the stream if that has not happened yet.
	Close() error

	// Written returns the number of records written so far.
	Written() uint64

	// BytesWritten returns the bytes emitted including the header. It is
	// a diagnostic; backends without an encoded form report zero.
	BytesWritten() uint64
}

// Factory creates streams over one backing store and manages the lifecycle
// of the storage IDs it hands out. IDs are opaque to the sorter except for
// TempNamespace, which it uses to refuse outputs placed among its own
// temporary runs.
type Factory[E any] interface {
	// OpenInput opens an existing sequence for reading. It fails when id
	// does not exist.
	OpenInput(id string, bufRecords int) (InputStream[E], error)

	// CreateOutput opens id for writing, discarding prior content.
	CreateOutput(id string, bufRecords int) (OutputStream[E], error)

	// CreateTempOutput mints a fresh ID in the temp namespace and opens
	// it for writing.
	CreateTempOutput(bufRecords int) (string, OutputStream[E], error)

	// Delete removes a sequence. Deleting a missing ID is not an error.
	Delete(id string) error

	// MakePermanent renames tempID to finalID, replacing any existing
	// content. Equal IDs are a no-op.
	MakePermanent(tempID, finalID string) error

	// Exists reports whether id refers to a stored sequence.
	Exists(id string) bool

	// TempNamespace returns the prefix under which temporary IDs are
	// minted, or the empty string when the backend has none.
	TempNamespace() string
}
