// Package extmerge sorts record sequences that do not fit in memory with a
// classical external k-way merge sort. extmerge is NOT a stable sort.
//
// The caller supplies a stream.Factory over the backing store (durable
// files or an in-memory map), a serial.Serializer for the record type, a
// comparator, and a memory budget. Sort partitions the input into
// budget-sized sorted runs, then repeatedly collapses them k at a time
// until one sorted sequence remains under the caller's output ID.
package extmerge
