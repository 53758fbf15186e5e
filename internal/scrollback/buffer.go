// Package scrollback keeps the bounded history of chat lines shared between
// the network goroutine (the only writer) and the renderer (the reader).
//
// Appends write into a backing array past the end of the published window
// and then publish a new window with an atomic store, so a reader holding a
// Snapshot never sees an element change underneath it. When the backing
// array is full the live window is copied into a fresh array; old snapshots
// keep the old array alive until they are dropped.
package scrollback

import (
	"sync/atomic"

	"github.com/john/chattui/internal/message"
)

// DefaultCapacity is used when a non-positive capacity is given.
const DefaultCapacity = 500

// Snapshot is a point-in-time, read-only view of the buffer in ascending
// Seq order. Callers must not modify the returned lines.
type Snapshot struct {
	lines   []message.Line
	evicted uint64
}

// Lines returns the snapshot's lines, oldest first.
func (s Snapshot) Lines() []message.Line { return s.lines }

// Len is the number of lines in the snapshot.
func (s Snapshot) Len() int { return len(s.lines) }

// Evicted is the number of lines dropped for capacity before this snapshot.
func (s Snapshot) Evicted() uint64 { return s.evicted }

// Buffer is a capacity-bounded, append-only sequence of lines. Append must
// only be called from one goroutine at a time; Snapshot may be called from
// any goroutine concurrently with Append.
type Buffer struct {
	capacity int

	// writer-owned
	backing []message.Line
	start   int
	nextSeq uint64
	evicted uint64

	// OnEvict, when set, is called by the writer with the number of lines
	// evicted by an append.
	OnEvict func(n int)

	published atomic.Pointer[Snapshot]
}

// New creates an empty buffer holding at most capacity lines.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Buffer{
		capacity: capacity,
		backing:  make([]message.Line, 0, 2*capacity),
		nextSeq:  1,
	}
	b.published.Store(&Snapshot{})
	return b
}

// Capacity returns the maximum number of retained lines.
func (b *Buffer) Capacity() int { return b.capacity }

// Append stores draft as the newest line, assigning the next sequence
// number, evicting the oldest line when the buffer is full. It never
// blocks.
func (b *Buffer) Append(draft message.Draft) message.Line {
	line := message.Line{Seq: b.nextSeq, Draft: draft}
	b.nextSeq++

	if len(b.backing) == cap(b.backing) {
		// Compact into a new array; published snapshots still reference the
		// old one.
		live := b.backing[b.start:]
		fresh := make([]message.Line, len(live), 2*b.capacity)
		copy(fresh, live)
		b.backing = fresh
		b.start = 0
	}

	b.backing = append(b.backing, line)

	if n := len(b.backing) - b.start; n > b.capacity {
		drop := n - b.capacity
		b.start += drop
		b.evicted += uint64(drop)
		if b.OnEvict != nil {
			b.OnEvict(drop)
		}
	}

	window := b.backing[b.start:len(b.backing):len(b.backing)]
	b.published.Store(&Snapshot{lines: window, evicted: b.evicted})

	return line
}

// Snapshot returns the most recently published view. It does not lock and
// never observes a partially written line.
func (b *Buffer) Snapshot() Snapshot {
	return *b.published.Load()
}
