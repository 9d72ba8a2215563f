// Package feed defines the downstream sink for synthesized logic
// waveforms. The synthesizer core pushes level runs (a channel bitmask
// plus a repeat count) through an Emitter, preceded by one session
// start event that carries the channel list and samplerate, and
// terminated by one end event.
package feed

import (
	"errors"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/wave"
)

// Emitter receives a synthesized sample stream. Start is called exactly
// once before any Submit, End exactly once after the last. Runs arrive
// in strict generation order.
type Emitter interface {
	Start(channels []string, samplerate uint64) error
	Submit(levels wave.Levels, count uint64) error
	End() error
}

// ErrNotStarted is returned when runs are submitted before the session
// start event.
var ErrNotStarted = errors.New("feed: submit before start")

// Queue wraps an Emitter and coalesces adjacent runs of equal levels,
// so downstream consumers see one run per level change regardless of
// how the synthesizer sliced its emissions.
type Queue struct {
	next    Emitter
	started bool
	pending uint64
	levels  wave.Levels
}

// NewQueue creates a coalescing queue in front of the given emitter.
func NewQueue(next Emitter) *Queue {
	return &Queue{next: next}
}

// Start forwards the session start event.
func (q *Queue) Start(channels []string, samplerate uint64) error {
	if err := q.next.Start(channels, samplerate); err != nil {
		return err
	}
	q.started = true
	q.pending = 0
	return nil
}

// Submit buffers a run, merging it with the previous one when the
// levels match.
func (q *Queue) Submit(levels wave.Levels, count uint64) error {
	if !q.started {
		return ErrNotStarted
	}
	if count == 0 {
		return nil
	}
	if q.pending > 0 && levels == q.levels {
		q.pending += count
		return nil
	}
	if err := q.flush(); err != nil {
		return err
	}
	q.levels = levels
	q.pending = count
	return nil
}

func (q *Queue) flush() error {
	if q.pending == 0 {
		return nil
	}
	count := q.pending
	q.pending = 0
	return q.next.Submit(q.levels, count)
}

// End flushes any pending run and forwards the end event.
func (q *Queue) End() error {
	if err := q.flush(); err != nil {
		return err
	}
	return q.next.End()
}
