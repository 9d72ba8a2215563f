// Package wave provides the low level primitives for constructing
// multi-channel logic waveforms one time slot at a time. A protocol
// handler stages channel levels in a SampleState, captures snapshots
// into a Builder's frame storage, and finally walks the filled slots
// to emit level runs of precomputed sample widths.
package wave

import (
	"errors"
	"fmt"
)

// Levels is a bitmask of logic channel states. Bit N carries the level
// of channel N. Up to eight channels are supported, which covers all
// registered protocols.
type Levels uint8

// Bit returns the mask for a single channel position.
func Bit(pin int) Levels {
	return Levels(1) << pin
}

// ErrBudget is returned when a frame receives more slot snapshots than
// were reserved during option validation. This signals a handler bug,
// not invalid user input.
var ErrBudget = errors.New("wave: frame slot budget exceeded")

// SampleState stages the channel levels for the next captured slot, and
// remembers the idle baseline the levels can be reset to.
type SampleState struct {
	idle Levels
	curr Levels
}

// Preset assigns the idle baseline and starts the current levels from it.
func (s *SampleState) Preset(idle Levels) {
	s.idle = idle
	s.curr = idle
}

// Assign replaces the current levels wholesale.
func (s *SampleState) Assign(levels Levels) {
	s.curr = levels
}

// Modify raises and clears individual channels in one operation.
func (s *SampleState) Modify(set, clr Levels) {
	s.curr |= set
	s.curr &^= clr
}

// Raise drives the masked channels high.
func (s *SampleState) Raise(mask Levels) {
	s.Modify(mask, 0)
}

// Clear drives the masked channels low.
func (s *SampleState) Clear(mask Levels) {
	s.Modify(0, mask)
}

// SetClr drives the masked channels high or low depending on level.
func (s *SampleState) SetClr(level bool, mask Levels) {
	if level {
		s.Raise(mask)
	} else {
		s.Clear(mask)
	}
}

// Toggle inverts the masked channels.
func (s *SampleState) Toggle(mask Levels) {
	s.curr ^= mask
}

// ToIdle restores the current levels to the idle baseline.
func (s *SampleState) ToIdle() {
	s.curr = s.idle
}

// Current reports the staged channel levels.
func (s *SampleState) Current() Levels {
	return s.curr
}

// Idle reports the idle baseline.
func (s *SampleState) Idle() Levels {
	return s.idle
}

// Scale adjusts one slot's width relative to the nominal bit period.
// Zero values leave the respective factor at 1.
type Scale struct {
	Mul uint64
	Div uint64
}

// Builder accumulates one protocol frame's waveform. Slot storage is
// allocated once for the maximum frame length that option validation
// determined; the filled slot count may stay below that bound but can
// never exceed it.
type Builder struct {
	// State stages channel levels between slot captures.
	State SampleState

	maxSlots      int
	scale         []Scale
	edges         []uint64
	widths        []uint64
	levels        []Levels
	top           int
	samplesPerBit uint64
}

// NewBuilder allocates frame storage for the given slot count.
func NewBuilder(maxSlots int) (*Builder, error) {
	if maxSlots <= 0 {
		return nil, fmt.Errorf("wave: invalid slot count %d", maxSlots)
	}
	return &Builder{
		maxSlots: maxSlots,
		scale:    make([]Scale, maxSlots),
		edges:    make([]uint64, maxSlots),
		widths:   make([]uint64, maxSlots),
		levels:   make([]Levels, maxSlots),
	}, nil
}

// MaxSlots reports the reserved slot count.
func (b *Builder) MaxSlots() int {
	return b.maxSlots
}

// SetScale overrides the width scale of one slot. Handlers call this
// from their frame configuration to mark half-width clock phases, half
// stop bits, or stretched trailing idle slots.
func (b *Builder) SetScale(idx int, mul, div uint64) {
	b.scale[idx] = Scale{Mul: mul, Div: div}
}

// AssignWidths derives every slot's integer sample width from the
// samplerate/bitrate ratio and the per-slot scales. Widths come from
// differences of the rounded cumulative edge positions, so rounding
// never drifts across the frame regardless of slot count.
func (b *Builder) AssignWidths(samplerate, bitrate uint64) {
	bitTime := float64(samplerate) / float64(bitrate)
	b.samplesPerBit = uint64(bitTime + 0.5)

	edge := 0.0
	var prev uint64
	for idx, s := range b.scale {
		slotTime := bitTime
		if s.Mul != 0 {
			slotTime *= float64(s.Mul)
		}
		if s.Div != 0 {
			slotTime /= float64(s.Div)
		}
		edge += slotTime
		rounded := uint64(edge + 0.5)
		b.edges[idx] = rounded
		b.widths[idx] = rounded - prev
		prev = rounded
	}
}

// SamplesPerBit reports the rounded nominal bit period in samples.
func (b *Builder) SamplesPerBit() uint64 {
	return b.samplesPerBit
}

// Clear starts a new frame sequence.
func (b *Builder) Clear() {
	b.top = 0
}

// Append captures an explicit level pattern into the next free slot.
func (b *Builder) Append(levels Levels) error {
	if b.top >= b.maxSlots {
		return ErrBudget
	}
	b.levels[b.top] = levels
	b.top++
	return nil
}

// AppendState captures the staged SampleState levels into the next
// free slot.
func (b *Builder) AppendState() error {
	return b.Append(b.State.Current())
}

// Slots reports the filled slot count of the current frame.
func (b *Builder) Slots() int {
	return b.top
}

// Slot returns one filled slot's captured levels and sample width.
func (b *Builder) Slot(idx int) (Levels, uint64) {
	return b.levels[idx], b.widths[idx]
}
