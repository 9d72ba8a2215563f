// Package proto implements the protocol handlers that turn plain data
// values and control directives into byte exact logic waveforms. The
// package owns the per-session Context, the option resolution rules,
// and the static registry of handler descriptors for the supported
// protocols (UART, SPI, I2C).
package proto

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/wave"
)

var (
	// ErrArgument marks invalid session configuration, detected before
	// any channel is created or sample emitted.
	ErrArgument = errors.New("invalid argument")

	// ErrData marks invalid input stream content. Data errors abort the
	// whole import; partial waveforms are never emitted.
	ErrData = errors.New("invalid data")

	// ErrChannelMismatch marks a channel list that changed across a
	// re-read of the input. The caller must start a new session.
	ErrChannelMismatch = errors.New("channel list changed across re-read")
)

// Status is a protocol handler's verdict after consuming one value.
type Status int

const (
	// FrameReady signals that a complete frame was built and can be
	// flushed to the session feed.
	FrameReady Status = iota
	// NeedMore signals that the handler retained state and awaits
	// further values before a frame completes.
	NeedMore
)

// Handler is the capability interface every protocol implements. One
// handler instance is created per session and carries the protocol's
// private runtime state.
type Handler interface {
	// CheckOpts parses the resolved frame format text, stores the
	// protocol specific options, and returns the frame's slot count.
	CheckOpts(c *Context) (int, error)

	// ConfigFrame assigns non-uniform slot scales on the Context's
	// builder and seeds the idle sample levels.
	ConfigFrame(c *Context) error

	// ProcPseudo interprets one text mode control directive word.
	ProcPseudo(c *Context, word string) error

	// ProcValue consumes one numeric value and builds waveform slots.
	ProcValue(c *Context, value uint32) (Status, error)

	// IdleCapture reports the bit count and levels to pad the capture
	// with before the first and after the last frame.
	IdleCapture(c *Context) (bits uint64, levels wave.Levels)

	// IdleInterframe reports the sample count and levels to insert
	// between frames.
	IdleInterframe(c *Context) (samples uint64, levels wave.Levels)
}

// Defaults holds a protocol's built-in option values. They take effect
// for every field that neither user options nor the file header set.
type Defaults struct {
	Samplerate  uint64
	Bitrate     uint64
	FrameFormat string
	Input       Input
}

// Descriptor describes one registered protocol. Descriptors are
// immutable and compiled in; all mutable state lives in the Context
// and the per-session Handler.
type Descriptor struct {
	Name       string
	Defaults   Defaults
	Channels   []string
	MaxSlots   int
	NewHandler func() Handler
}

// The handler registry. The first entry is the default protocol and
// takes effect when no protocol name is given anywhere.
var registry = []*Descriptor{
	uartDescriptor,
	spiDescriptor,
	i2cDescriptor,
}

// Handlers returns the registered protocol descriptors in registration
// order.
func Handlers() []*Descriptor {
	return append([]*Descriptor(nil), registry...)
}

// Lookup finds a protocol descriptor by name. An empty name selects
// the default protocol.
func Lookup(name string) (*Descriptor, error) {
	if name == "" {
		return registry[0], nil
	}
	for _, desc := range registry {
		if desc.Name == name {
			return desc, nil
		}
	}
	return nil, fmt.Errorf("%w: unsupported protocol %q", ErrData, name)
}
