package proto

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/feed"
	"github.com/OpenTraceLab/OpenTraceWave/pkg/wave"
)

// Context is the single mutable object of one import session. It owns
// the resolved options, the chosen handler and its private state, the
// frame builder, and the session feed queue. A Context is exclusively
// owned by one import pass; it is never shared.
type Context struct {
	// Resolved session options, fixed for the Context's lifetime.
	Samplerate  uint64
	Bitrate     uint64
	Protocol    string
	FrameFormat string
	Input       Input

	// Radix is the number base the text reader currently parses
	// values in. Zero selects automatic base detection by prefix.
	Radix int

	desc    *Descriptor
	handler Handler
	builder *wave.Builder
	queue   *feed.Queue
	log     zerolog.Logger
	started bool
	closed  bool
}

// NewContext resolves options with strict user > header > handler
// default precedence, validates them, and prepares frame storage and
// geometry. All validation completes here, before any channel is
// created or sample emitted.
func NewContext(user, header Options, sink feed.Emitter, log zerolog.Logger) (*Context, error) {
	merged := user.merge(header)

	desc, err := Lookup(merged.Protocol)
	if err != nil {
		return nil, err
	}
	merged = merged.applyDefaults(desc)

	if merged.Samplerate == 0 {
		return nil, fmt.Errorf("%w: need a samplerate", ErrArgument)
	}
	if merged.Bitrate == 0 {
		return nil, fmt.Errorf("%w: need a protocol bitrate", ErrArgument)
	}
	if merged.Samplerate < merged.Bitrate {
		return nil, fmt.Errorf("%w: bitrate %d exceeds samplerate %d",
			ErrData, merged.Bitrate, merged.Samplerate)
	}
	if merged.Samplerate/merged.Bitrate < 3 {
		log.Warn().
			Uint64("samplerate", merged.Samplerate).
			Uint64("bitrate", merged.Bitrate).
			Msg("low oversampling, consider a higher samplerate")
	}

	c := &Context{
		Samplerate:  merged.Samplerate,
		Bitrate:     merged.Bitrate,
		Protocol:    desc.Name,
		FrameFormat: merged.FrameFormat,
		Input:       merged.Input,
		desc:        desc,
		handler:     desc.NewHandler(),
		queue:       feed.NewQueue(sink),
		log:         log,
	}
	log.Debug().
		Str("protocol", c.Protocol).
		Uint64("samplerate", c.Samplerate).
		Uint64("bitrate", c.Bitrate).
		Str("frameformat", c.FrameFormat).
		Stringer("input", c.Input).
		Msg("resolved session options")

	slots, err := c.handler.CheckOpts(c)
	if err != nil {
		return nil, err
	}
	if slots > desc.MaxSlots {
		return nil, fmt.Errorf("%w: frame needs %d slots, %s reserves at most %d",
			ErrData, slots, desc.Name, desc.MaxSlots)
	}
	c.builder, err = wave.NewBuilder(slots)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrData, err)
	}
	if err := c.handler.ConfigFrame(c); err != nil {
		return nil, err
	}
	c.builder.AssignWidths(c.Samplerate, c.Bitrate)
	c.log.Debug().
		Int("slots", slots).
		Uint64("samples_per_bit", c.builder.SamplesPerBit()).
		Msg("frame geometry ready")

	return c, nil
}

// Channels reports the handler defined channel list of the session.
func (c *Context) Channels() []string {
	return append([]string(nil), c.desc.Channels...)
}

// Builder exposes the frame builder to the active protocol handler.
func (c *Context) Builder() *wave.Builder {
	return c.builder
}

// Log exposes the session logger.
func (c *Context) Log() *zerolog.Logger {
	return &c.log
}

// Start emits the session open metadata (channel list and samplerate)
// followed by the leading idle padding. It runs exactly once, before
// any sample data.
func (c *Context) Start() error {
	if c.started {
		return nil
	}
	if err := c.queue.Start(c.desc.Channels, c.Samplerate); err != nil {
		return err
	}
	c.started = true
	return c.sendIdleCapture()
}

// ProcessValue feeds one numeric value to the protocol handler and
// flushes the frame when the handler reports completion.
func (c *Context) ProcessValue(value uint32) error {
	status, err := c.handler.ProcValue(c, value)
	if err != nil {
		return err
	}
	if status == NeedMore {
		return nil
	}
	if err := c.sendFrame(); err != nil {
		return err
	}
	return c.sendIdleInterframe()
}

// ProcessPseudo feeds one control directive word to the protocol
// handler.
func (c *Context) ProcessPseudo(word string) error {
	return c.handler.ProcPseudo(c, word)
}

// Finish pads the capture with trailing idle and terminates the
// session feed. Called on the explicit end-of-stream signal.
func (c *Context) Finish() error {
	if !c.started {
		if err := c.Start(); err != nil {
			return err
		}
	}
	if err := c.sendIdleCapture(); err != nil {
		return err
	}
	return c.queue.End()
}

// Close releases the session's buffers. Idempotent; called on both
// normal completion and abort.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.builder = nil
	c.handler = nil
}

// sendFrame emits every filled slot of the current frame as one run of
// its captured levels and precomputed width.
func (c *Context) sendFrame() error {
	for idx := 0; idx < c.builder.Slots(); idx++ {
		levels, width := c.builder.Slot(idx)
		if err := c.queue.Submit(levels, width); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) sendIdleCapture() error {
	bits, levels := c.handler.IdleCapture(c)
	return c.queue.Submit(levels, bits*c.builder.SamplesPerBit())
}

func (c *Context) sendIdleInterframe() error {
	samples, levels := c.handler.IdleInterframe(c)
	return c.queue.Submit(levels, samples)
}
