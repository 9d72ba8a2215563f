package proto

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/frameformat"
	"github.com/OpenTraceLab/OpenTraceWave/pkg/wave"
)

// The UART waveform uses a single trace. Reserved space covers the
// longest useful frame plus a few idle bit times; the extra idle slots
// also host the BREAK and IDLE special symbols.
const (
	uartPinRxTx = 0

	uartIdleBits = 2
	uartMaxSlots = 1 + frameformat.UARTMaxDataBits + 1 +
		frameformat.UARTMaxStopBits + uartIdleBits
)

var uartMaskRxTx = wave.Bit(uartPinRxTx)

var uartDescriptor = &Descriptor{
	Name: "uart",
	Defaults: Defaults{
		Samplerate:  1000000,
		Bitrate:     115200,
		FrameFormat: "8n1",
		Input:       InputBytes,
	},
	Channels: []string{"rxtx"},
	MaxSlots: uartMaxSlots,
	NewHandler: func() Handler {
		return &uartHandler{}
	},
}

type uartHandler struct {
	opts *frameformat.UART
}

func (h *uartHandler) CheckOpts(c *Context) (int, error) {
	opts, err := frameformat.ParseUART(c.FrameFormat)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrData, err)
	}
	h.opts = opts

	// Total bit times of the frame: unconditional START, data bits,
	// optional parity, stop bits, plus trailing idle padding.
	total := 1
	total += opts.DataBits
	if opts.Parity != frameformat.ParityNone {
		total++
	}
	total += opts.StopBits
	if opts.HalfStop {
		total++
	}
	total += uartIdleBits
	c.Log().Debug().Int("slots", total).Msg("uart frame length")
	return total, nil
}

func (h *uartHandler) ConfigFrame(c *Context) error {
	b := c.Builder()

	// Walk past START, DATA, PARITY and full STOP bits. The trailing
	// half stop bit gets half width; the idle padding after the frame
	// is stretched, the last slot widest so special symbols separate
	// well from subsequent data.
	idx := 1
	idx += h.opts.DataBits
	if h.opts.Parity != frameformat.ParityNone {
		idx++
	}
	idx += h.opts.StopBits
	if h.opts.HalfStop {
		b.SetScale(idx, 0, 2)
		idx++
	}
	b.SetScale(idx, 2, 0)
	idx++
	b.SetScale(idx, 4, 0)

	// Idle is high unless the polarity is inverted.
	var idle wave.Levels
	if !h.opts.Inverted {
		idle |= uartMaskRxTx
	}
	b.State.Preset(idle)
	return nil
}

// writeSpecial fills the whole frame with one level, which simulates
// the BREAK (low) and IDLE (high) line conditions.
func (h *uartHandler) writeSpecial(c *Context, level bool) error {
	b := c.Builder()
	b.Clear()

	if h.opts.Inverted {
		level = !level
	}
	b.State.SetClr(level, uartMaskRxTx)
	bits := 1
	bits += h.opts.DataBits
	if h.opts.Parity != frameformat.ParityNone {
		bits++
	}
	bits += h.opts.StopBits
	if h.opts.HalfStop {
		bits++
	}
	for ; bits > 0; bits-- {
		if err := b.AppendState(); err != nil {
			return err
		}
	}

	// Force a few more idle bit times. Does not affect a requested
	// IDLE symbol, but separates consecutive BREAK symbols from each
	// other and from subsequent data bytes.
	b.State.ToIdle()
	for bits = uartIdleBits; bits > 0; bits-- {
		if err := b.AppendState(); err != nil {
			return err
		}
	}
	return nil
}

func (h *uartHandler) ProcPseudo(c *Context, word string) error {
	switch word {
	case "break":
		if err := h.writeSpecial(c, false); err != nil {
			return err
		}
		return c.sendFrame()
	case "idle":
		if err := h.writeSpecial(c, true); err != nil {
			return err
		}
		return c.sendFrame()
	}
	return fmt.Errorf("%w: unknown uart directive %q", ErrData, word)
}

func (h *uartHandler) ProcValue(c *Context, value uint32) (Status, error) {
	b := c.Builder()
	b.Clear()

	// START bit, unconditional, always 0.
	b.State.Clear(uartMaskRxTx)
	if h.opts.Inverted {
		b.State.Toggle(uartMaskRxTx)
	}
	if err := b.AppendState(); err != nil {
		return FrameReady, err
	}

	// DATA bits, LSB first. Track parity unconditionally.
	parity := 0
	for bits := h.opts.DataBits; bits > 0; bits-- {
		dataBit := value&0x01 != 0
		value >>= 1
		if dataBit {
			parity ^= 1
		}
		if h.opts.Inverted {
			dataBit = !dataBit
		}
		b.State.SetClr(dataBit, uartMaskRxTx)
		if err := b.AppendState(); err != nil {
			return FrameReady, err
		}
	}

	// PARITY bit, chosen so the configured parity holds.
	if h.opts.Parity != frameformat.ParityNone {
		var parityBit bool
		switch h.opts.Parity {
		case frameformat.ParityOdd:
			parityBit = parity == 0
		case frameformat.ParityEven:
			parityBit = parity != 0
		}
		if h.opts.Inverted {
			parityBit = !parityBit
		}
		b.State.SetClr(parityBit, uartMaskRxTx)
		if err := b.AppendState(); err != nil {
			return FrameReady, err
		}
	}

	// STOP bits, held at the resting level.
	b.State.Raise(uartMaskRxTx)
	if h.opts.Inverted {
		b.State.Toggle(uartMaskRxTx)
	}
	stopBits := h.opts.StopBits
	if h.opts.HalfStop {
		stopBits++
	}
	for ; stopBits > 0; stopBits-- {
		if err := b.AppendState(); err != nil {
			return FrameReady, err
		}
	}

	// Idle time after the frame, a little shorter than for specials.
	b.State.ToIdle()
	for bits := uartIdleBits - 1; bits > 0; bits-- {
		if err := b.AppendState(); err != nil {
			return FrameReady, err
		}
	}

	return FrameReady, nil
}

func (h *uartHandler) IdleCapture(c *Context) (uint64, wave.Levels) {
	// One frame length of idle level.
	return uint64(c.Builder().MaxSlots()), c.Builder().State.Idle()
}

func (h *uartHandler) IdleInterframe(c *Context) (uint64, wave.Levels) {
	// Regular frame creation already pads between UART frames.
	return 0, c.Builder().State.Idle()
}
