package proto

import (
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/frameformat"
	"github.com/OpenTraceLab/OpenTraceWave/pkg/wave"
)

// The I2C waveform uses six quanta per bit time so SCL and SDA can
// transition cleanly regardless of what prior communication left on
// the lines. The longest waveform is a byte: eight data bits plus the
// ACK slot, with a quiet bit time on both sides. START and STOP fit
// into the same storage while no byte occupies it.
const (
	i2cPinScl = 0
	i2cPinSda = 1

	i2cBitTimeSlots  = 1 + 8 + 1 + 1
	i2cBitTimeQuanta = 6
	i2cIdleSlots     = 2
	i2cMaxSlots      = i2cBitTimeQuanta*i2cBitTimeSlots + i2cIdleSlots
)

var (
	i2cMaskScl = wave.Bit(i2cPinScl)
	i2cMaskSda = wave.Bit(i2cPinSda)
)

var i2cDescriptor = &Descriptor{
	Name: "i2c",
	Defaults: Defaults{
		Samplerate:  10000000,
		Bitrate:     400000,
		FrameFormat: "addr-7bit",
		Input:       InputText,
	},
	Channels: []string{"scl", "sda"},
	MaxSlots: i2cMaxSlots,
	NewHandler: func() Handler {
		return &i2cHandler{}
	},
}

type i2cHandler struct {
	opts      *frameformat.I2C
	ackRemain uint64
}

func (h *i2cHandler) CheckOpts(c *Context) (int, error) {
	opts, err := frameformat.ParseI2C(c.FrameFormat)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrData, err)
	}
	h.opts = opts

	total := i2cBitTimeSlots * i2cBitTimeQuanta
	total += i2cIdleSlots
	c.Log().Debug().Int("slots", total).Msg("i2c frame length")
	return total, nil
}

func (h *i2cHandler) ConfigFrame(c *Context) error {
	h.ackRemain = 0

	// Every slot is one quantum of a bit time. Edges occupy exactly
	// one quantum, then levels are kept.
	b := c.Builder()
	for idx := 0; idx < b.MaxSlots(); idx++ {
		b.SetScale(idx, 0, i2cBitTimeQuanta)
	}

	// Idle bus: SCL and SDA both high.
	b.State.Preset(i2cMaskScl | i2cMaskSda)
	return nil
}

// ackStart arms automatic ACK generation for a number of data bytes.
func (h *i2cHandler) ackStart(count uint64) {
	h.ackRemain = count
}

// ackAvail consumes one automatic ACK credit when available.
func (h *i2cHandler) ackAvail() bool {
	if h.ackRemain == 0 {
		return false
	}
	h.ackRemain--
	return true
}

// writeNothing keeps the current levels for one full bit time.
func (h *i2cHandler) writeNothing(c *Context) error {
	b := c.Builder()
	for reps := i2cBitTimeQuanta; reps > 0; reps-- {
		if err := b.AppendState(); err != nil {
			return err
		}
	}
	return nil
}

// writeStart draws a START symbol: falling SDA while SCL is high. The
// sequencing is conservative enough to double as a repeated START, and
// it leaves SCL low the way a data bit expects to find it.
func (h *i2cHandler) writeStart(c *Context) error {
	b := c.Builder()

	b.State.Raise(i2cMaskSda)
	if err := b.AppendState(); err != nil {
		return err
	}
	b.State.Raise(i2cMaskScl)
	if err := b.AppendState(); err != nil {
		return err
	}
	if err := b.AppendState(); err != nil {
		return err
	}
	b.State.Clear(i2cMaskSda)
	if err := b.AppendState(); err != nil {
		return err
	}
	if err := b.AppendState(); err != nil {
		return err
	}
	b.State.Clear(i2cMaskScl)
	return b.AppendState()
}

// writeStop draws a STOP symbol: rising SDA while SCL is high.
func (h *i2cHandler) writeStop(c *Context) error {
	b := c.Builder()

	b.State.Clear(i2cMaskScl)
	if err := b.AppendState(); err != nil {
		return err
	}
	b.State.Clear(i2cMaskSda)
	if err := b.AppendState(); err != nil {
		return err
	}
	b.State.Raise(i2cMaskScl)
	if err := b.AppendState(); err != nil {
		return err
	}
	if err := b.AppendState(); err != nil {
		return err
	}
	b.State.Raise(i2cMaskSda)
	if err := b.AppendState(); err != nil {
		return err
	}
	return b.AppendState()
}

// writeBit draws one data bit. SDA changes while SCL is low and is
// kept while SCL is high.
func (h *i2cHandler) writeBit(c *Context, value bool) error {
	b := c.Builder()

	b.State.Clear(i2cMaskScl)
	if err := b.AppendState(); err != nil {
		return err
	}
	b.State.SetClr(value, i2cMaskSda)
	if err := b.AppendState(); err != nil {
		return err
	}
	b.State.Raise(i2cMaskScl)
	if err := b.AppendState(); err != nil {
		return err
	}
	if err := b.AppendState(); err != nil {
		return err
	}
	if err := b.AppendState(); err != nil {
		return err
	}
	b.State.Clear(i2cMaskScl)
	return b.AppendState()
}

// writeByte draws eight MSB first data bits plus the ACK/NAK slot,
// with a quiet bit time on both sides. ACK drives SDA low; NAK is
// recessive, high.
func (h *i2cHandler) writeByte(c *Context, value uint8, ack bool) error {
	if err := h.writeNothing(c); err != nil {
		return err
	}

	for mask := uint8(0x80); mask != 0; mask >>= 1 {
		if err := h.writeBit(c, value&mask != 0); err != nil {
			return err
		}
	}

	if err := h.writeBit(c, !ack); err != nil {
		return err
	}

	return h.writeNothing(c)
}

// sendAddress emits a slave address, one byte for 7 bit addressing or
// two bytes for 10 bit. Each address byte consumes one ACK credit.
func (h *i2cHandler) sendAddress(c *Context, addr uint16, read bool) error {
	addr &= 0x3ff
	rwBit := uint8(0)
	if read {
		rwBit = 1
	}

	b := c.Builder()
	if !h.opts.Addr10Bit {
		addrByte := uint8(addr&0x7f)<<1 | rwBit
		b.Clear()
		if err := h.writeByte(c, addrByte, h.ackAvail()); err != nil {
			return err
		}
		return c.sendFrame()
	}

	// First byte: 11110 prefix, the two topmost address bits, R/W.
	addrByte := uint8(addr>>8)<<1 | 0xf0 | rwBit
	b.Clear()
	if err := h.writeByte(c, addrByte, h.ackAvail()); err != nil {
		return err
	}
	if err := c.sendFrame(); err != nil {
		return err
	}

	// Second byte: the lower eight address bits.
	b.Clear()
	if err := h.writeByte(c, uint8(addr), h.ackAvail()); err != nil {
		return err
	}
	return c.sendFrame()
}

// writeCenteredSymbol frames a START or STOP symbol with quiet half
// frames on both sides, which helps interactive exploration of the
// generated waveform.
func (h *i2cHandler) writeCenteredSymbol(c *Context, symbol func(*Context) error) error {
	c.Builder().Clear()
	for bits := i2cBitTimeSlots / 2; bits > 0; bits-- {
		if err := h.writeNothing(c); err != nil {
			return err
		}
	}
	if err := symbol(c); err != nil {
		return err
	}
	for bits := i2cBitTimeSlots / 2; bits > 0; bits-- {
		if err := h.writeNothing(c); err != nil {
			return err
		}
	}
	return c.sendFrame()
}

func (h *i2cHandler) ProcPseudo(c *Context, word string) error {
	key, arg, hasArg := strings.Cut(word, "=")
	switch {
	case key == "start" && !hasArg:
		return h.writeCenteredSymbol(c, h.writeStart)
	case key == "repeat-start" && !hasArg:
		// A START without a preceding STOP; the conservative START
		// sequencing covers both.
		return h.writeCenteredSymbol(c, h.writeStart)
	case key == "stop" && !hasArg:
		return h.writeCenteredSymbol(c, h.writeStop)
	case key == "addr-write" && hasArg:
		v, err := parseRadixValue(arg, 0, 10)
		if err != nil {
			return err
		}
		return h.sendAddress(c, uint16(v), false)
	case key == "addr-read" && hasArg:
		v, err := parseRadixValue(arg, 0, 10)
		if err != nil {
			return err
		}
		return h.sendAddress(c, uint16(v), true)
	case key == "ack-next" && hasArg:
		v, err := parseRadixValue(arg, 0, 64)
		if err != nil {
			return err
		}
		h.ackStart(v)
		return nil
	case key == "ack-next" && !hasArg:
		h.ackStart(1)
		return nil
	}
	return fmt.Errorf("%w: unknown i2c directive %q", ErrData, word)
}

func (h *i2cHandler) ProcValue(c *Context, value uint32) (Status, error) {
	withAck := h.ackAvail()

	c.Builder().Clear()
	if err := h.writeByte(c, uint8(value), withAck); err != nil {
		return FrameReady, err
	}
	return FrameReady, nil
}

func (h *i2cHandler) IdleCapture(c *Context) (uint64, wave.Levels) {
	// One byte's worth of bit times at idle level.
	return i2cBitTimeSlots, c.Builder().State.Idle()
}

func (h *i2cHandler) IdleInterframe(c *Context) (uint64, wave.Levels) {
	// The quiet bit times around regular bytes already separate
	// frames sufficiently.
	return 0, c.Builder().State.Current()
}
