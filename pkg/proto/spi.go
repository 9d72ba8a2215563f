package proto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/frameformat"
	"github.com/OpenTraceLab/OpenTraceWave/pkg/wave"
)

// The SPI waveform reserves bit slots around the byte transmission so
// chip select changes have space of their own, and uses two samples
// per bit time for the positive and negative clock phase.
const (
	spiPinSck = iota
	spiPinMiso
	spiPinMosi
	spiPinCs

	spiMaxSlots = 2 + 2*frameformat.SPIMaxDataBits + 3
)

var (
	spiMaskSck  = wave.Bit(spiPinSck)
	spiMaskMiso = wave.Bit(spiPinMiso)
	spiMaskMosi = wave.Bit(spiPinMosi)
	spiMaskCs   = wave.Bit(spiPinCs)
)

var spiDescriptor = &Descriptor{
	Name: "spi",
	Defaults: Defaults{
		Samplerate:  10000000,
		Bitrate:     1000000,
		FrameFormat: "cs-low,bits=8,mode=0,msb-first",
		Input:       InputText,
	},
	Channels: []string{"sck", "miso", "mosi", "cs"},
	MaxSlots: spiMaxSlots,
	NewHandler: func() Handler {
		return &spiHandler{}
	},
}

type spiHandler struct {
	opts *frameformat.SPI

	needsMosi, hasMosi bool
	needsMiso, hasMiso bool
	mosiFirst          bool
	csActive           bool
	autoCsRemain       uint64
	mosiByte, misoByte uint8
	mosiFixed          uint8
	mosiIsFixed        bool
	misoFixed          uint8
	misoIsFixed        bool
}

func (h *spiHandler) CheckOpts(c *Context) (int, error) {
	opts, err := frameformat.ParseSPI(c.FrameFormat)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrData, err)
	}
	h.opts = opts

	// Two lead-in slots, two clock half-periods per data bit, then
	// slack for CS control and visual byte separation.
	total := 2
	total += 2 * opts.DataBits
	total += 3
	c.Log().Debug().Int("slots", total).Msg("spi frame length")
	return total, nil
}

func (h *spiHandler) ConfigFrame(c *Context) error {
	b := c.Builder()

	// Half width for the data bit slots, full width for the CS
	// decoration, and a long trailing slot for inter-frame gaps.
	idx := 2
	for bit := 0; bit < h.opts.DataBits; bit++ {
		b.SetScale(idx, 0, 2)
		b.SetScale(idx+1, 0, 2)
		idx += 2
	}
	idx += 2
	b.SetScale(idx, uint64(h.opts.DataBits), 0)

	// Seed the runtime state before any data value or directive is
	// seen: bidirectional transfers, MOSI first, CS released. The
	// resulting pin levels become the idle baseline.
	h.discardPrevData()
	h.setDataOrder(true, true, true)
	h.selectControl(c, false)
	b.State.Preset(b.State.Current())
	return nil
}

// discardPrevData forgets data values seen before. Sides that are not
// required for this session count as already satisfied.
func (h *spiHandler) discardPrevData() {
	h.hasMosi = !h.needsMosi
	h.hasMiso = !h.needsMiso
	h.mosiByte = 0
	h.misoByte = 0
}

func (h *spiHandler) bytesComplete() bool {
	return h.hasMosi && h.hasMiso
}

// setDataOrder arranges which sides of the transfer expect values from
// the input stream and in which order they arrive.
func (h *spiHandler) setDataOrder(needsMosi, needsMiso, mosiFirst bool) {
	h.needsMosi = needsMosi
	h.needsMiso = needsMiso
	h.mosiFirst = mosiFirst
	if needsMosi {
		h.mosiIsFixed = false
	}
	if needsMiso {
		h.misoIsFixed = false
	}
	h.discardPrevData()
}

// selectControl applies an explicit CS level change, staging the
// resulting CS and idle SCK pin levels.
func (h *spiHandler) selectControl(c *Context, active bool) {
	h.csActive = active
	h.autoCsRemain = 0

	b := c.Builder()
	b.State.SetClr(h.csLevel(), spiMaskCs)
	b.State.SetClr(h.opts.CPOL, spiMaskSck)
}

// csLevel derives the current CS pin level from polarity and state.
func (h *spiHandler) csLevel() bool {
	if h.csActive {
		return h.opts.CSHigh
	}
	return !h.opts.CSHigh
}

// autoSelect asserts CS and arms the automatic release countdown.
func (h *spiHandler) autoSelect(c *Context, length uint64) {
	h.csActive = true
	h.autoCsRemain = length
	c.Builder().State.SetClr(h.csLevel(), spiMaskCs)
}

// autoSelectEnds decrements the countdown and reports whether CS will
// be released after the current byte. CS stays asserted here; the
// release happens while the byte's waveform is drawn.
func (h *spiHandler) autoSelectEnds() bool {
	if h.autoCsRemain == 0 {
		return false
	}
	h.autoCsRemain--
	return h.autoCsRemain == 0
}

// autoSelectUpdate releases CS after the last data byte was drawn.
func (h *spiHandler) autoSelectUpdate(c *Context) {
	h.csActive = false
	h.autoCsRemain = 0
	c.Builder().State.SetClr(h.csLevel(), spiMaskCs)
}

// writeFramePatterns draws one byte time. Covers dummy bytes within a
// frame (clocked, without data), idle times outside of frames (no
// clock edges), and the optional automatic CS release with its
// inter-frame gap.
func (h *spiHandler) writeFramePatterns(c *Context, idle, csRelease bool) error {
	b := c.Builder()

	if h.mosiIsFixed {
		h.mosiByte = h.mosiFixed
	}
	if h.misoIsFixed {
		h.misoByte = h.misoFixed
	}

	b.Clear()

	// Two slots with idle SCK and the current CS level.
	if err := b.AppendState(); err != nil {
		return err
	}
	if err := b.AppendState(); err != nil {
		return err
	}

	// Two half-periods per data bit. Shift MOSI/MISO in the byte
	// order the format selects, toggle SCK per CPHA. No data and no
	// clock edges while CS is released.
	for bits := h.opts.DataBits; bits > 0; bits-- {
		var mosiBit, misoBit bool
		if h.opts.MSBFirst {
			mosiBit = h.mosiByte&0x80 != 0
			misoBit = h.misoByte&0x80 != 0
			h.mosiByte <<= 1
			h.misoByte <<= 1
		} else {
			mosiBit = h.mosiByte&0x01 != 0
			misoBit = h.misoByte&0x01 != 0
			h.mosiByte >>= 1
			h.misoByte >>= 1
		}
		if h.csActive && !idle {
			b.State.SetClr(mosiBit, spiMaskMosi)
			b.State.SetClr(misoBit, spiMaskMiso)
		}
		if h.opts.CPHA && h.csActive {
			b.State.Toggle(spiMaskSck)
		}
		if err := b.AppendState(); err != nil {
			return err
		}
		// Second half-period. Keep the data bit, toggle SCK.
		if h.csActive {
			b.State.Toggle(spiMaskSck)
		}
		if err := b.AppendState(); err != nil {
			return err
		}
		// Toggle SCK again unless done above due to CPHA.
		if !h.opts.CPHA && h.csActive {
			b.State.Toggle(spiMaskSck)
		}
	}

	// Hold the waveform for another sample period, which also shows
	// the most recent SCK level. On automatic release, update the CS
	// trace and add the long trailing slot as an inter-frame gap.
	if err := b.AppendState(); err != nil {
		return err
	}
	if csRelease {
		h.autoSelectUpdate(c)
	}
	if err := b.AppendState(); err != nil {
		return err
	}
	if csRelease {
		if err := b.AppendState(); err != nil {
			return err
		}
	}
	return nil
}

func (h *spiHandler) ProcPseudo(c *Context, word string) error {
	key, arg, hasArg := strings.Cut(word, "=")
	switch {
	case key == "mosi-only" && !hasArg:
		h.setDataOrder(true, false, true)
		return nil
	case key == "miso-only" && !hasArg:
		h.setDataOrder(false, true, false)
		return nil
	case key == "mosi-then-miso" && !hasArg:
		h.setDataOrder(true, true, true)
		return nil
	case key == "miso-then-mosi" && !hasArg:
		h.setDataOrder(true, true, false)
		return nil
	case key == "mosi-fixed" && hasArg:
		v, err := parseRadixValue(arg, c.Radix, 8)
		if err != nil {
			return err
		}
		h.mosiFixed = uint8(v)
		h.mosiIsFixed = true
		return nil
	case key == "miso-fixed" && hasArg:
		v, err := parseRadixValue(arg, c.Radix, 8)
		if err != nil {
			return err
		}
		h.misoFixed = uint8(v)
		h.misoIsFixed = true
		return nil
	case key == "cs-assert" && !hasArg:
		h.selectControl(c, true)
		return nil
	case key == "cs-release" && !hasArg:
		// Release CS and force an idle byte time so the pin change
		// becomes visible in the waveform.
		h.selectControl(c, false)
		if err := h.writeFramePatterns(c, true, false); err != nil {
			return err
		}
		return c.sendFrame()
	case key == "cs-auto-next" && hasArg:
		v, err := parseRadixValue(arg, 0, 64)
		if err != nil {
			return err
		}
		h.autoSelect(c, v)
		return nil
	case key == "idle" && !hasArg:
		if err := h.writeFramePatterns(c, true, false); err != nil {
			return err
		}
		return c.sendFrame()
	}
	return fmt.Errorf("%w: unknown spi directive %q", ErrData, word)
}

func (h *spiHandler) ProcValue(c *Context, value uint32) (Status, error) {
	// A completed byte time's data is discarded when the next value
	// arrives. The roundtrip from filled to cleared lets the caller
	// emit the previously constructed waveform first.
	if h.bytesComplete() {
		h.discardPrevData()
	}

	// Apply the value to the side whose turn it is.
	taken := false
	if h.mosiFirst && !h.hasMosi {
		h.mosiByte = uint8(value)
		h.hasMosi = true
		taken = true
	}
	if !taken && !h.hasMiso {
		h.misoByte = uint8(value)
		h.hasMiso = true
		taken = true
	}
	if !taken && !h.mosiFirst && !h.hasMosi {
		h.mosiByte = uint8(value)
		h.hasMosi = true
	}

	if !h.bytesComplete() {
		return NeedMore, nil
	}

	// All sides of the byte time were seen (including optional and
	// fixed value sides). Draw the waveform, optionally releasing CS
	// after the configured transfer length.
	autoCsEnd := h.autoSelectEnds()
	if err := h.writeFramePatterns(c, false, autoCsEnd); err != nil {
		return FrameReady, err
	}
	return FrameReady, nil
}

func (h *spiHandler) IdleCapture(c *Context) (uint64, wave.Levels) {
	// One byte time of idle level.
	return uint64(c.Builder().MaxSlots()), c.Builder().State.Idle()
}

func (h *spiHandler) IdleInterframe(c *Context) (uint64, wave.Levels) {
	// Four bit times, holding the most recent pin levels.
	return 4 * c.Builder().SamplesPerBit(), c.Builder().State.Current()
}

// parseRadixValue converts a directive argument in the given base
// (zero selects prefix detection) and bit size.
func parseRadixValue(text string, radix, bits int) (uint64, error) {
	v, err := strconv.ParseUint(text, radix, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", ErrData, text)
	}
	return v, nil
}
