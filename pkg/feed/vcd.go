package feed

import (
	"bufio"
	"fmt"
	"io"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/wave"
)

// VCDWriter emits the sample stream as a value change dump, one scalar
// variable per logic channel. The timescale is derived from the session
// samplerate so timestamps equal sample numbers.
type VCDWriter struct {
	w        *bufio.Writer
	channels int
	time     uint64
	last     wave.Levels
	haveLast bool
}

// NewVCDWriter creates a VCD emitter writing to w.
func NewVCDWriter(w io.Writer) *VCDWriter {
	return &VCDWriter{w: bufio.NewWriter(w)}
}

// vcdID yields the short identifier code of a channel. Printable ASCII
// starting at '!', which covers far more channels than the eight the
// synthesizer can produce.
func vcdID(ch int) byte {
	return byte('!' + ch)
}

func (v *VCDWriter) Start(channels []string, samplerate uint64) error {
	v.channels = len(channels)

	scale := uint64(1)
	if samplerate > 0 && samplerate <= 1000000000 {
		scale = 1000000000 / samplerate
	}
	fmt.Fprintf(v.w, "$timescale %d ns $end\n", scale)
	fmt.Fprintf(v.w, "$scope module wavegen $end\n")
	for idx, name := range channels {
		fmt.Fprintf(v.w, "$var wire 1 %c %s $end\n", vcdID(idx), name)
	}
	fmt.Fprintf(v.w, "$upscope $end\n")
	fmt.Fprintf(v.w, "$enddefinitions $end\n")
	return nil
}

func (v *VCDWriter) Submit(levels wave.Levels, count uint64) error {
	if count == 0 {
		return nil
	}
	if !v.haveLast || levels != v.last {
		fmt.Fprintf(v.w, "#%d\n", v.time)
		for ch := 0; ch < v.channels; ch++ {
			mask := wave.Bit(ch)
			if v.haveLast && (levels&mask) == (v.last&mask) {
				continue
			}
			bit := byte('0')
			if levels&mask != 0 {
				bit = '1'
			}
			fmt.Fprintf(v.w, "%c%c\n", bit, vcdID(ch))
		}
		v.last = levels
		v.haveLast = true
	}
	v.time += count
	return nil
}

func (v *VCDWriter) End() error {
	fmt.Fprintf(v.w, "#%d\n", v.time)
	return v.w.Flush()
}
