package feed

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/wave"
)

// RunWriter emits the sample stream as readable text, one line per
// level run: the channel levels as a binary field (leftmost digit is
// the highest channel) and the repeat count. Handy for inspection and
// for golden file comparisons.
type RunWriter struct {
	w        *bufio.Writer
	channels int
}

// NewRunWriter creates a text emitter writing to w.
func NewRunWriter(w io.Writer) *RunWriter {
	return &RunWriter{w: bufio.NewWriter(w)}
}

func (r *RunWriter) Start(channels []string, samplerate uint64) error {
	r.channels = len(channels)
	fmt.Fprintf(r.w, "# channels: %s\n", strings.Join(channels, ","))
	fmt.Fprintf(r.w, "# samplerate: %d\n", samplerate)
	return nil
}

func (r *RunWriter) Submit(levels wave.Levels, count uint64) error {
	if count == 0 {
		return nil
	}
	fmt.Fprintf(r.w, "%0*b %d\n", r.channels, uint8(levels), count)
	return nil
}

func (r *RunWriter) End() error {
	return r.w.Flush()
}
