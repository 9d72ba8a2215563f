// Package stream turns an arbitrarily chunked byte stream of protocol
// data values into synthesized logic waveforms. It detects the file
// type magic and an optional header section, resolves session options,
// and feeds payload values and control directives to the protocol
// handlers. No chunk boundary alignment is ever assumed, markers that
// get split across chunks are detected once enough data arrived.
package stream

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/feed"
	"github.com/OpenTraceLab/OpenTraceWave/pkg/proto"
)

// importState tracks the reader's progress through the input file's
// structure. The options resolve exactly once, on the transition to
// stateStreaming, before any channel or sample is announced.
type importState int

const (
	stateInit importState = iota
	stateScanningMagic
	stateScanningHeader
	stateStreaming
	stateDone
)

// Importer consumes input chunks and drives one import session. Not
// safe for concurrent use; one Importer serves one logical pass over
// the input, Reset prepares it for another pass.
type Importer struct {
	user proto.Options
	sink feed.Emitter
	log  zerolog.Logger

	state    importState
	buf      []byte
	sawBOM   bool
	hasMagic bool
	header   proto.Options

	ctx *proto.Context

	// Channel identity must not change across re-reads of modified
	// input. The list survives Reset for the comparison.
	prevChannels []string
}

// NewImporter creates an import session with the user provided option
// overrides. The sink receives the generated sample stream.
func NewImporter(user proto.Options, sink feed.Emitter, log zerolog.Logger) *Importer {
	return &Importer{
		user:  user,
		sink:  sink,
		log:   log,
		state: stateInit,
	}
}

// Detect reports whether the data begins with the file type magic,
// which identifies protocol data values files. Used for input format
// matching on a buffered peek of the file's start.
func Detect(data []byte) bool {
	buf, _ := stripBOM(data)
	_, state := markerAtStart(buf, magicFileType)
	return state == presencePresent
}

// Read consumes another chunk of input. Data that cannot be processed
// yet (a split marker, a partial line, an incomplete frame's values)
// is retained until more input or the end-of-stream signal arrives.
func (im *Importer) Read(chunk []byte) error {
	if im.state == stateDone {
		return fmt.Errorf("%w: read after end of stream", proto.ErrArgument)
	}
	im.buf = append(im.buf, chunk...)
	return im.advance(false)
}

// End signals end-of-stream. Any deferred detection resolves, buffered
// payload is flushed, the trailing idle pad and the session end event
// are sent.
func (im *Importer) End() error {
	if im.state == stateDone {
		return nil
	}
	if err := im.advance(true); err != nil {
		return err
	}

	if im.state != stateStreaming {
		// The header section started but never completed, nothing
		// was emitted. The import ends empty.
		im.log.Warn().Msg("input ended inside the file header")
		im.state = stateDone
		return nil
	}

	err := im.ctx.Finish()
	im.state = stateDone
	return err
}

// Close releases the session's resources and refuses further input.
// Idempotent; called on both normal completion and abort.
func (im *Importer) Close() {
	if im.ctx != nil {
		im.ctx.Close()
		im.ctx = nil
	}
	im.state = stateDone
	im.buf = nil
}

// Reset prepares the Importer for a re-read of the (possibly updated)
// input. User options and the previously created channel list are
// preserved, everything else restarts from scratch.
func (im *Importer) Reset() {
	if im.ctx != nil {
		im.ctx.Close()
		im.ctx = nil
	}
	im.state = stateInit
	im.buf = nil
	im.sawBOM = false
	im.hasMagic = false
	im.header = proto.Options{}
}

// advance runs the state machine as far as the buffered input allows.
func (im *Importer) advance(eof bool) error {
	if im.state == stateInit {
		im.state = stateScanningMagic
	}

	if im.state == stateScanningMagic {
		done, err := im.scanMagic(eof)
		if err != nil || !done {
			return err
		}
	}

	if im.state == stateScanningHeader {
		done, err := im.scanHeader(eof)
		if err != nil || !done {
			return err
		}
	}

	if im.state == stateStreaming {
		return im.processPayload(eof)
	}
	return nil
}

// scanMagic strips the BOM and decides on the file type magic. Both
// detections defer while the buffer holds a genuine prefix of the
// pattern; end-of-stream resolves a deferred decision to "absent".
func (im *Importer) scanMagic(eof bool) (bool, error) {
	if !im.sawBOM {
		buf, state := stripBOM(im.buf)
		if state == presenceUndecided && !eof {
			return false, nil
		}
		im.buf = buf
		im.sawBOM = true
	}

	after, state := markerAtStart(im.buf, magicFileType)
	if state == presenceUndecided && !eof {
		return false, nil
	}
	im.hasMagic = state == presencePresent
	if im.hasMagic {
		im.log.Debug().Int("consumed", after).Msg("file type magic found")
		im.buf = im.buf[after:]
		im.state = stateScanningHeader
		return true, nil
	}

	// Without the magic there is no header either; everything is
	// payload, with options from user specs and handler defaults.
	im.state = stateScanningHeader
	return true, nil
}

// scanHeader looks for the optional header section and extracts its
// options, then resolves the session configuration.
func (im *Importer) scanHeader(eof bool) (bool, error) {
	if im.hasMagic {
		_, startState := markerAtStart(im.buf, textHeadStart)
		if startState == presenceUndecided && !eof {
			return false, nil
		}
		if startState == presencePresent {
			after, endState := markerAnywhere(im.buf, textHeadEnd)
			if endState != presencePresent {
				// Started but not complete: need more data. At
				// end-of-stream the caller reports the defect.
				return false, nil
			}
			header, err := parseHeader(im.buf[:after])
			if err != nil {
				return false, err
			}
			im.header = header
			im.log.Debug().Int("consumed", after).Msg("file header processed")
			im.buf = im.buf[after:]
		}
	}

	if err := im.resolveOptions(); err != nil {
		return false, err
	}
	im.state = stateStreaming
	return true, nil
}

// resolveOptions merges user, header and default options, validates
// them, and checks channel identity against a previous pass.
func (im *Importer) resolveOptions() error {
	ctx, err := proto.NewContext(im.user, im.header, im.sink, im.log)
	if err != nil {
		return err
	}

	channels := ctx.Channels()
	if im.prevChannels != nil && !slices.Equal(im.prevChannels, channels) {
		ctx.Close()
		return fmt.Errorf("%w: channel list changed on re-read (%v -> %v)",
			proto.ErrChannelMismatch, im.prevChannels, channels)
	}
	im.prevChannels = channels

	im.ctx = ctx
	return nil
}

// processPayload feeds buffered payload to the protocol handler. The
// session feed opens on first call, before any sample data.
func (im *Importer) processPayload(eof bool) error {
	if err := im.ctx.Start(); err != nil {
		return err
	}

	// Force line termination at end-of-stream for text input, which
	// tolerates generators that leave the last line unterminated.
	// Binary input is unaffected.
	if eof && im.ctx.Input == proto.InputText {
		im.buf = append(im.buf, '\n')
	}

	switch im.ctx.Input {
	case proto.InputText:
		for {
			line, consumed := nextLine(im.buf)
			if consumed == 0 {
				break
			}
			im.buf = im.buf[consumed:]
			if line == "" {
				continue
			}
			if err := processTextLine(im.ctx, line); err != nil {
				return err
			}
		}
	default:
		// Every input byte is one protocol value.
		for _, b := range im.buf {
			if err := im.ctx.ProcessValue(uint32(b)); err != nil {
				return err
			}
		}
		im.buf = im.buf[:0]
	}

	if eof && len(im.buf) > 0 {
		im.log.Warn().Int("bytes", len(im.buf)).
			Msg("unprocessed input data remains")
	}
	return nil
}
