package stream

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/proto"
)

// File structure literals. The magic line identifies the file type,
// the marker pair bounds an optional header section with key=value
// option lines.
const (
	magicFileType = "# -- sigrok protocol data values file --"
	textHeadStart = "# -- sigrok protocol data header start --"
	textHeadEnd   = "# -- sigrok protocol data header end --"

	commentLeader = "#"

	labelSamplerate  = "samplerate="
	labelBitrate     = "bitrate="
	labelProtocol    = "protocol="
	labelFrameFormat = "frameformat="
	labelTextInput   = "textinput="
)

var bomText = []byte{0xef, 0xbb, 0xbf}

// presence is a three-valued detection result. Markers can get split
// across receive chunks, so a detector must be able to defer its
// answer until enough input was buffered.
type presence int

const (
	presenceAbsent presence = iota
	presencePresent
	presenceUndecided
)

// stripBOM removes a UTF byte order mark at the very start of the
// input stream. Returns undecided while the buffered data still is a
// genuine prefix of the BOM pattern.
func stripBOM(buf []byte) ([]byte, presence) {
	if len(buf) < len(bomText) {
		if bytes.HasPrefix(bomText, buf) {
			return buf, presenceUndecided
		}
		return buf, presenceAbsent
	}
	if !bytes.HasPrefix(buf, bomText) {
		return buf, presenceAbsent
	}
	return buf[len(bomText):], presencePresent
}

// markerAtStart checks for a caption line at the start of the buffer.
// The caption may be followed by whitespace before the mandatory line
// feed. Yields the position after the complete text line. Reports
// undecided while the buffered data is a prefix of a potential match,
// so a caption split across chunk boundaries is never misjudged.
func markerAtStart(buf []byte, caption string) (int, presence) {
	want := []byte(caption)
	if len(buf) < len(want) {
		if bytes.HasPrefix(want, buf) {
			return 0, presenceUndecided
		}
		return 0, presenceAbsent
	}
	if !bytes.HasPrefix(buf, want) {
		return 0, presenceAbsent
	}

	// Advance over trailing whitespace up to the line feed.
	pos := len(want)
	for pos < len(buf) && buf[pos] != '\n' && isSpace(buf[pos]) {
		pos++
	}
	if pos == len(buf) {
		return 0, presenceUndecided
	}
	if buf[pos] != '\n' {
		return 0, presenceAbsent
	}
	return pos + 1, presencePresent
}

// markerAnywhere searches the caption in the whole buffer, then wants
// a complete text line. Used for the header end marker, which sits an
// unknown number of option lines after the start marker.
func markerAnywhere(buf []byte, caption string) (int, presence) {
	at := bytes.Index(buf, []byte(caption))
	if at < 0 {
		return 0, presenceUndecided
	}
	after, state := markerAtStart(buf[at:], caption)
	if state != presencePresent {
		// The caption is there but its line end is not yet.
		return 0, presenceUndecided
	}
	return at + after, state
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\v', '\f', '\r':
		return true
	}
	return false
}

// parseHeaderLine applies one header option line. Comment lines get
// ignored, which also covers the section markers themselves. Unknown
// directives abort the import.
func parseHeaderLine(opts *proto.Options, line string) error {
	if strings.HasPrefix(line, commentLeader) {
		return nil
	}

	if text, ok := strings.CutPrefix(line, labelSamplerate); ok {
		rate, err := proto.ParseSizeText(text)
		if err != nil {
			return err
		}
		opts.Samplerate = rate
		return nil
	}
	if text, ok := strings.CutPrefix(line, labelBitrate); ok {
		rate, err := proto.ParseSizeText(text)
		if err != nil {
			return err
		}
		opts.Bitrate = rate
		return nil
	}
	if text, ok := strings.CutPrefix(line, labelProtocol); ok {
		if text == "" {
			return fmt.Errorf("%w: empty protocol name", proto.ErrData)
		}
		opts.Protocol = text
		return nil
	}
	if text, ok := strings.CutPrefix(line, labelFrameFormat); ok {
		if text == "" {
			return fmt.Errorf("%w: empty frame format", proto.ErrData)
		}
		opts.FrameFormat = text
		return nil
	}
	if text, ok := strings.CutPrefix(line, labelTextInput); ok {
		input, err := proto.ParseInputBool(text)
		if err != nil {
			return err
		}
		opts.Input = input
		return nil
	}

	return fmt.Errorf("%w: unsupported header directive %q",
		proto.ErrData, line)
}

// parseHeader extracts file level options from the header section's
// text, which includes the start and end marker lines.
func parseHeader(buf []byte) (proto.Options, error) {
	var opts proto.Options
	for len(buf) > 0 {
		line, consumed := nextLine(buf)
		if consumed == 0 {
			break
		}
		buf = buf[consumed:]
		if line == "" {
			continue
		}
		if err := parseHeaderLine(&opts, line); err != nil {
			return opts, err
		}
	}
	return opts, nil
}
