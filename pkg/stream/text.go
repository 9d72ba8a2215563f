package stream

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/proto"
)

// Pseudo comment prefixes in text mode payload. Reader level
// directives configure the text conversion itself, protocol level
// directives are dispatched to the active handler.
const (
	textInputPrefix = "textinput:"
	textInputRadix  = "radix="
)

// nextLine yields the first complete text line of the buffer and the
// byte count to discard, including the terminator. A consumed count
// of zero means no complete line is buffered yet. Carriage returns
// and surrounding whitespace are stripped from the returned line.
func nextLine(buf []byte) (string, int) {
	at := bytes.IndexByte(buf, '\n')
	if at < 0 {
		return "", 0
	}
	line := strings.TrimSpace(string(buf[:at]))
	return line, at + 1
}

// splitWords tokenizes a payload line. Comma and semicolon separators
// are accepted for user convenience and count as whitespace.
func splitWords(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		switch r {
		case ' ', '\t', '\v', '\f', '\r', ',', ';':
			return true
		}
		return false
	})
}

// processPseudoTextInput handles reader level pseudo comments, which
// currently configure the numeric radix of subsequent payload values.
func processPseudoTextInput(c *proto.Context, line string) error {
	for _, word := range splitWords(line) {
		text, ok := strings.CutPrefix(word, textInputRadix)
		if !ok {
			return fmt.Errorf("%w: unknown textinput directive %q",
				proto.ErrData, word)
		}
		base, err := strconv.ParseUint(text, 10, 8)
		if err != nil {
			return fmt.Errorf("%w: invalid radix %q", proto.ErrData, text)
		}
		c.Radix = int(base)
	}
	return nil
}

// processTextLine handles one line of text mode payload: comments and
// pseudo comments, or whitespace separated numeric values.
func processTextLine(c *proto.Context, line string) error {
	if rest, ok := strings.CutPrefix(line, commentLeader); ok {
		rest = strings.TrimSpace(rest)
		if text, ok := strings.CutPrefix(rest, textInputPrefix); ok {
			return processPseudoTextInput(c, strings.TrimSpace(text))
		}
		if text, ok := strings.CutPrefix(rest, c.Protocol+":"); ok {
			for _, word := range splitWords(strings.TrimSpace(text)) {
				if err := c.ProcessPseudo(word); err != nil {
					return err
				}
			}
			return nil
		}
		// Any other comment is discarded.
		return nil
	}

	// Non-comment lines carry protocol values in the configured
	// radix. Trailing garbage after a number aborts the import,
	// silently dropping a token could desynchronize value pairing.
	for _, word := range splitWords(line) {
		value, err := strconv.ParseUint(word, c.Radix, 32)
		if err != nil {
			return fmt.Errorf("%w: invalid value %q", proto.ErrData, word)
		}
		if err := c.ProcessValue(uint32(value)); err != nil {
			return err
		}
	}
	return nil
}
