package proto

import (
	"fmt"
	"strconv"
	"strings"
)

// Input selects how the payload part of the input stream is read.
type Input int

const (
	// InputUnspec defers the choice to the file header or the
	// protocol's default.
	InputUnspec Input = iota
	// InputBytes treats every payload byte as one protocol value.
	InputBytes
	// InputText reads line oriented text with values and directives.
	InputText
)

var inputNames = []string{
	InputUnspec: "from-file",
	InputBytes:  "raw-bytes",
	InputText:   "text-format",
}

func (i Input) String() string {
	if int(i) < len(inputNames) {
		return inputNames[i]
	}
	return fmt.Sprintf("Input(%d)", int(i))
}

// ParseInput maps an input mode name to its value.
func ParseInput(text string) (Input, error) {
	for idx, name := range inputNames {
		if text == name {
			return Input(idx), nil
		}
	}
	return InputUnspec, fmt.Errorf("%w: unknown input mode %q", ErrArgument, text)
}

// ParseInputBool maps a boolean-ish header value ("yes", "false", "1")
// to an input mode, the way the textinput= header directive is written.
func ParseInputBool(text string) (Input, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "true", "on", "1":
		return InputText, nil
	case "no", "false", "off", "0":
		return InputBytes, nil
	}
	return InputUnspec, fmt.Errorf("%w: invalid boolean %q", ErrData, text)
}

// Options is one layer of session configuration. Zero values mean
// "not specified" and fall through to the next precedence level.
type Options struct {
	Samplerate  uint64
	Bitrate     uint64
	Protocol    string
	FrameFormat string
	Input       Input
}

// merge applies strict per-field precedence: receiver fields win over
// the lower layer's fields.
func (o Options) merge(lower Options) Options {
	out := lower
	if o.Samplerate != 0 {
		out.Samplerate = o.Samplerate
	}
	if o.Bitrate != 0 {
		out.Bitrate = o.Bitrate
	}
	if o.Protocol != "" {
		out.Protocol = o.Protocol
	}
	if o.FrameFormat != "" {
		out.FrameFormat = o.FrameFormat
	}
	if o.Input != InputUnspec {
		out.Input = o.Input
	}
	return out
}

// applyDefaults fills remaining unspecified fields from a protocol's
// built-in defaults.
func (o Options) applyDefaults(desc *Descriptor) Options {
	out := o
	if out.Samplerate == 0 {
		out.Samplerate = desc.Defaults.Samplerate
	}
	if out.Bitrate == 0 {
		out.Bitrate = desc.Defaults.Bitrate
	}
	if out.Protocol == "" {
		out.Protocol = desc.Name
	}
	if out.FrameFormat == "" {
		out.FrameFormat = desc.Defaults.FrameFormat
	}
	if out.Input == InputUnspec {
		out.Input = desc.Defaults.Input
	}
	return out
}

// ParseSizeText converts a rate value with an optional k/m/g suffix
// (case insensitive) into its plain integer form.
func ParseSizeText(text string) (uint64, error) {
	text = strings.TrimSpace(strings.ToLower(text))
	mult := uint64(1)
	switch {
	case strings.HasSuffix(text, "k"):
		mult = 1000
		text = text[:len(text)-1]
	case strings.HasSuffix(text, "m"):
		mult = 1000 * 1000
		text = text[:len(text)-1]
	case strings.HasSuffix(text, "g"):
		mult = 1000 * 1000 * 1000
		text = text[:len(text)-1]
	}
	value, err := strconv.ParseUint(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid rate %q", ErrData, text)
	}
	return value * mult, nil
}
