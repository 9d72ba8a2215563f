package cmd

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/proto"
)

type fileConfig struct {
	Samplerate  string `toml:"samplerate"`
	Bitrate     string `toml:"bitrate"`
	Protocol    string `toml:"protocol"`
	FrameFormat string `toml:"frameformat"`
	TextInput   string `toml:"textinput"`
}

// loadConfigOptions reads generation defaults from a TOML file. Rates
// accept size suffixes (k/m/g) like the command line flags do.
func loadConfigOptions(path string) (proto.Options, error) {
	var opts proto.Options
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return proto.Options{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("samplerate") {
		rate, err := proto.ParseSizeText(strings.TrimSpace(raw.Samplerate))
		if err != nil {
			return proto.Options{}, fmt.Errorf("config samplerate: %w", err)
		}
		opts.Samplerate = rate
	}
	if meta.IsDefined("bitrate") {
		rate, err := proto.ParseSizeText(strings.TrimSpace(raw.Bitrate))
		if err != nil {
			return proto.Options{}, fmt.Errorf("config bitrate: %w", err)
		}
		opts.Bitrate = rate
	}
	if meta.IsDefined("protocol") {
		opts.Protocol = strings.TrimSpace(raw.Protocol)
	}
	if meta.IsDefined("frameformat") {
		opts.FrameFormat = strings.TrimSpace(raw.FrameFormat)
	}
	if meta.IsDefined("textinput") {
		input, err := proto.ParseInput(strings.TrimSpace(raw.TextInput))
		if err != nil {
			return proto.Options{}, fmt.Errorf("config textinput: %w", err)
		}
		opts.Input = input
	}

	return opts, nil
}
