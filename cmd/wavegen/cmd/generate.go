package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/feed"
	"github.com/OpenTraceLab/OpenTraceWave/pkg/proto"
	"github.com/OpenTraceLab/OpenTraceWave/pkg/stream"
)

var (
	genSamplerate  string
	genBitrate     string
	genProtocol    string
	genFrameFormat string
	genTextInput   string
	genOutput      string
	genFormat      string
)

var generateCmd = &cobra.Command{
	Use:   "generate [input-file]",
	Short: "Generate logic traces from protocol data values",
	Long: `Generate synthesizes a multi-channel logic capture from protocol
data values. The input is a protocol data values file (optionally with
the file type magic and a header section), raw data bytes, or text
formatted values with control directives. Without an input file, or
with "-", data is read from stdin.

Command line options override the file header, which overrides the
protocol handler's defaults.

Examples:
  # UART waveform from raw bytes, VCD to stdout
  wavegen generate --protocol uart data.bin

  # SPI text values with directives, explicit rates
  wavegen generate --protocol spi --samplerate 10m --bitrate 1m values.txt

  # Options from a TOML config, textual run output
  wavegen --config wavegen.toml generate --format runs values.protocol`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	user, err := userOptions(cmd)
	if err != nil {
		return err
	}

	input := io.Reader(os.Stdin)
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		input = f
	}

	output := io.Writer(os.Stdout)
	if genOutput != "" && genOutput != "-" {
		f, err := os.Create(genOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	var sink feed.Emitter
	switch genFormat {
	case "vcd":
		sink = feed.NewVCDWriter(output)
	case "runs":
		sink = feed.NewRunWriter(output)
	default:
		return fmt.Errorf("unknown output format %q", genFormat)
	}

	log := sessionLogger()
	im := stream.NewImporter(user, sink, log)
	defer im.Close()
	chunk := make([]byte, 64*1024)
	for {
		n, err := input.Read(chunk)
		if n > 0 {
			if rerr := im.Read(chunk[:n]); rerr != nil {
				return rerr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	return im.End()
}

// userOptions combines the config file defaults with the command line
// flags; explicitly given flags win.
func userOptions(cmd *cobra.Command) (proto.Options, error) {
	var opts proto.Options
	if configPath != "" {
		loaded, err := loadConfigOptions(configPath)
		if err != nil {
			return proto.Options{}, err
		}
		opts = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("samplerate") {
		rate, err := proto.ParseSizeText(genSamplerate)
		if err != nil {
			return proto.Options{}, err
		}
		opts.Samplerate = rate
	}
	if flags.Changed("bitrate") {
		rate, err := proto.ParseSizeText(genBitrate)
		if err != nil {
			return proto.Options{}, err
		}
		opts.Bitrate = rate
	}
	if flags.Changed("protocol") {
		opts.Protocol = genProtocol
	}
	if flags.Changed("frameformat") {
		opts.FrameFormat = genFrameFormat
	}
	if flags.Changed("textinput") {
		input, err := proto.ParseInput(genTextInput)
		if err != nil {
			return proto.Options{}, err
		}
		opts.Input = input
	}
	return opts, nil
}

func init() {
	generateCmd.Flags().StringVar(&genSamplerate, "samplerate", "", "samplerate of the generated traces (k/m/g suffixes)")
	generateCmd.Flags().StringVar(&genBitrate, "bitrate", "", "bitrate of the protocol communication (k/m/g suffixes)")
	generateCmd.Flags().StringVar(&genProtocol, "protocol", "", "protocol to generate waveforms for (uart, spi, i2c)")
	generateCmd.Flags().StringVar(&genFrameFormat, "frameformat", "", "textual description of the protocol frame format")
	generateCmd.Flags().StringVar(&genTextInput, "textinput", "", "input interpretation: from-file, raw-bytes, text-format")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "output file (default stdout)")
	generateCmd.Flags().StringVar(&genFormat, "format", "vcd", "output format: vcd, runs")

	rootCmd.AddCommand(generateCmd)
}
