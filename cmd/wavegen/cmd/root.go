package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "wavegen",
	Short: "OpenTraceWave - protocol data waveform synthesizer",
	Long: `OpenTraceWave (wavegen) generates logic traces from protocol data
values, as if an acquisition device had captured real wire traffic:
  - UART, SPI and I2C protocol waveforms
  - raw byte or text formatted value input, with control directives
  - VCD or textual run output

Examples:
  wavegen generate values.protocol -o capture.vcd
  wavegen generate --protocol uart --frameformat 8e2 data.bin
  wavegen protocols                   # List protocol handlers
  wavegen detect values.protocol      # Check for the file type magic`,
	Version: "0.9.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// sessionLogger builds the console logger the subcommands hand to the
// synthesizer core. Diagnostics go to stderr so generated output can
// go to stdout.
func sessionLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Logger().Level(level)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML file with default generation options")
}
