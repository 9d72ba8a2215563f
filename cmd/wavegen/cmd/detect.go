package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/stream"
)

var detectCmd = &cobra.Command{
	Use:   "detect <input-file>",
	Short: "Check a file for the protocol data values magic",
	Long: `Detect reads the start of the given file and reports whether it
carries the protocol data values file type magic. Exits non-zero when
the magic is absent, so the check can be scripted.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func runDetect(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	// The magic, BOM and line terminator fit well within one peek.
	peek := make([]byte, 4096)
	n, err := io.ReadFull(f, peek)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return err
	}

	if !stream.Detect(peek[:n]) {
		fmt.Printf("%s: no protocol data values magic\n", args[0])
		os.Exit(1)
	}
	fmt.Printf("%s: protocol data values file\n", args[0])
	return nil
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
