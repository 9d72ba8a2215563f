package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/proto"
)

var protocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "List the supported protocol handlers",
	Long: `Protocols lists every registered protocol handler with its logic
channels and default generation options. The first listed protocol is
used when neither the command line nor the input file names one.`,
	Run: runProtocols,
}

func runProtocols(cmd *cobra.Command, args []string) {
	for _, desc := range proto.Handlers() {
		fmt.Printf("%s\n", desc.Name)
		fmt.Printf("  channels:    %s\n", strings.Join(desc.Channels, ", "))
		fmt.Printf("  samplerate:  %d\n", desc.Defaults.Samplerate)
		fmt.Printf("  bitrate:     %d\n", desc.Defaults.Bitrate)
		fmt.Printf("  frameformat: %s\n", desc.Defaults.FrameFormat)
		fmt.Printf("  input:       %s\n", desc.Defaults.Input)
	}
}

func init() {
	rootCmd.AddCommand(protocolsCmd)
}
