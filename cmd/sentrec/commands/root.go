package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sentrec",
	Short: "Guided sentence recorder",
	Long: `sentrec walks through a set of sentences, recording one clip per
sentence from the microphone, and joins the clips into a single WAV file.

Examples:
  # Pick a set interactively
  sentrec record

  # Start straight into a set
  sentrec record set1

  # Join existing clips
  sentrec concat -o combined.wav recording_1.wav recording_2.wav
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			_ = os.Setenv("SENTREC_LOG_LEVEL", "debug")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(setsCmd)
	rootCmd.AddCommand(concatCmd)
}
