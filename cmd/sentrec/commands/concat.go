package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sentrec/internal/artifact"
	"sentrec/internal/audio"
	"sentrec/internal/bootstrap"
	"sentrec/internal/domain"
)

var (
	concatOutput string
	concatEngine string
)

var concatCmd = &cobra.Command{
	Use:   "concat [flags] <input.wav>...",
	Short: "Join WAV files into one recording",
	Long: `Join WAV clips in argument order with the export engine, the same
way a finished session is exported.

Examples:
  sentrec concat -o combined.wav recording_1.wav recording_2.wav
  sentrec concat --engine wav -o combined.wav clips/*.wav`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConcat,
}

func init() {
	concatCmd.Flags().StringVarP(&concatOutput, "output", "o", "combined_recording.wav", "output file")
	concatCmd.Flags().StringVar(&concatEngine, "engine", "", "export engine: ffmpeg or wav (default from SENTREC_EXPORT_ENGINE)")
}

func runConcat(cmd *cobra.Command, args []string) error {
	if concatEngine != "" {
		if concatEngine != "ffmpeg" && concatEngine != "wav" {
			return fmt.Errorf("unknown engine %q", concatEngine)
		}
		_ = os.Setenv("SENTREC_EXPORT_ENGINE", concatEngine)
	}

	services, err := bootstrap.Build(&stderrEvents{w: cmd.ErrOrStderr()}, bootstrap.Options{
		Console:   verbose,
		Artifacts: artifact.NewFileSink(concatOutput),
	})
	if err != nil {
		return err
	}
	defer services.Close()

	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", path, err)
		}
		if _, _, err := audio.DecodeWAV(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		services.Store.Put(i, domain.Segment{Index: i, Data: data, ContentType: audio.ContentTypeWAV})
	}

	result, err := services.Exporter.Export(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Joined %d recordings into %s (%d bytes)\n", result.Segments, result.Location, result.Bytes)
	return nil
}

// stderrEvents reports backend errors for one-shot commands.
type stderrEvents struct {
	w io.Writer
}

func (e *stderrEvents) SessionStateChanged(domain.Status, domain.SessionStateReason) {}
func (e *stderrEvents) CountdownTick(int)                                            {}
func (e *stderrEvents) SegmentStored(int, int)                                       {}

func (e *stderrEvents) SessionError(code domain.ErrorCode, detail string) {
	fmt.Fprintf(e.w, "%s: %s\n", code, detail)
}
