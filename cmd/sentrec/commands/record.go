package commands

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"sentrec/internal/bootstrap"
	"sentrec/internal/playback"
	"sentrec/internal/tui"
)

var recordCmd = &cobra.Command{
	Use:   "record [set]",
	Short: "Record a sentence set in the terminal",
	Long: `Open the terminal recorder. With a set name the session starts
immediately; otherwise pick a set from the list.

Recordings are saved to SENTREC_EXPORT_DIR (default ~/Music/sentrec).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecord,
}

func runRecord(cmd *cobra.Command, args []string) error {
	events := tui.NewEventSink()
	services, err := bootstrap.Build(events, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer services.Close()

	initial := ""
	if len(args) == 1 {
		initial = args[0]
		if _, err := services.Sets.Get(initial); err != nil {
			return err
		}
	}

	clip := playback.NewPlaylist(services.Player, services.Logger, events.Playback("clip"))
	review := playback.NewPlaylist(services.Player, services.Logger, events.Playback("review"))
	defer clip.Stop()
	defer review.Stop()

	model := tui.New(cmd.Context(), tui.Deps{
		Session:  services.Navigator,
		Exporter: services.Exporter,
		Sets:     services.Sets,
		Store:    services.Store,
		Clip:     clip,
		Review:   review,
		Events:   events,
	}, initial)

	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
