package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sentrec/internal/config"
	"sentrec/internal/logging"
	"sentrec/internal/sentences"
)

var setsCmd = &cobra.Command{
	Use:   "sets",
	Short: "List sentence sets",
	Long: `List the built-in sentence sets and those loaded from
SENTREC_SETS_DIR (default ~/.config/sentrec/sets).

A set file is YAML or JSON:

  name: greetings
  text:
    - Good morning.
    - See you tomorrow.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := loadSets()
		if err != nil {
			return err
		}
		for _, name := range provider.Names() {
			set, err := provider.Get(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %d sentences\n", name, set.Len())
		}
		return nil
	},
}

var setsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a sentence set as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := loadSets()
		if err != nil {
			return err
		}
		set, err := provider.Get(args[0])
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(set)
		if err != nil {
			return fmt.Errorf("encode set: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	setsCmd.AddCommand(setsShowCmd)
}

func loadSets() (*sentences.Provider, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{File: cfg.Log.File, Level: cfg.Log.Level, Console: verbose})
	if err != nil {
		return nil, err
	}
	defer func() { _ = logger.Sync() }()
	return sentences.LoadDir(cfg.Sets.Dir, logger)
}
