package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	projectsRoot string
)

var rootCmd = &cobra.Command{
	Use:   "beatcut",
	Short: "Generate beat-synchronized subtitled videos",
	Long: `Beatcut builds short vertical videos from an audio track and a set of
source clips: it transcribes the audio, detects beats, cuts clips on the
beat grid, and burns beat-tight subtitles into the result.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelError
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&projectsRoot, "projects-root", "projects", "directory holding project workspaces")
}
