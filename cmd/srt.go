package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"beatcut/internal/config"
	"beatcut/internal/pipeline"
	"beatcut/internal/project"
)

var srtSplitMode string

var srtCmd = &cobra.Command{
	Use:   "srt",
	Short: "Prepare subtitles for the current project without rendering video",
	Long: `Srt resolves or builds the project's subtitle file: it reuses a cached
SRT, imports an external one, or transcribes the audio, then normalizes
timing for the configured split mode. The result becomes the project's
active subtitle, used by the next generate run.`,
	Args: cobra.NoArgs,
	RunE: runSRT,
}

func init() {
	srtCmd.Flags().StringVar(&srtSplitMode, "split-mode", "", "split mode: word, comma, sentence, none (default from .env)")
	rootCmd.AddCommand(srtCmd)
}

func runSRT(cmd *cobra.Command, args []string) error {
	proj, err := project.Current(projectsRoot)
	if err != nil {
		return err
	}

	if srtSplitMode != "" {
		os.Setenv("SPLIT_MODE", srtSplitMode)
	}
	cfg, err := config.Load(config.Options{ProjectDir: proj.Dir})
	if err != nil {
		return err
	}
	// A previously activated subtitle can serve as the source when the
	// expected SRT is gone.
	if cfg.SRTSourcePath == "" {
		if _, err := os.Stat(cfg.SRTPath); err != nil {
			if active := project.ActiveSubtitle(proj.Dir); active != "" {
				cfg.SRTSourcePath = active
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srtPath, err := pipeline.New(nil).PrepareSubtitles(ctx, cfg)
	if err != nil {
		return err
	}
	active, err := project.SetActiveSubtitle(proj.Dir, srtPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "subtitles: %s\n", active)
	return nil
}
