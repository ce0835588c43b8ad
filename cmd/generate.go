package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"beatcut/internal/config"
	"beatcut/internal/ffmpeg"
	"beatcut/internal/pipeline"
	"beatcut/internal/project"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the full generation pipeline for the current project",
	Long: `Generate runs every stage for the current project: subtitle preparation,
beat analysis, beat-aligned cutting, concatenation, and subtitle burn-in.
Configuration comes from the project's .env file; environment variables
take precedence.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if !ffmpeg.Available() {
		return fmt.Errorf("ffmpeg not found on PATH")
	}

	proj, err := project.Current(projectsRoot)
	if err != nil {
		return err
	}
	slog.Info("using project", "name", proj.Name)

	cfg, err := config.Load(config.Options{ProjectDir: proj.Dir, RequireVideos: true})
	if err != nil {
		return err
	}
	if active := project.ActiveSubtitle(proj.Dir); active != "" {
		cfg.PreparedSRTPath = active
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := make(chan pipeline.Event, 64)
	done := make(chan error, 1)
	go func() {
		defer close(events)
		done <- pipeline.New(events).Run(ctx, cfg)
	}()

	progressView(events)

	if err := <-done; err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "output: %s\n", cfg.FinalOutput)
	return nil
}

var stageLabels = map[pipeline.Stage]string{
	pipeline.StageSRT:    "subtitles",
	pipeline.StageBeat:   "beats",
	pipeline.StageCut:    "cutting",
	pipeline.StageConcat: "assembly",
	pipeline.StageBurn:   "burn-in",
}

// progressView renders pipeline events as an overall stage bar plus a nested
// per-segment bar during the cut stage. It returns once events is closed.
func progressView(events <-chan pipeline.Event) {
	overall := progressbar.NewOptions(5,
		progressbar.OptionSetDescription("generating"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
	)
	var cutBar *progressbar.ProgressBar

	for ev := range events {
		switch ev.Kind {
		case pipeline.KindStageStart:
			if label, ok := stageLabels[ev.Stage]; ok {
				overall.Describe(label)
			}
		case pipeline.KindStageProgress:
			if ev.Stage == pipeline.StageCut && ev.Total > 0 {
				if cutBar == nil {
					cutBar = progressbar.NewOptions(ev.Total,
						progressbar.OptionSetDescription("segments"),
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionShowCount(),
						progressbar.OptionClearOnFinish(),
					)
				}
				cutBar.Set(ev.Done)
			}
		case pipeline.KindStageDone:
			if ev.Stage == pipeline.StageCut && cutBar != nil {
				cutBar.Finish()
				cutBar = nil
			}
			overall.Add(1)
		}
	}
	overall.Finish()
	fmt.Fprintln(os.Stderr)
}
