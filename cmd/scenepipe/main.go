// Command scenepipe runs the script-to-scene pipeline for one project
// directory, or continuously watches an inbox directory for new ones.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/scenepipe/scenepipe/pkg/config"
	"github.com/scenepipe/scenepipe/pkg/llm"
	"github.com/scenepipe/scenepipe/pkg/metrics"
	"github.com/scenepipe/scenepipe/pkg/pipeline"
	"github.com/scenepipe/scenepipe/pkg/progress"
)

// Exit codes follow spec.md §7: 0 success, 2 input invalid, 3 terminal
// failure mid-stage.
const (
	exitOK            = 0
	exitInputInvalid  = 2
	exitTerminalError = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// projectRun bundles a Runner with the per-project resources (progress
// log, metrics registry) that must be closed/flushed after Run returns.
type projectRun struct {
	runner  *pipeline.Runner
	jsonl   *progress.JSONLReporter
	metrics *metrics.Registry
	outPath string
}

func (p *projectRun) finish() {
	if err := p.jsonl.Close(); err != nil {
		slog.Warn("failed to close progress log", "error", err)
	}
	if err := p.metrics.WriteTo(p.outPath); err != nil {
		slog.Warn("failed to write metrics file", "path", p.outPath, "error", err)
	}
}

func buildProjectRun(cfg *config.Config, llmClient *llm.Client, projectDir, code string) (*projectRun, error) {
	wb, doc, err := pipeline.LoadProject(projectDir, code)
	if err != nil {
		return nil, err
	}

	r := pipeline.NewRunner(wb, doc, llmClient, cfg)

	metricsReg := metrics.New()
	r.Metrics = metricsReg
	llmClient.Observer = metricsReg
	r.CoverageMetrics = metricsReg
	r.FallbackMetrics = metricsReg

	jsonlReporter, err := progress.NewJSONLReporter(filepath.Join(projectDir, code+"_progress.jsonl"), code)
	if err != nil {
		return nil, err
	}
	r.Reporter = progress.MultiReporter{jsonlReporter, progress.NewTerminalReporter(os.Stdout)}

	// Total is unknown ahead of time (it depends on how many director-plan
	// entries Stage 5 produces); -1 puts the bar in spinner mode.
	progress.AttachBar(r.Executor, -1, code, os.Stderr)

	return &projectRun{
		runner:  r,
		jsonl:   jsonlReporter,
		metrics: metricsReg,
		outPath: filepath.Join(projectDir, code+"_metrics.prom"),
	}, nil
}

func run(args []string) int {
	fs := flag.NewFlagSet("scenepipe", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file (defaults merge under built-ins)")
	project := fs.String("project", "", "project code to run once (the directory PROJECTS/<CODE> must contain <CODE>.srt)")
	loop := fs.Bool("loop", false, "run continuously, scanning the inbox directory for new projects")
	videoMode := fs.String("mode", "", "override video_mode: basic|full")

	if err := fs.Parse(args); err != nil {
		return exitTerminalError
	}

	cfg, err := config.Initialize(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "scenepipe: configuration error:", err)
		return exitInputInvalid
	}
	if *videoMode != "" {
		cfg.VideoMode = config.VideoMode(*videoMode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	llmClient := llm.New(cfg)

	if *loop {
		return runLoop(ctx, cfg, llmClient)
	}

	if *project == "" {
		fmt.Fprintln(os.Stderr, "scenepipe: --project is required unless --loop is set")
		return exitInputInvalid
	}

	projectDir := filepath.Join(cfg.ProjectsDir, *project)
	pr, err := buildProjectRun(cfg, llmClient, projectDir, *project)
	if err != nil {
		fmt.Fprintln(os.Stderr, "scenepipe:", err)
		return exitInputInvalid
	}
	defer pr.finish()

	if err := pr.runner.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "scenepipe: run failed:", err)
		if stageErr := asStageError(err); stageErr != nil && stageErr.Kind == pipeline.KindInputInvalid {
			return exitInputInvalid
		}
		return exitTerminalError
	}
	return exitOK
}

func runLoop(ctx context.Context, cfg *config.Config, llmClient *llm.Client) int {
	cr := pipeline.NewContinuousRunner(cfg, func(ctx context.Context, projectDir, code string) error {
		pr, err := buildProjectRun(cfg, llmClient, projectDir, code)
		if err != nil {
			return err
		}
		defer pr.finish()
		return pr.runner.Run(ctx)
	})

	cr.Start(ctx)
	slog.Info("scenepipe running in loop mode", "inbox_dir", cfg.InboxDir, "projects_dir", cfg.ProjectsDir)

	<-ctx.Done()
	slog.Info("shutdown signal received, stopping")
	cr.Stop()
	return exitOK
}

// asStageError unwraps err looking for a *pipeline.StageError, used to
// pick exit code 2 for input-invalid failures versus 3 for everything
// else.
func asStageError(err error) *pipeline.StageError {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		return stageErr
	}
	return nil
}
