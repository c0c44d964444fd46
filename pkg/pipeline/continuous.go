package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/scenepipe/scenepipe/pkg/config"
	"github.com/scenepipe/scenepipe/pkg/srt"
	"github.com/scenepipe/scenepipe/pkg/workbook"
)

// ProjectRunner builds and runs a Runner for one already-imported
// project directory; main wires this to the concrete llm.Client/batch
// executor construction so ContinuousRunner stays free of that wiring.
type ProjectRunner func(ctx context.Context, projectDir, code string) error

// ContinuousRunner implements the inbox-scanning loop from spec.md §6
// "Continuous mode": periodically scan InboxDir for new {CODE}/{CODE}.srt,
// import into ProjectsDir, run the pipeline, and on success remove the
// inbox copy.
type ContinuousRunner struct {
	Config  *config.Config
	Run     ProjectRunner
	stopCh  chan struct{}
	stopOne sync.Once
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewContinuousRunner builds a ContinuousRunner.
func NewContinuousRunner(cfg *config.Config, run ProjectRunner) *ContinuousRunner {
	return &ContinuousRunner{
		Config: cfg,
		Run:    run,
		stopCh: make(chan struct{}),
		logger: slog.With("component", "continuous_runner"),
	}
}

// Start begins the scan loop in a goroutine.
func (c *ContinuousRunner) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.loop(ctx)
}

// Stop signals the loop to stop and waits for it to finish. Safe to call
// more than once.
func (c *ContinuousRunner) Stop() {
	c.stopOne.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *ContinuousRunner) loop(ctx context.Context) {
	defer c.wg.Done()

	interval := c.Config.ScanInterval()
	if interval <= 0 {
		interval = 60 * time.Second
	}

	for {
		if err := c.scanOnce(ctx); err != nil {
			c.logger.Error("scan failed", "error", err)
		}

		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// scanOnce imports and processes every new project found directly under
// InboxDir in one pass.
func (c *ContinuousRunner) scanOnce(ctx context.Context) error {
	entries, err := os.ReadDir(c.Config.InboxDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("scan inbox: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		code := entry.Name()
		if err := c.importAndRun(ctx, code); err != nil {
			c.logger.Error("project failed", "code", code, "error", err)
		}
	}
	return nil
}

func (c *ContinuousRunner) importAndRun(ctx context.Context, code string) error {
	inboxDir := filepath.Join(c.Config.InboxDir, code)
	inboxSRT := filepath.Join(inboxDir, code+".srt")
	if _, err := os.Stat(inboxSRT); err != nil {
		return ErrNoSRTFound
	}

	projectDir := filepath.Join(c.Config.ProjectsDir, code)
	if _, err := os.Stat(projectDir); err == nil {
		return ErrProjectAlreadyExists
	}

	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	if err := copyFile(inboxSRT, filepath.Join(projectDir, code+".srt")); err != nil {
		return fmt.Errorf("import srt: %w", err)
	}

	c.logger.Info("project imported, running pipeline", "code", code)
	if err := c.Run(ctx, projectDir, code); err != nil {
		return fmt.Errorf("run pipeline for %s: %w", code, err)
	}

	if err := os.RemoveAll(inboxDir); err != nil {
		c.logger.Warn("failed to remove inbox copy after success", "code", code, "error", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// LoadProject opens (or creates) the workbook and parses the SRT file
// for one project directory, ready for a Runner.
func LoadProject(projectDir, code string) (*workbook.Workbook, *srt.Document, error) {
	srtPath := filepath.Join(projectDir, code+".srt")
	doc, err := srt.ParseFile(srtPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoSRTFound, err)
	}

	wbPath := filepath.Join(projectDir, code+"_prompts.xlsx")
	wb, err := workbook.LoadOrCreate(wbPath)
	if err != nil {
		return nil, nil, err
	}
	return wb, &doc, nil
}
