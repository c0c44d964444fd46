package progress

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/scenepipe/scenepipe/pkg/batch"
)

// AttachBar wires a terminal progress bar to an Executor's per-task
// completion hook, so a Stage 5/6/7 batch fan-out shows live progress
// (spec.md C11 "terminal progress bar for batch fan-out"). Writes to out;
// pass io.Discard in non-interactive contexts.
func AttachBar(ex *batch.Executor, total int, description string, out io.Writer) *progressbar.ProgressBar {
	if out == nil {
		out = os.Stderr
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionClearOnFinish(),
	)
	ex.OnTaskDone = func() {
		_ = bar.Add(1)
	}
	return bar
}
