// Package hook executes the ordered command lists that surround a
// build-and-restart cycle (pre_build, post_build, pre_run, post_run,
// on_build_fail).
package hook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/vk/reloadgo/internal/ctxlog"
)

// Step is a single command invocation as an argv vector.
type Step []string

// Spec is an ordered list of steps. A nil or empty Spec is a valid no-op.
type Spec []Step

// Failure reports the first step that did not complete successfully.
// Status is the command's exit status, or -1 when the step never ran
// (spawn failure or empty argv).
type Failure struct {
	Step   int
	Status int
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("step %d: %v", f.Step, f.Err)
	}
	return fmt.Sprintf("step %d exited with status %d", f.Step, f.Status)
}

func (f *Failure) Unwrap() error { return f.Err }

// Runner executes hook specs sequentially in a fixed working directory,
// forwarding child output unmodified to its own writers.
type Runner struct {
	Dir    string
	Env    []string // full child environment; nil inherits the parent's
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunner returns a Runner wired to the parent's stdio.
func NewRunner(dir string, env []string) *Runner {
	return &Runner{Dir: dir, Env: env, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes every step in order, stopping at the first nonzero exit or
// spawn failure and reporting it as a *Failure. A step that has started
// always runs to completion; there is no mid-step cancellation.
func (r *Runner) Run(ctx context.Context, spec Spec) error {
	logger := ctxlog.FromContext(ctx)

	for i, step := range spec {
		if len(step) == 0 {
			return &Failure{Step: i, Status: -1, Err: errors.New("empty command")}
		}

		logger.Debug("Running hook step.", "step", i, "command", step)
		cmd := exec.Command(step[0], step[1:]...)
		cmd.Dir = r.Dir
		cmd.Env = r.Env
		cmd.Stdout = r.Stdout
		cmd.Stderr = r.Stderr

		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return &Failure{Step: i, Status: exitErr.ExitCode()}
			}
			return &Failure{Step: i, Status: -1, Err: err}
		}
	}
	return nil
}
