// Package build runs the session's build command and locates its output.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/vk/reloadgo/internal/artifact"
	"github.com/vk/reloadgo/internal/ctxlog"
)

// Plan is the build invocation, resolved once per session.
type Plan struct {
	Program string
	Args    []string
	Dir     string
}

// Artifact is the build's product. Path is empty when the session's run
// command is fully explicit and no lookup applies.
type Artifact struct {
	Path string
}

// Failure classifies an unsuccessful build. Exactly one of the two cases
// holds: the build command itself failed (Status, or Err for a spawn
// problem), or the build succeeded but the artifact could not be located
// (ResolverMiss).
type Failure struct {
	Status       int
	ResolverMiss bool
	Err          error
}

func (f *Failure) Error() string {
	switch {
	case f.ResolverMiss:
		return fmt.Sprintf("build succeeded but artifact resolution failed: %v", f.Err)
	case f.Err != nil:
		return fmt.Sprintf("build could not run: %v", f.Err)
	default:
		return fmt.Sprintf("build exited with status %d", f.Status)
	}
}

func (f *Failure) Unwrap() error { return f.Err }

// Executor runs builds to completion, classifying purely by exit status,
// and consults the session's artifact resolver on success.
type Executor struct {
	resolver artifact.Resolver
	env      []string
	stdout   io.Writer
	stderr   io.Writer
}

// New returns an Executor forwarding build output to the parent's stdio.
func New(resolver artifact.Resolver, env []string) *Executor {
	return &Executor{resolver: resolver, env: env, stdout: os.Stdout, stderr: os.Stderr}
}

// SetOutput redirects the build's forwarded output streams.
func (e *Executor) SetOutput(stdout, stderr io.Writer) {
	e.stdout = stdout
	e.stderr = stderr
}

// Build runs the plan to completion. A started build is never cancelled
// mid-flight; a half-finished build must never be applied.
func (e *Executor) Build(ctx context.Context, plan Plan) (Artifact, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running build command.", "program", plan.Program, "args", plan.Args, "dir", plan.Dir)

	cmd := exec.Command(plan.Program, plan.Args...)
	cmd.Dir = plan.Dir
	cmd.Env = e.env
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Artifact{}, &Failure{Status: exitErr.ExitCode()}
		}
		return Artifact{}, &Failure{Status: -1, Err: err}
	}

	path, err := e.resolver.Resolve(ctx)
	if err != nil {
		return Artifact{}, &Failure{ResolverMiss: true, Err: err}
	}

	logger.Debug("Build succeeded.", "artifact", path)
	return Artifact{Path: path}, nil
}
