package proc

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
)

// osStarter is the real platform Starter. The isolation-group mechanics
// live in the per-platform files.
type osStarter struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewOSStarter returns the platform spawn primitive, wiring the child's
// stdio to the parent's.
func NewOSStarter() Starter {
	return &osStarter{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

func (s *osStarter) Start(ctx context.Context, plan RunPlan) (Proc, error) {
	cmd := exec.Command(plan.Program, plan.Args...)
	cmd.Dir = plan.Dir
	cmd.Env = plan.Env
	cmd.Stdin = s.stdin
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	setIsolationGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProc{cmd: cmd, pid: cmd.Process.Pid}, nil
}

// osProc is one live isolation group rooted at cmd. The group id equals
// the root's pid and stays addressable for surviving descendants even
// after the root has been reaped.
type osProc struct {
	cmd  *exec.Cmd
	pid  int
	once sync.Once
	exit ExitStatus
}

func (p *osProc) PID() int { return p.pid }

func (p *osProc) Terminate() error { return terminateGroup(p.pid) }

func (p *osProc) Kill() error { return killGroup(p.pid) }

func (p *osProc) Wait() ExitStatus {
	p.once.Do(func() {
		err := p.cmd.Wait()
		if err == nil {
			p.exit = 0
			return
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			p.exit = ExitStatus(exitErr.ExitCode())
			return
		}
		p.exit = -1
	})
	return p.exit
}
