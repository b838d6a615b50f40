// Package proc owns the supervised run process. It starts the target as
// the root of a fresh isolation group (a dedicated process group on POSIX,
// a process-group construct torn down via taskkill on Windows) so that
// stopping the handle leaves zero live processes in that group, including
// descendants the target spawned itself.
package proc

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/vk/reloadgo/internal/ctxlog"
)

// RunPlan describes how to start the supervised process.
type RunPlan struct {
	Program string
	Args    []string
	Env     []string // full child environment; nil inherits the parent's
	Dir     string
}

// ExitStatus is the exit code of the group's root process; negative when
// the root was killed by a signal or never produced a code.
type ExitStatus int

func (s ExitStatus) Success() bool { return s == 0 }

func (s ExitStatus) String() string {
	if s < 0 {
		return "terminated by signal"
	}
	return fmt.Sprintf("exit status %d", int(s))
}

// Proc is one spawned isolation group. Terminate and Kill address the
// whole group, not just the root, and must tolerate an already-empty
// group. Wait blocks until the root exits; it is safe to call repeatedly.
type Proc interface {
	PID() int
	Terminate() error
	Kill() error
	Wait() ExitStatus
}

// Starter is the platform spawn primitive: it creates a process as the
// root of a new isolation group. A fake Starter stands in for it in tests.
type Starter interface {
	Start(ctx context.Context, plan RunPlan) (Proc, error)
}

// Handle is one supervised process lineage. At most one Handle is current
// at any time, and a Handle is never reused across restarts.
type Handle struct {
	proc    Proc
	done    chan struct{}
	exit    ExitStatus
	stopReq atomic.Bool
}

// PID of the group root.
func (h *Handle) PID() int { return h.proc.PID() }

// Done is closed once the root process has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the root process exits and returns its status.
func (h *Handle) Wait() ExitStatus {
	<-h.done
	return h.exit
}

// StopRequested reports whether Stop has been called for this handle. It
// distinguishes ordered shutdowns from a process dying on its own.
func (h *Handle) StopRequested() bool { return h.stopReq.Load() }

// Supervisor starts and stops supervised process groups.
type Supervisor struct {
	starter Starter
	grace   time.Duration
}

// New returns a Supervisor that allows each group the given grace window
// between the graceful termination request and the forced kill.
func New(starter Starter, grace time.Duration) *Supervisor {
	return &Supervisor{starter: starter, grace: grace}
}

// Start spawns the plan as the root of a fresh isolation group.
func (s *Supervisor) Start(ctx context.Context, plan RunPlan) (*Handle, error) {
	logger := ctxlog.FromContext(ctx)

	p, err := s.starter.Start(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", plan.Program, err)
	}

	h := &Handle{proc: p, done: make(chan struct{})}
	go func() {
		h.exit = p.Wait()
		close(h.done)
	}()

	logger.Info("Process started.", "pid", p.PID(), "program", plan.Program)
	return h, nil
}

// Stop terminates the whole group: a graceful request first, a forced kill
// for whatever remains after the grace window, and a final forced sweep so
// descendants that ignored the graceful signal or outlived the root die
// too. Stop is idempotent, and stopping an already-exited handle is a
// no-op. It does not return until the root's termination is confirmed.
func (s *Supervisor) Stop(ctx context.Context, h *Handle) {
	if h == nil {
		return
	}
	logger := ctxlog.FromContext(ctx)

	if h.stopReq.Swap(true) {
		// Another Stop already ran; wait out its confirmation.
		<-h.done
		return
	}

	select {
	case <-h.done:
		// Root already gone; the sweep below still collects stragglers.
	default:
		logger.Debug("Requesting graceful termination.", "pid", h.PID())
		if err := h.proc.Terminate(); err != nil {
			logger.Debug("Graceful termination request not delivered.", "pid", h.PID(), "error", err)
		}

		select {
		case <-h.done:
		case <-time.After(s.grace):
			logger.Warn("Grace window elapsed, force killing process group.", "pid", h.PID(), "grace", s.grace)
			_ = h.proc.Kill()
			<-h.done
		}
	}

	// The root is confirmed dead; collect group members that ignored the
	// graceful signal.
	_ = h.proc.Kill()
	logger.Info("Process group stopped.", "pid", h.PID(), "status", h.exit.String())
}
