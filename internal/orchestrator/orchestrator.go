// Package orchestrator sequences the rebuild cycle: hooks, build, and
// process replacement, strictly in order, exactly one cycle at a time.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/reloadgo/internal/build"
	"github.com/vk/reloadgo/internal/ctxlog"
	"github.com/vk/reloadgo/internal/debounce"
	"github.com/vk/reloadgo/internal/hook"
	"github.com/vk/reloadgo/internal/proc"
)

// Hooks bundles the five lifecycle hook specs. Any of them may be empty.
type Hooks struct {
	PreBuild    hook.Spec
	PostBuild   hook.Spec
	PreRun      hook.Spec
	PostRun     hook.Spec
	OnBuildFail hook.Spec
}

// Session is the immutable per-session snapshot the orchestrator works
// from. RunPlan.Program left empty means "run the artifact the build
// produced".
type Session struct {
	BuildPlan build.Plan
	RunPlan   proc.RunPlan
	Hooks     Hooks
}

// Status is a point-in-time snapshot for the status endpoint.
type Status struct {
	State     State  `json:"state"`
	PID       int    `json:"pid,omitempty"`
	Artifact  string `json:"artifact,omitempty"`
	Cycles    uint64 `json:"cycles"`
	LastError string `json:"last_error,omitempty"`
}

// Orchestrator owns the rebuild state machine. Exactly one cycle runs at
// a time; triggers arriving mid-cycle collapse into a single pending one.
type Orchestrator struct {
	runner  *hook.Runner
	builder *build.Executor
	super   *proc.Supervisor
	session Session

	// triggers has capacity 1: the buffered slot is the pending-trigger
	// flag. Sends never block, and any number of triggers during a cycle
	// collapse into exactly one follow-up cycle.
	triggers chan debounce.Trigger

	// OnCycleStart, when set, runs at the top of every cycle (screen
	// clearing and similar presentation concerns live outside this
	// package).
	OnCycleStart func()

	mu       sync.Mutex
	state    State
	current  *proc.Handle
	artifact string
	cycles   uint64
	lastErr  string
}

// New assembles an Orchestrator around its collaborators. The machine
// starts Idle and does nothing until the first Trigger.
func New(runner *hook.Runner, builder *build.Executor, super *proc.Supervisor, session Session) *Orchestrator {
	return &Orchestrator{
		runner:   runner,
		builder:  builder,
		super:    super,
		session:  session,
		triggers: make(chan debounce.Trigger, 1),
		state:    StateIdle,
	}
}

// Trigger records that watched changes have settled. Never blocks; while
// a cycle is in flight at most one trigger stays pending.
func (o *Orchestrator) Trigger(t debounce.Trigger) {
	select {
	case o.triggers <- t:
	default:
	}
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// CurrentPID returns the supervised root's pid, or 0 when no process is
// current.
func (o *Orchestrator) CurrentPID() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return 0
	}
	return o.current.PID()
}

// StatusSnapshot returns the state the status endpoint serves.
func (o *Orchestrator) StatusSnapshot() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{
		State:     o.state,
		Artifact:  o.artifact,
		Cycles:    o.cycles,
		LastError: o.lastErr,
	}
	if o.current != nil {
		st.PID = o.current.PID()
	}
	return st
}

// Run consumes triggers until ctx is cancelled, executing one full cycle
// per trigger. On cancellation the in-flight cycle completes, the current
// process is stopped, and Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Orchestrator loop started.")

	for {
		select {
		case <-ctx.Done():
			o.shutdown(ctx)
			return nil
		case t := <-o.triggers:
			if ctx.Err() != nil {
				o.shutdown(ctx)
				return nil
			}
			o.runCycle(ctx, t)
		}
	}
}

// runCycle drives one trigger through the fixed phase order. Soft
// failures end the cycle early and the machine returns to Idle; the
// session keeps serving.
func (o *Orchestrator) runCycle(ctx context.Context, t debounce.Trigger) {
	logger := ctxlog.FromContext(ctx)

	if o.OnCycleStart != nil {
		o.OnCycleStart()
	}
	o.mu.Lock()
	o.cycles++
	cycle := o.cycles
	o.mu.Unlock()

	logger.Info("🔨 Rebuild cycle starting.", "cycle", cycle, "settled_at", t.Time.Format("15:04:05.000"))
	o.setState(ctx, StateBuilding)

	if err := o.runHook(ctx, "pre_build", o.session.Hooks.PreBuild); err != nil {
		o.failCycle(ctx, err)
		return
	}

	art, err := o.builder.Build(ctx, o.session.BuildPlan)
	if err != nil {
		o.failCycle(ctx, err)
		return
	}

	if err := o.runHook(ctx, "post_build", o.session.Hooks.PostBuild); err != nil {
		o.failCycle(ctx, err)
		return
	}

	o.setState(ctx, StateStarting)
	if err := o.runHook(ctx, "pre_run", o.session.Hooks.PreRun); err != nil {
		o.failCycle(ctx, err)
		return
	}

	// Replacement: the old group is confirmed gone before the new process
	// is spawned, so at most one process is ever current.
	o.setState(ctx, StateRestarting)
	if old := o.currentHandle(); old != nil {
		o.super.Stop(ctx, old)
		o.setCurrent(nil)
	}

	h, err := o.super.Start(ctx, o.runPlanFor(art))
	if err != nil {
		logger.Error("Could not start the built process.", "error", err)
		o.recordError(err)
		o.setState(ctx, StateIdle)
		return
	}
	o.setCurrent(h)
	o.mu.Lock()
	o.artifact = art.Path
	o.lastErr = ""
	o.mu.Unlock()
	o.setState(ctx, StateRunning)
	go o.watchExit(ctx, h)

	if err := o.runHook(ctx, "post_run", o.session.Hooks.PostRun); err != nil {
		// Advisory: the fresh process stays.
		logger.Warn("post_run hook failed.", "error", err)
	}

	o.setState(ctx, StateIdle)
	logger.Info("🏁 Cycle complete.", "cycle", cycle, "pid", h.PID())
}

// failCycle absorbs a soft failure: report it, run the failure hook
// best-effort, return to Idle. Whatever process was running stays
// untouched.
func (o *Orchestrator) failCycle(ctx context.Context, cause error) {
	logger := ctxlog.FromContext(ctx)

	o.setState(ctx, StateFailed)
	logger.Error("Cycle failed.", "error", cause)
	o.recordError(cause)

	if err := o.runHook(ctx, "on_build_fail", o.session.Hooks.OnBuildFail); err != nil {
		logger.Warn("on_build_fail hook failed.", "error", err)
	}
	o.setState(ctx, StateIdle)
}

func (o *Orchestrator) runHook(ctx context.Context, name string, spec hook.Spec) error {
	if len(spec) == 0 {
		return nil
	}
	ctxlog.FromContext(ctx).Info("Running hooks.", "hook", name, "steps", len(spec))
	if err := o.runner.Run(ctx, spec); err != nil {
		return fmt.Errorf("%s hook: %w", name, err)
	}
	return nil
}

// watchExit reports a process that died without being asked to. No
// automatic restart: the next trigger replaces it.
func (o *Orchestrator) watchExit(ctx context.Context, h *proc.Handle) {
	st := h.Wait()
	if h.StopRequested() {
		return
	}
	ctxlog.FromContext(ctx).Warn("Supervised process exited on its own.", "pid", h.PID(), "status", st.String())
}

func (o *Orchestrator) shutdown(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Session ending, stopping supervised process.")

	if h := o.currentHandle(); h != nil {
		o.super.Stop(ctx, h)
		o.setCurrent(nil)
	}
	o.setState(ctx, StateIdle)
}

func (o *Orchestrator) runPlanFor(art build.Artifact) proc.RunPlan {
	plan := o.session.RunPlan
	if plan.Program == "" {
		plan.Program = art.Path
	}
	return plan
}

func (o *Orchestrator) setState(ctx context.Context, next State) {
	o.mu.Lock()
	prev := o.state
	o.state = next
	o.mu.Unlock()
	if prev != next {
		ctxlog.FromContext(ctx).Debug("State transition.", "from", prev, "to", next)
	}
}

func (o *Orchestrator) currentHandle() *proc.Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *Orchestrator) setCurrent(h *proc.Handle) {
	o.mu.Lock()
	o.current = h
	o.mu.Unlock()
}

func (o *Orchestrator) recordError(err error) {
	o.mu.Lock()
	o.lastErr = err.Error()
	o.mu.Unlock()
}
