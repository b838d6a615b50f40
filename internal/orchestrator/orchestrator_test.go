//go:build !windows

package orchestrator_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vk/reloadgo/internal/artifact"
	"github.com/vk/reloadgo/internal/build"
	"github.com/vk/reloadgo/internal/debounce"
	"github.com/vk/reloadgo/internal/hook"
	"github.com/vk/reloadgo/internal/orchestrator"
	"github.com/vk/reloadgo/internal/proc"
	"github.com/vk/reloadgo/internal/testutil"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

func newRunner(dir string) *hook.Runner {
	r := hook.NewRunner(dir, nil)
	r.Stdout = io.Discard
	r.Stderr = io.Discard
	return r
}

func newBuilder(resolver artifact.Resolver) *build.Executor {
	b := build.New(resolver, nil)
	b.SetOutput(io.Discard, io.Discard)
	return b
}

func writeFakeArtifact(t *testing.T, dir string) string {
	t.Helper()
	bin := filepath.Join(dir, "app")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
	return bin
}

// runOrchestrator drives o.Run in the background and returns a stop
// function that cancels the session and waits for the loop to drain.
func runOrchestrator(t *testing.T, o *orchestrator.Orchestrator) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(testutil.Context(t))
	done := make(chan struct{})
	go func() {
		_ = o.Run(ctx)
		close(done)
	}()

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Error("orchestrator loop did not stop")
		}
	}
	t.Cleanup(stop)
	return stop
}

func debounceTrigger() debounce.Trigger {
	return debounce.Trigger{Time: time.Now()}
}

func TestOrchestrator_SuccessfulCycleStartsArtifact(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	bin := writeFakeArtifact(t, dir)
	starter := &testutil.FakeStarter{}
	super := proc.New(starter, time.Second)
	session := orchestrator.Session{
		BuildPlan: build.Plan{Program: "true", Dir: dir},
		RunPlan:   proc.RunPlan{Args: []string{"--port", "0"}, Dir: dir},
	}
	o := orchestrator.New(newRunner(dir), newBuilder(&artifact.StaticResolver{Path: bin}), super, session)
	runOrchestrator(t, o)

	// --- Act ---
	o.Trigger(debounceTrigger())

	// --- Assert ---
	require.Eventually(t, func() bool {
		return starter.Started() == 1 && o.State() == orchestrator.StateIdle
	}, waitFor, tick)

	plans := starter.Plans()
	require.Equal(t, bin, plans[0].Program, "the built artifact must be what gets run")
	require.Equal(t, []string{"--port", "0"}, plans[0].Args)

	st := o.StatusSnapshot()
	require.Equal(t, uint64(1), st.Cycles)
	require.Equal(t, bin, st.Artifact)
	require.Empty(t, st.LastError)
	require.NotZero(t, o.CurrentPID())
}

func TestOrchestrator_BuildFailureRunsFailHookAndStartsNothing(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	marker := filepath.Join(dir, "fail-hook-ran")
	starter := &testutil.FakeStarter{}
	session := orchestrator.Session{
		BuildPlan: build.Plan{Program: "false", Dir: dir},
		Hooks: orchestrator.Hooks{
			OnBuildFail: hook.Spec{{"touch", marker}},
		},
	}
	o := orchestrator.New(newRunner(dir), newBuilder(artifact.NoneResolver{}), proc.New(starter, time.Second), session)
	runOrchestrator(t, o)

	// --- Act ---
	o.Trigger(debounceTrigger())

	// --- Assert ---
	require.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil && o.State() == orchestrator.StateIdle
	}, waitFor, tick, "on_build_fail must run and the machine must settle back to Idle")

	require.Zero(t, starter.Started(), "a failed build must never start a process")
	require.Zero(t, o.CurrentPID())
	require.NotEmpty(t, o.StatusSnapshot().LastError)
}

func TestOrchestrator_FailedBuildLeavesRunningProcessUntouched(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	bin := writeFakeArtifact(t, dir)
	gate := filepath.Join(dir, "gate")
	starter := &testutil.FakeStarter{Children: 1}
	session := orchestrator.Session{
		// Builds succeed until the gate file appears.
		BuildPlan: build.Plan{Program: "sh", Args: []string{"-c", "test ! -f gate"}, Dir: dir},
	}
	o := orchestrator.New(newRunner(dir), newBuilder(&artifact.StaticResolver{Path: bin}), proc.New(starter, time.Second), session)
	runOrchestrator(t, o)

	o.Trigger(debounceTrigger())
	require.Eventually(t, func() bool {
		return starter.Started() == 1 && o.State() == orchestrator.StateIdle
	}, waitFor, tick)

	// --- Act ---
	require.NoError(t, os.WriteFile(gate, nil, 0o644))
	o.Trigger(debounceTrigger())

	// --- Assert ---
	require.Eventually(t, func() bool {
		return o.StatusSnapshot().LastError != "" && o.State() == orchestrator.StateIdle
	}, waitFor, tick)

	require.Equal(t, 1, starter.Started(), "the failed cycle must not have replaced anything")
	require.Equal(t, 2, starter.Procs()[0].Live(), "the previously running tree must be fully intact")
}

func TestOrchestrator_TriggersDuringCycleCollapseToOne(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	starter := &testutil.FakeStarter{}
	session := orchestrator.Session{
		BuildPlan: build.Plan{Program: "sh", Args: []string{"-c", "sleep 0.25"}, Dir: dir},
	}
	o := orchestrator.New(newRunner(dir), newBuilder(artifact.NoneResolver{}), proc.New(starter, time.Second), session)
	runOrchestrator(t, o)

	// --- Act ---
	o.Trigger(debounceTrigger())
	require.Eventually(t, func() bool {
		return o.State() == orchestrator.StateBuilding
	}, waitFor, tick)

	for i := 0; i < 5; i++ {
		o.Trigger(debounceTrigger())
	}

	// --- Assert ---
	require.Eventually(t, func() bool {
		return o.StatusSnapshot().Cycles == 2 && o.State() == orchestrator.StateIdle
	}, waitFor, tick, "triggers during a cycle must collapse into exactly one follow-up cycle")

	time.Sleep(600 * time.Millisecond)
	require.Equal(t, uint64(2), o.StatusSnapshot().Cycles, "no third cycle may appear")
}

func TestOrchestrator_ReplacementKillsOldTreeBeforeStartingNew(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	bin := writeFakeArtifact(t, dir)
	starter := &testutil.FakeStarter{Children: 2}
	session := orchestrator.Session{
		BuildPlan: build.Plan{Program: "true", Dir: dir},
	}
	o := orchestrator.New(newRunner(dir), newBuilder(&artifact.StaticResolver{Path: bin}), proc.New(starter, time.Second), session)
	runOrchestrator(t, o)

	// --- Act ---
	o.Trigger(debounceTrigger())
	require.Eventually(t, func() bool {
		return starter.Started() == 1 && o.State() == orchestrator.StateIdle
	}, waitFor, tick)

	o.Trigger(debounceTrigger())
	require.Eventually(t, func() bool {
		return starter.Started() == 2 && o.State() == orchestrator.StateIdle
	}, waitFor, tick)

	// --- Assert ---
	procs := starter.Procs()
	require.Equal(t, 0, procs[0].Live(), "the old tree, children included, must be gone")
	require.Equal(t, 3, procs[1].Live(), "the replacement tree must be alive")
	require.Equal(t, []int{0, 0}, starter.LiveAtStart(), "nothing may be alive at the instant a new process starts")
	require.Equal(t, procs[1].PID(), o.CurrentPID())
}

func TestOrchestrator_SpawnFailureReturnsToIdleAndKeepsServing(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	bin := writeFakeArtifact(t, dir)
	starter := &testutil.FakeStarter{}
	starter.FailNext(errors.New("exec format error"))
	session := orchestrator.Session{
		BuildPlan: build.Plan{Program: "true", Dir: dir},
	}
	o := orchestrator.New(newRunner(dir), newBuilder(&artifact.StaticResolver{Path: bin}), proc.New(starter, time.Second), session)
	runOrchestrator(t, o)

	// --- Act ---
	o.Trigger(debounceTrigger())
	require.Eventually(t, func() bool {
		st := o.StatusSnapshot()
		return st.Cycles == 1 && st.State == orchestrator.StateIdle && st.LastError != ""
	}, waitFor, tick)

	// --- Assert ---
	require.Zero(t, starter.Started())
	require.Zero(t, o.CurrentPID(), "no process may be current after a spawn failure")

	// The session keeps serving: the next trigger succeeds.
	o.Trigger(debounceTrigger())
	require.Eventually(t, func() bool {
		return starter.Started() == 1 && o.State() == orchestrator.StateIdle
	}, waitFor, tick)
}

func TestOrchestrator_PreRunFailurePreservesProcess(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	bin := writeFakeArtifact(t, dir)
	gate := filepath.Join(dir, "gate")
	failMarker := filepath.Join(dir, "fail-hook-ran")
	starter := &testutil.FakeStarter{}
	session := orchestrator.Session{
		BuildPlan: build.Plan{Program: "true", Dir: dir},
		Hooks: orchestrator.Hooks{
			PreRun:      hook.Spec{{"sh", "-c", "test ! -f gate"}},
			OnBuildFail: hook.Spec{{"touch", failMarker}},
		},
	}
	o := orchestrator.New(newRunner(dir), newBuilder(&artifact.StaticResolver{Path: bin}), proc.New(starter, time.Second), session)
	runOrchestrator(t, o)

	o.Trigger(debounceTrigger())
	require.Eventually(t, func() bool {
		return starter.Started() == 1 && o.State() == orchestrator.StateIdle
	}, waitFor, tick)

	// --- Act ---
	require.NoError(t, os.WriteFile(gate, nil, 0o644))
	o.Trigger(debounceTrigger())

	// --- Assert ---
	require.Eventually(t, func() bool {
		_, err := os.Stat(failMarker)
		return err == nil && o.State() == orchestrator.StateIdle
	}, waitFor, tick)

	require.Equal(t, 1, starter.Started(), "a failed pre_run must never reach process replacement")
	require.Equal(t, 1, starter.Procs()[0].Live())
}

func TestOrchestrator_PostRunFailureIsAdvisory(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	bin := writeFakeArtifact(t, dir)
	starter := &testutil.FakeStarter{}
	session := orchestrator.Session{
		BuildPlan: build.Plan{Program: "true", Dir: dir},
		Hooks: orchestrator.Hooks{
			PostRun: hook.Spec{{"false"}},
		},
	}
	o := orchestrator.New(newRunner(dir), newBuilder(&artifact.StaticResolver{Path: bin}), proc.New(starter, time.Second), session)
	runOrchestrator(t, o)

	// --- Act ---
	o.Trigger(debounceTrigger())

	// --- Assert ---
	require.Eventually(t, func() bool {
		return starter.Started() == 1 && o.State() == orchestrator.StateIdle
	}, waitFor, tick)
	require.Equal(t, 1, starter.Procs()[0].Live(), "a post_run failure must not revert the new process")
	require.Empty(t, o.StatusSnapshot().LastError)
}

func TestOrchestrator_PhasesRunInFixedOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	bin := writeFakeArtifact(t, dir)
	seq := filepath.Join(dir, "seq")
	step := func(name string) hook.Step {
		return hook.Step{"sh", "-c", "echo " + name + " >> seq"}
	}
	starter := &testutil.FakeStarter{}
	session := orchestrator.Session{
		BuildPlan: build.Plan{Program: "sh", Args: []string{"-c", "echo build >> seq"}, Dir: dir},
		Hooks: orchestrator.Hooks{
			PreBuild:  hook.Spec{step("pre_build")},
			PostBuild: hook.Spec{step("post_build")},
			PreRun:    hook.Spec{step("pre_run")},
			PostRun:   hook.Spec{step("post_run")},
		},
	}
	o := orchestrator.New(newRunner(dir), newBuilder(&artifact.StaticResolver{Path: bin}), proc.New(starter, time.Second), session)
	runOrchestrator(t, o)

	// --- Act ---
	o.Trigger(debounceTrigger())
	require.Eventually(t, func() bool {
		return starter.Started() == 1 && o.State() == orchestrator.StateIdle
	}, waitFor, tick)

	// --- Assert ---
	data, err := os.ReadFile(seq)
	require.NoError(t, err)
	require.Equal(t, "pre_build\nbuild\npost_build\npre_run\npost_run\n", string(data))
}

func TestOrchestrator_ShutdownStopsCurrentProcess(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	bin := writeFakeArtifact(t, dir)
	starter := &testutil.FakeStarter{Children: 1}
	session := orchestrator.Session{
		BuildPlan: build.Plan{Program: "true", Dir: dir},
	}
	o := orchestrator.New(newRunner(dir), newBuilder(&artifact.StaticResolver{Path: bin}), proc.New(starter, time.Second), session)
	stop := runOrchestrator(t, o)

	o.Trigger(debounceTrigger())
	require.Eventually(t, func() bool {
		return starter.Started() == 1 && o.State() == orchestrator.StateIdle
	}, waitFor, tick)

	// --- Act ---
	stop()

	// --- Assert ---
	require.Equal(t, 0, starter.Procs()[0].Live(), "session shutdown must drain the supervised tree")
	require.Zero(t, o.CurrentPID())
}
