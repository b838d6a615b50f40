//go:build !windows

package proc_test

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vk/reloadgo/internal/proc"
	"github.com/vk/reloadgo/internal/testutil"
)

// groupAlive probes the process group with signal 0. ESRCH means every
// member is gone; our children are always signalable by us.
func groupAlive(pid int) bool {
	return syscall.Kill(-pid, 0) == nil
}

func TestSupervisorPosix_StopKillsSpawnedDescendants(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := proc.New(proc.NewOSStarter(), 2*time.Second)
	plan := proc.RunPlan{
		Program: "/bin/sh",
		Args:    []string{"-c", "sleep 30 & exec sleep 30"},
	}
	h, err := s.Start(testutil.Context(t), plan)
	require.NoError(t, err)

	// Give the shell a moment to fork its background child.
	time.Sleep(100 * time.Millisecond)
	require.True(t, groupAlive(h.PID()))

	// --- Act ---
	s.Stop(testutil.Context(t), h)

	// --- Assert ---
	require.Eventually(t, func() bool { return !groupAlive(h.PID()) },
		time.Second, 10*time.Millisecond,
		"the whole group, including descendants, must be gone")
	require.False(t, h.Wait().Success())
}

func TestSupervisorPosix_SignalDeafTreeDiesWithinGrace(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	grace := 300 * time.Millisecond
	s := proc.New(proc.NewOSStarter(), grace)
	// The root ignores SIGTERM and keeps respawning short-lived children.
	plan := proc.RunPlan{
		Program: "/bin/sh",
		Args:    []string{"-c", `trap '' TERM; while :; do sleep 0.2; done`},
	}
	h, err := s.Start(testutil.Context(t), plan)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	// --- Act ---
	started := time.Now()
	s.Stop(testutil.Context(t), h)
	elapsed := time.Since(started)

	// --- Assert ---
	require.Eventually(t, func() bool { return !groupAlive(h.PID()) },
		time.Second, 10*time.Millisecond)
	require.GreaterOrEqual(t, elapsed, grace, "graceful period must be honored before the forced kill")
	require.Less(t, elapsed, grace+2*time.Second, "the forced kill must not dawdle")
}

func TestSupervisorPosix_StopAfterNaturalExitIsNoop(t *testing.T) {
	t.Parallel()

	s := proc.New(proc.NewOSStarter(), time.Second)
	h, err := s.Start(testutil.Context(t), proc.RunPlan{Program: "/bin/sh", Args: []string{"-c", "exit 7"}})
	require.NoError(t, err)

	require.Equal(t, proc.ExitStatus(7), h.Wait())

	s.Stop(testutil.Context(t), h)
	require.False(t, groupAlive(h.PID()))
}

func TestSupervisorPosix_EnvAndDirReachTheChild(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := proc.New(proc.NewOSStarter(), time.Second)
	plan := proc.RunPlan{
		Program: "/bin/sh",
		Args:    []string{"-c", `test "$PROBE" = live && test -d .`},
		Env:     []string{"PROBE=live", "PATH=/usr/bin:/bin"},
		Dir:     dir,
	}
	h, err := s.Start(testutil.Context(t), plan)
	require.NoError(t, err)

	require.True(t, h.Wait().Success())
}
