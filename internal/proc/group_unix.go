//go:build !windows

package proc

import (
	"os/exec"
	"syscall"
)

// setIsolationGroup makes the child the leader of a fresh process group so
// the whole subtree shares one killable identity distinct from ours.
func setIsolationGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup delivers sig to every member of the child's process group.
// The group id equals the child's pid because the child was made group
// leader. ESRCH means the group is already empty.
func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}

func terminateGroup(pid int) error { return signalGroup(pid, syscall.SIGTERM) }

func killGroup(pid int) error { return signalGroup(pid, syscall.SIGKILL) }
