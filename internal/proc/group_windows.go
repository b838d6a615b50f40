//go:build windows

package proc

import (
	"os/exec"
	"strconv"
	"syscall"
)

// setIsolationGroup starts the child in its own process group so the tree
// can be addressed as one unit.
func setIsolationGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// terminateGroup asks every process in the child's tree to close.
func terminateGroup(pid int) error {
	return exec.Command("taskkill", "/t", "/pid", strconv.Itoa(pid)).Run()
}

// killGroup force-terminates the child's whole tree.
func killGroup(pid int) error {
	return exec.Command("taskkill", "/f", "/t", "/pid", strconv.Itoa(pid)).Run()
}
