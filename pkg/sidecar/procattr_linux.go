package sidecar

import (
	"os/exec"
	"syscall"
)

// dieWithParent asks the kernel to SIGKILL the child if the supervisor dies
// without running teardown, so orphaned daemons cannot pile up.
func dieWithParent(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
}
