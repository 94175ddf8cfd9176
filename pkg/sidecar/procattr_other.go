//go:build !linux

package sidecar

import "os/exec"

// dieWithParent is best-effort; only Linux offers a parent-death signal.
func dieWithParent(cmd *exec.Cmd) {}
