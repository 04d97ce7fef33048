//go:build !linux

// Package procattr configures agent subprocesses so they cannot outlive
// the manager: each child runs in its own process group, and on Linux a
// parent-death signal covers manager crashes.
package procattr

import (
	"os/exec"
	"syscall"
)

// Set puts the child in its own process group. Pdeathsig is Linux-only,
// so elsewhere cleanup relies on the manager signaling the group.
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
