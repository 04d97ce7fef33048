//go:build linux

// Package procattr configures agent subprocesses so they cannot outlive
// the manager: each child runs in its own process group, and on Linux a
// parent-death signal covers manager crashes.
package procattr

import (
	"os/exec"
	"syscall"
)

// Set puts the child in its own process group and arranges for it to
// receive SIGTERM if the manager dies without cleaning up (crash, OOM
// kill, SIGKILL).
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
