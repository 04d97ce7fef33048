package procattr

import (
	"os"
	"syscall"
)

// SignalGroup delivers sig to the process's entire group. The negative
// pid makes the kernel fan the signal out to every member, covering
// grandchildren the agent CLI may have spawned.
func SignalGroup(p *os.Process, sig syscall.Signal) error {
	if p == nil {
		return nil
	}
	return syscall.Kill(-p.Pid, sig)
}

// KillGroup force-kills the process's entire group.
func KillGroup(p *os.Process) error {
	return SignalGroup(p, syscall.SIGKILL)
}
