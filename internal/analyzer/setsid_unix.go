//go:build !windows

package analyzer

import (
	"os"
	"syscall"
)

// sessionAttr returns SysProcAttr that places the subprocess in its own session,
// preventing it from accessing the parent's controlling terminal.
func sessionAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// killSession kills the subprocess and everything it spawned (the build
// usually forks a compiler daemon).
func killSession(p *os.Process) error {
	if p == nil {
		return nil
	}
	return syscall.Kill(-p.Pid, syscall.SIGKILL)
}
