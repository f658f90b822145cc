//go:build windows

package analyzer

import (
	"os"
	"syscall"
)

// sessionAttr returns an empty SysProcAttr on Windows where Setsid is not available.
func sessionAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}

func killSession(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}
