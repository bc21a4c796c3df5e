//go:build windows

package service

import (
	"os/exec"
	"syscall"
)

// detach starts cmd in its own process group so console signals sent to the
// launching terminal do not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
