//go:build unix

package service

import (
	"os/exec"
	"syscall"
)

// detach starts cmd in a new session so it survives the terminal that
// launched it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
