//go:build unix

package execshell

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func configureProcessGroup(command *exec.Cmd) {
	command.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcessGroup kills the shell and every process it started.
func terminateProcessGroup(command *exec.Cmd) {
	if command.Process == nil {
		return
	}
	if killError := unix.Kill(-command.Process.Pid, unix.SIGKILL); killError != nil {
		_ = command.Process.Kill()
	}
}
