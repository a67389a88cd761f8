//go:build windows

package proc

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts the child in a new process group, which also
// stops console Ctrl+C events from reaching it.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}
