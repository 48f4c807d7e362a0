//go:build windows

package spawn

import (
	"os/exec"
	"syscall"
)

// detachProcessGroup starts the child in its own process group via the
// CREATE_NEW_PROCESS_GROUP flag so it survives the parent's console.
func detachProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
