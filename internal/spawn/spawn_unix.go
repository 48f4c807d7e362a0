//go:build !windows

package spawn

import (
	"os/exec"
	"syscall"
)

// detachProcessGroup puts the child in its own process group so it
// survives the parent's exit and isn't killed by a terminal's Ctrl-C.
func detachProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
