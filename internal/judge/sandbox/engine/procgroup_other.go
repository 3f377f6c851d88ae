//go:build !unix

package engine

import (
	"os"
	"os/exec"
)

func configureProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(proc *os.Process) {
	if proc == nil {
		return
	}
	_ = proc.Kill()
}
