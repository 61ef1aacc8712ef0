//go:build !unix

package process

import (
	"os"
	"os/exec"
)

func setProcessGroup(_ *exec.Cmd) {}

func signalTerm(cmd *exec.Cmd) error {
	return cmd.Process.Signal(os.Interrupt)
}

func signalKill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
