//go:build unix

package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const aliveCheckInterval = 50 * time.Millisecond

// terminate shuts a worker down with escalation: SIGTERM first, SIGKILL
// after the grace period, and in both cases waits until the process is
// verified gone rather than assuming the signal landed.
func terminate(proc *os.Process, grace time.Duration) error {
	if proc == nil {
		return nil
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		return nil
	}
	if waitGone(proc, grace) {
		return nil
	}

	if err := proc.Kill(); err != nil {
		return nil
	}
	if waitGone(proc, grace) {
		return nil
	}
	return fmt.Errorf("process %d still alive after kill", proc.Pid)
}

// waitGone polls until the process no longer exists or the deadline passes.
func waitGone(proc *os.Process, deadline time.Duration) bool {
	remaining := deadline
	for remaining > 0 {
		if !processAlive(proc) {
			return true
		}
		time.Sleep(aliveCheckInterval)
		remaining -= aliveCheckInterval
	}
	return !processAlive(proc)
}

// processAlive reports whether the process exists. Signal 0 sends nothing
// but fails when the target is gone. A zombie that has been reaped by Wait
// also reads as gone.
func processAlive(proc *os.Process) bool {
	err := proc.Signal(syscall.Signal(0))
	return err == nil
}

// exitSignal returns the name of the signal that terminated the process,
// or "" when it exited normally.
func exitSignal(cmd *exec.Cmd) string {
	if cmd == nil || cmd.ProcessState == nil {
		return ""
	}
	status, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return ""
	}
	return status.Signal().String()
}
