//go:build windows

package supervisor

import (
	"os"
	"os/exec"
	"time"
)

// terminate shuts a worker down. Windows has no graceful signal to
// escalate from, so this kills immediately and waits for the process to
// disappear.
func terminate(proc *os.Process, grace time.Duration) error {
	if proc == nil {
		return nil
	}
	_ = proc.Kill()

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if _, err := os.FindProcess(proc.Pid); err != nil {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

// exitSignal always returns "" on Windows: processes exit with codes, not
// signals.
func exitSignal(_ *exec.Cmd) string {
	return ""
}
