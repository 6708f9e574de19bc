// Package testutil provides testing utilities for Quorum tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
)

// WorkerScript writes an executable shell script into a temp directory and
// returns the argument vector to run it. The script body runs under sh; it
// receives the prompt on stdin and should emit newline-delimited JSON
// records on stdout the way a real worker does. Skips the test on Windows.
func WorkerScript(t *testing.T, body string) []string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("worker scripts require a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "worker.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write worker script: %v", err)
	}
	return []string{path}
}

// EchoWorker returns a worker that emits the given records verbatim, one
// per line, and exits 0.
func EchoWorker(t *testing.T, records ...string) []string {
	t.Helper()

	body := ""
	for _, rec := range records {
		body += "echo '" + rec + "'\n"
	}
	return WorkerScript(t, body)
}

// FailingWorker returns a worker that exits with the given code after
// writing message to stderr.
func FailingWorker(t *testing.T, exitCode int, message string) []string {
	t.Helper()

	body := "echo '" + message + "' >&2\nexit " + strconv.Itoa(exitCode)
	return WorkerScript(t, body)
}

// HangingWorker returns a worker that sleeps far longer than any test
// timeout, for exercising timeout and stop paths.
func HangingWorker(t *testing.T) []string {
	t.Helper()
	return WorkerScript(t, "sleep 300")
}

// FloodingWorker returns a worker that emits roughly totalBytes of valid
// assistant records, for exercising the output cap.
func FloodingWorker(t *testing.T, totalBytes int) []string {
	t.Helper()

	// Each record is ~120 bytes of payload.
	line := `{"type":"assistant","content":[{"type":"text","text":"xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"}]}`
	count := totalBytes/len(line) + 1
	body := "i=0\nwhile [ $i -lt " + strconv.Itoa(count) + " ]; do\n" +
		"  echo '" + line + "'\n" +
		"  i=$((i+1))\ndone"
	return WorkerScript(t, body)
}

