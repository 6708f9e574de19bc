package errors

import (
	"strings"
	"testing"
)

func TestSanitizeHomeDirectory(t *testing.T) {
	msg := "open /home/alice/.config/quorum/secret.yaml: permission denied"
	got := Sanitize(msg)

	if strings.Contains(got, "/home/alice") {
		t.Errorf("Sanitize() = %q, home directory fragment survived", got)
	}
	if !strings.Contains(got, "~") {
		t.Errorf("Sanitize() = %q, want home replaced with ~", got)
	}
}

func TestSanitizeMacHomeDirectory(t *testing.T) {
	got := Sanitize("read /Users/bob/project/main.go failed")
	if strings.Contains(got, "/Users/bob") {
		t.Errorf("Sanitize() = %q, macOS home fragment survived", got)
	}
}

func TestSanitizeAbsolutePath(t *testing.T) {
	got := Sanitize("exec failed: /usr/local/lib/worker/bin/agent not found")

	if strings.Contains(got, "/usr/local/lib") {
		t.Errorf("Sanitize() = %q, deep absolute path survived", got)
	}
	if !strings.Contains(got, "bin/agent") {
		t.Errorf("Sanitize() = %q, want final segments preserved", got)
	}
}

func TestSanitizeStackTruncation(t *testing.T) {
	msg := strings.Join([]string{
		"panic: worker crashed",
		"goroutine 1 [running]:",
		"\tmain.go:10",
		"\trunner.go:42",
		"\tsupervisor.go:99",
		"\texecutor.go:7",
		"\tmain.go:3",
	}, "\n")

	got := Sanitize(msg)

	if strings.Count(got, "\t") > maxStackFrames {
		t.Errorf("Sanitize() preserved more than %d frames:\n%s", maxStackFrames, got)
	}
	if !strings.Contains(got, "more frames elided") {
		t.Errorf("Sanitize() = %q, want elision marker", got)
	}
	if !strings.Contains(got, "panic: worker crashed") {
		t.Errorf("Sanitize() = %q, want panic headline preserved", got)
	}
}

func TestSanitizeEmptyMessage(t *testing.T) {
	if got := Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want \"\"", got)
	}
}

func TestSanitizeError(t *testing.T) {
	if SanitizeError(nil) != nil {
		t.Error("SanitizeError(nil) should return nil")
	}

	err := New("write /home/carol/out.txt: disk full")
	got := SanitizeError(err)
	if strings.Contains(got.Error(), "/home/carol") {
		t.Errorf("SanitizeError() = %q, home fragment survived", got.Error())
	}
}
