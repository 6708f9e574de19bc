package errors

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// maxStackFrames is the number of stack frame lines preserved when a
// sanitized message contains a panic trace. Frames beyond this count are
// dropped before the message crosses the component boundary.
const maxStackFrames = 3

var (
	homeDirPattern = regexp.MustCompile(`(?:/home/[^/\s:'"]+|/Users/[^/\s:'"]+|/root)`)
	absPathPattern = regexp.MustCompile(`(?:^|[\s='"(\[])(/[^\s:'")\]]+(?:/[^\s:'")\]]+)+)`)
	frameLine      = regexp.MustCompile(`^\s+(?:[\w./@-]+\.go:\d+|0x[0-9a-f]+)`)
)

// Sanitize redacts sensitive file-system detail from a message before it
// leaves the supervisor boundary. Home directory fragments are replaced
// with "~", remaining absolute paths are reduced to their final two
// segments, and stack traces are truncated to maxStackFrames frames.
//
// The supervisor sits between untrusted worker internals and anything
// user-facing; full paths and full stacks are permitted only in
// component-local logs.
func Sanitize(message string) string {
	if message == "" {
		return ""
	}

	out := homeDirPattern.ReplaceAllString(message, "~")

	// Also catch the current user's home if it doesn't match the common
	// prefixes above (e.g. custom HOME locations).
	if home, err := os.UserHomeDir(); err == nil && len(home) > 1 {
		out = strings.ReplaceAll(out, home, "~")
	}

	out = absPathPattern.ReplaceAllStringFunc(out, relativizePath)
	return truncateStack(out)
}

// SanitizeError returns an error whose message has been passed through
// Sanitize. A nil error is returned unchanged. The original error is not
// preserved as a wrapped cause: the point of sanitization is that the
// original text must not be reachable from the returned value.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	return New(Sanitize(err.Error()))
}

// relativizePath reduces an absolute path match to its final two segments,
// preserving any leading separator character captured by the pattern.
func relativizePath(match string) string {
	prefix := ""
	path := match
	if len(match) > 0 && match[0] != '/' {
		prefix = match[:1]
		path = match[1:]
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		return match
	}

	dir, base := filepath.Split(filepath.Clean(path))
	parent := filepath.Base(filepath.Clean(dir))
	if parent == "/" || parent == "." {
		return prefix + base
	}
	return fmt.Sprintf("%s%s/%s", prefix, parent, base)
}

// truncateStack drops stack frame lines beyond maxStackFrames, appending
// a marker with the dropped count.
func truncateStack(message string) string {
	if !strings.Contains(message, "\n") {
		return message
	}

	lines := strings.Split(message, "\n")
	out := make([]string, 0, len(lines))
	frames := 0
	dropped := 0

	for _, line := range lines {
		if frameLine.MatchString(line) {
			frames++
			if frames > maxStackFrames {
				dropped++
				continue
			}
		}
		out = append(out, line)
	}

	if dropped > 0 {
		out = append(out, fmt.Sprintf("... %d more frames elided", dropped))
	}
	return strings.Join(out, "\n")
}
