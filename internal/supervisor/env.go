package supervisor

import (
	"os"
	"strings"
)

// defaultEnvAllowlist names the parent environment variables a worker may
// see. Everything else, credentials included, is withheld.
var defaultEnvAllowlist = []string{
	"HOME",
	"PATH",
	"LANG",
	"LC_ALL",
	"TERM",
	"TMPDIR",
	"USER",
	"SHELL",
}

// buildEnv assembles a child environment from the allow-listed subset of the
// parent environment plus the request's extra pairs. The full parent
// environment is never passed through.
func buildEnv(allowlist, extra []string) []string {
	allowed := make(map[string]bool, len(allowlist))
	for _, key := range allowlist {
		allowed[key] = true
	}

	var env []string
	for _, kv := range os.Environ() {
		key, _, ok := strings.Cut(kv, "=")
		if ok && allowed[key] {
			env = append(env, kv)
		}
	}
	return append(env, extra...)
}
