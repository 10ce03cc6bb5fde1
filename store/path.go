package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DefaultDir is the directory under the user's home that holds journals.
const DefaultDir = ".callgate"

var (
	envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	unsafeChars   = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// DefaultPath returns the journal location for a memoized function named
// name: $HOME/.callgate/<name>.journal, with unsafe characters replaced.
func DefaultPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", &PersistenceError{Op: "locate", Path: "~", Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
	return filepath.Join(home, DefaultDir, sanitize(name)+".journal"), nil
}

func sanitize(name string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "._")
	if s == "" {
		return "default"
	}
	return s
}

// ExpandPath expands a leading ~ and environment variables in p.
//
// Semantics:
//   - `$VAR` and `${VAR}` are expanded via os.ExpandEnv.
//   - If `${VAR}` is present but VAR is missing from the environment, it errors.
//   - `$$` emits a literal `$`.
func ExpandPath(p string) (string, error) {
	const dollarSentinel = "\x00CALLGATE_DOLLAR\x00"
	s := strings.ReplaceAll(p, "$$", dollarSentinel)

	missing := make(map[string]struct{})
	for _, match := range envVarPattern.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(match[1]); !ok {
			missing[match[1]] = struct{}{}
		}
	}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for k := range missing {
			names = append(names, k)
		}
		sort.Strings(names)
		return "", fmt.Errorf("store: missing environment variables in %q: %s", p, strings.Join(names, ", "))
	}

	s = os.ExpandEnv(s)
	s = strings.ReplaceAll(s, dollarSentinel, "$")

	if s == "~" || strings.HasPrefix(s, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		s = filepath.Join(home, strings.TrimPrefix(s, "~"))
	}
	return s, nil
}
