package pyenv

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// ErrRuntimeNotFound is returned when none of the candidate executables is a
// working Python interpreter.
var ErrRuntimeNotFound = errors.New("could not find a valid Python executable")

// DefaultCandidates returns the executables tried, in order, on this platform.
func DefaultCandidates() []string {
	if runtime.GOOS == "windows" {
		return []string{"python", "python3"}
	}
	return []string{"/usr/bin/python3", "/usr/local/bin/python3", "python3", "python"}
}

// Locator finds a Python executable. The first successful lookup is cached.
type Locator struct {
	candidates []string

	mu    sync.Mutex
	found string
}

// NewLocator creates a Locator. A non-empty override is tried before the
// platform defaults.
func NewLocator(override string) *Locator {
	candidates := DefaultCandidates()
	if override != "" {
		candidates = append([]string{override}, candidates...)
	}
	return &Locator{candidates: candidates}
}

// NewLocatorWithCandidates creates a Locator that only tries the given executables.
func NewLocatorWithCandidates(candidates ...string) *Locator {
	return &Locator{candidates: candidates}
}

// Find returns the first candidate whose "--version" output mentions Python.
func (l *Locator) Find(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.found != "" {
		return l.found, nil
	}
	for _, candidate := range l.candidates {
		if probeVersion(ctx, candidate) {
			l.found = candidate
			return candidate, nil
		}
	}
	return "", ErrRuntimeNotFound
}

func probeVersion(ctx context.Context, candidate string) bool {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, candidate, "--version")
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return false
	}
	return strings.Contains(out.String(), "Python")
}

// Env returns the current environment with dir prepended to PYTHONPATH.
func Env(dir string) []string {
	env := os.Environ()
	path := dir
	if existing := os.Getenv("PYTHONPATH"); existing != "" {
		path = dir + string(os.PathListSeparator) + existing
	}
	return append(env, "PYTHONPATH="+path)
}
