package pyenv

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Probe reports whether an importable module is available.
type Probe interface {
	IsInstalled(importName string) bool
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(importName string) bool

// IsInstalled calls f.
func (f ProbeFunc) IsInstalled(importName string) bool {
	return f(importName)
}

// DirProbe checks for modules inside a vendor directory.
type DirProbe struct {
	Dir string
}

// IsInstalled reports whether Dir contains a package directory, a source
// module, or a native extension named importName.
func (p DirProbe) IsInstalled(importName string) bool {
	if importName == "" || p.Dir == "" {
		return false
	}

	if info, err := os.Stat(filepath.Join(p.Dir, importName)); err == nil && info.IsDir() {
		return true
	}
	if _, err := os.Stat(filepath.Join(p.Dir, importName+".py")); err == nil {
		return true
	}
	for _, pattern := range []string{importName + ".*.so", importName + ".so", importName + ".*.pyd", importName + ".pyd"} {
		matches, err := filepath.Glob(filepath.Join(p.Dir, pattern))
		if err == nil && len(matches) > 0 {
			return true
		}
	}
	return false
}

// findSpecScript exits 0 when sys.argv[1] resolves through the interpreter's
// import machinery.
const findSpecScript = "import importlib.util, sys; sys.exit(importlib.util.find_spec(sys.argv[1]) is None)"

const importCheckTimeout = 30 * time.Second

// Finder resolves a Python executable.
type Finder interface {
	Find(ctx context.Context) (string, error)
}

// ImportCheck asks the interpreter whether a module is importable, with the
// vendor directory at the front of PYTHONPATH. Packages installed anywhere on
// the interpreter's sys.path count. When no interpreter can be found it falls
// back to a DirProbe on the vendor directory.
type ImportCheck struct {
	finder   Finder
	dir      string
	fallback Probe
	timeout  time.Duration
	command  func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewImportCheck creates an ImportCheck for the given vendor directory.
func NewImportCheck(finder Finder, dir string) *ImportCheck {
	return &ImportCheck{
		finder:   finder,
		dir:      dir,
		fallback: DirProbe{Dir: dir},
		timeout:  importCheckTimeout,
		command:  exec.CommandContext,
	}
}

// IsInstalled reports whether importName can be imported. Any failure to run
// the interpreter counts as not installed.
func (c *ImportCheck) IsInstalled(importName string) bool {
	if importName == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	python, err := c.finder.Find(ctx)
	if err != nil {
		return c.fallback.IsInstalled(importName)
	}

	cmd := c.command(ctx, python, "-c", findSpecScript, importName)
	if c.dir != "" {
		cmd.Env = Env(c.dir)
	}
	return cmd.Run() == nil
}

// EnsureVendorDir creates the vendor directory if needed and returns its
// absolute path.
func EnsureVendorDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve vendor directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("failed to create vendor directory: %w", err)
	}
	return abs, nil
}
