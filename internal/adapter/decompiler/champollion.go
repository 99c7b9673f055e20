// Package decompiler shells out to the Champollion PEX decompiler to recover
// source text for compiled scripts that ship without one.
package decompiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnavailable marks a missing or unusable decompiler. Callers treat it as
// "no source producer", not as a batch failure.
var ErrUnavailable = errors.New("decompiler unavailable")

const DefaultTimeout = 30 * time.Second

var binaryNames = []string{"champollion", "champollion.exe"}

// Fallback install locations checked after an explicit path and $PATH.
var wellKnownDirs = []string{
	`C:\Program Files\Champollion`,
	`C:\Program Files (x86)\Champollion`,
	"/usr/local/bin",
	"/opt/champollion",
}

// Champollion invokes the decompiler binary with a per-call timeout.
type Champollion struct {
	exe     string
	timeout time.Duration
}

// New resolves the decompiler executable. path may be the executable itself,
// a directory containing it, or empty to search $PATH and well-known install
// locations.
func New(path string, timeout time.Duration) (*Champollion, error) {
	exe, err := resolve(path)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Champollion{exe: exe, timeout: timeout}, nil
}

func resolve(path string) (string, error) {
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
		}
		if !info.IsDir() {
			return path, nil
		}
		for _, name := range binaryNames {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("%w: no champollion executable in %s", ErrUnavailable, path)
	}

	for _, name := range binaryNames {
		if exe, err := exec.LookPath(name); err == nil {
			return exe, nil
		}
	}
	for _, dir := range wellKnownDirs {
		for _, name := range binaryNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("%w: champollion not found", ErrUnavailable)
}

func (c *Champollion) Path() string {
	return c.exe
}

// Probe runs the executable with --help and checks for the expected banner,
// confirming the resolved path really is Champollion.
func (c *Champollion) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.exe, "--help").CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, c.exe, err)
	}
	if !strings.Contains(strings.ToLower(string(out)), "champollion") {
		return fmt.Errorf("%w: %s does not look like champollion", ErrUnavailable, c.exe)
	}
	return nil
}

// Decompile runs the decompiler on one .pex file, writing the recovered
// source into outDir, and returns the produced .psc path.
func (c *Champollion) Decompile(ctx context.Context, pexPath, outDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.exe, pexPath, "--psc", outDir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("champollion failed for %s: %v: %s", pexPath, err, strings.TrimSpace(string(out)))
	}

	base := filepath.Base(pexPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	want := filepath.Join(outDir, stem+".psc")
	if _, err := os.Stat(want); err == nil {
		return want, nil
	}

	// Champollion occasionally re-cases output names; outDir may hold output
	// from other invocations, so match on the stem rather than taking the
	// first file.
	matches, _ := filepath.Glob(filepath.Join(outDir, "*.psc"))
	for _, m := range matches {
		mb := filepath.Base(m)
		if strings.EqualFold(strings.TrimSuffix(mb, filepath.Ext(mb)), stem) {
			return m, nil
		}
	}
	return "", fmt.Errorf("champollion produced no source for %s", pexPath)
}
