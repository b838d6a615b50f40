// Package artifact locates the binary a successful build produced.
//
// The resolver is deliberately outside the rebuild cycle's core logic: the
// build executor asks it for a path after a zero exit, and a miss is its
// own failure class, distinct from a failing compiler.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// ErrNotFound reports that the build completed but the expected binary
// could not be located.
var ErrNotFound = errors.New("artifact not found")

// Resolver yields the absolute path of the freshly built binary.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// GoListResolver derives the binary name from `go list` package metadata,
// the same way `go build -o <dir>` names its output, and expects to find
// it under OutputDir.
type GoListResolver struct {
	Root      string // module root, working directory for go list
	Package   string // package pattern handed to go build, e.g. "." or "./cmd/app"
	OutputDir string // directory handed to go build -o, relative to Root
}

func (r *GoListResolver) Resolve(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "go", "list", "-f", "{{.Name}} {{.ImportPath}}", r.Package)
	cmd.Dir = r.Root
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: go list failed for %q: %v", ErrNotFound, r.Package, err)
	}

	name, err := binaryNameFromList(string(out))
	if err != nil {
		return "", err
	}
	return statArtifact(filepath.Join(r.Root, r.OutputDir, name))
}

// binaryNameFromList parses one `{{.Name}} {{.ImportPath}}` line and
// returns the file name go build gives the binary.
func binaryNameFromList(out string) (string, error) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) != 2 {
		return "", fmt.Errorf("%w: unexpected go list output %q", ErrNotFound, strings.TrimSpace(out))
	}
	pkgName, importPath := fields[0], fields[1]
	if pkgName != "main" {
		return "", fmt.Errorf("%w: package %s is not a main package", ErrNotFound, importPath)
	}
	return binaryName(importPath), nil
}

// versionElement matches major-version path elements like "v2".
var versionElement = regexp.MustCompile(`^v[0-9]+$`)

// binaryName mirrors go build's output naming: the last import path
// element, skipping a trailing major-version element.
func binaryName(importPath string) string {
	base := path.Base(importPath)
	if versionElement.MatchString(base) {
		if parent := path.Base(path.Dir(importPath)); parent != "." && parent != "/" {
			base = parent
		}
	}
	if runtime.GOOS == "windows" {
		base += ".exe"
	}
	return base
}

// StaticResolver expects the binary at a fixed path, known up front
// (single-file builds).
type StaticResolver struct {
	Path string
}

func (r *StaticResolver) Resolve(ctx context.Context) (string, error) {
	return statArtifact(r.Path)
}

// NoneResolver is used when the run command is fully explicit and no
// artifact lookup applies. It never misses.
type NoneResolver struct{}

func (NoneResolver) Resolve(ctx context.Context) (string, error) {
	return "", nil
}

func statArtifact(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, abs)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotFound, abs)
	}
	return abs, nil
}
