package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/vk/reloadgo/internal/artifact"
	"github.com/vk/reloadgo/internal/build"
	"github.com/vk/reloadgo/internal/ctxlog"
	"github.com/vk/reloadgo/internal/hook"
	"github.com/vk/reloadgo/internal/proc"
	"github.com/vk/reloadgo/internal/watch"
)

// Resolve merges defaults, file values, and command-line overrides into one
// session snapshot. Precedence is flag over file over default. It validates
// the result and synthesizes the build plan, artifact resolver, and run plan
// for the selected build mode.
func Resolve(ctx context.Context, root string, file *File, ov Overrides) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	if file == nil {
		file = &File{}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("project root %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", absRoot)
	}

	cfg := &Config{Root: absRoot}

	debounceMS := pickInt(ov.DebounceMS, file.DebounceMS, int(DefaultDebounce/time.Millisecond))
	if debounceMS < 0 {
		return nil, fmt.Errorf("debounce_ms must not be negative, got %d", debounceMS)
	}
	cfg.Debounce = time.Duration(debounceMS) * time.Millisecond

	graceMS := pickInt(ov.GraceMS, file.GraceMS, int(DefaultGrace/time.Millisecond))
	if graceMS < 0 {
		return nil, fmt.Errorf("grace_ms must not be negative, got %d", graceMS)
	}
	cfg.Grace = time.Duration(graceMS) * time.Millisecond

	cfg.Clear = pickBool(ov.Clear, file.Clear, true)

	cfg.StatusPort = pickInt(ov.StatusPort, file.StatusPort, 0)
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return nil, fmt.Errorf("status_port %d is out of range", cfg.StatusPort)
	}

	for _, p := range pickStrings(ov.Watch, file.Watch, DefaultWatch) {
		abs := underRoot(absRoot, p)
		if _, err := os.Stat(abs); err != nil {
			logger.Warn("Watch path does not exist, skipping.", "path", p)
			continue
		}
		cfg.WatchPaths = append(cfg.WatchPaths, abs)
	}
	if len(cfg.WatchPaths) == 0 {
		return nil, errors.New("none of the configured watch paths exist")
	}

	filter, err := watch.NewFilter(
		pickStrings(nil, file.IncludeExt, DefaultIncludeExt),
		pickStrings(nil, file.Exclude, DefaultExclude),
	)
	if err != nil {
		return nil, err
	}
	cfg.Filter = filter

	cfg.ChildEnv = append(os.Environ(), ActiveEnvVar+"=1")

	if err := resolveBuild(cfg, file, ov); err != nil {
		return nil, err
	}
	if err := resolveRun(cfg, file, ov); err != nil {
		return nil, err
	}
	cfg.Hooks = resolveHooks(file.Hooks)

	return cfg, nil
}

// resolveBuild picks the build mode and synthesizes its plan and artifact
// resolver. Command-line flags trump the file's mode choice entirely.
func resolveBuild(cfg *Config, file *File, ov Overrides) error {
	fb := file.Build
	if fb == nil {
		fb = &FileBuild{}
	}

	modes := 0
	if len(fb.Command) > 0 {
		modes++
	}
	if fb.File != nil {
		modes++
	}
	if fb.Package != nil {
		modes++
	}
	if modes > 1 {
		return errors.New("build block must set at most one of command, file, or package")
	}
	if ov.Build != nil && ov.Package != nil {
		return errors.New("--build and --package are mutually exclusive")
	}

	outputDir := DefaultOutputDir
	if fb.OutputDir != nil {
		if *fb.OutputDir == "" {
			return errors.New("build.output_dir must not be empty")
		}
		outputDir = *fb.OutputDir
	}

	switch {
	case ov.Build != nil:
		argv := strings.Fields(*ov.Build)
		if len(argv) == 0 {
			return errors.New("--build must name a command")
		}
		return resolveExplicitBuild(cfg, argv)
	case ov.Package != nil:
		return resolvePackageBuild(cfg, *ov.Package, fb, outputDir)
	case len(fb.Command) > 0:
		return resolveExplicitBuild(cfg, fb.Command)
	case fb.File != nil:
		return resolveFileBuild(cfg, *fb.File, outputDir)
	case fb.Package != nil:
		return resolvePackageBuild(cfg, *fb.Package, fb, outputDir)
	default:
		return resolvePackageBuild(cfg, DefaultPackage, fb, outputDir)
	}
}

// resolveExplicitBuild takes the build command verbatim. Nothing is known
// about what it produces, so the run command is mandatory and is validated
// by resolveRun.
func resolveExplicitBuild(cfg *Config, argv []string) error {
	cfg.BuildPlan = build.Plan{Program: argv[0], Args: argv[1:], Dir: cfg.Root}
	cfg.Resolver = artifact.NoneResolver{}
	return nil
}

// resolveFileBuild compiles one .go file into output_dir under a binary
// named after the source file.
func resolveFileBuild(cfg *Config, srcFile, outputDir string) error {
	if !strings.HasSuffix(srcFile, ".go") {
		return fmt.Errorf("build.file %q must be a .go source file", srcFile)
	}
	if err := ensureDir(underRoot(cfg.Root, outputDir)); err != nil {
		return err
	}
	stem := strings.TrimSuffix(filepath.Base(srcFile), ".go")
	bin := filepath.Join(outputDir, exeName(stem))
	cfg.BuildPlan = build.Plan{
		Program: "go",
		Args:    []string{"build", "-o", bin, srcFile},
		Dir:     cfg.Root,
	}
	cfg.Resolver = &artifact.StaticResolver{Path: underRoot(cfg.Root, bin)}
	return nil
}

// resolvePackageBuild synthesizes `go build` for an import path, letting
// the toolchain name the binary inside output_dir. The resolver then asks
// `go list` what that name is.
func resolvePackageBuild(cfg *Config, pkg string, fb *FileBuild, outputDir string) error {
	if pkg == "" {
		return errors.New("build.package must not be empty")
	}
	if err := ensureDir(underRoot(cfg.Root, outputDir)); err != nil {
		return err
	}
	args := []string{"build"}
	if fb.Race != nil && *fb.Race {
		args = append(args, "-race")
	}
	if len(fb.Tags) > 0 {
		args = append(args, "-tags", strings.Join(fb.Tags, ","))
	}
	args = append(args, "-o", outputDir, pkg)
	cfg.BuildPlan = build.Plan{Program: "go", Args: args, Dir: cfg.Root}
	cfg.Resolver = &artifact.GoListResolver{
		Root:      cfg.Root,
		Package:   pkg,
		OutputDir: outputDir,
	}
	return nil
}

// resolveRun fills in the run plan. An empty Program means "run whatever
// the build produced"; the orchestrator substitutes the resolved artifact
// path at start time.
func resolveRun(cfg *Config, file *File, ov Overrides) error {
	var runCmd []string
	switch {
	case ov.Run != nil:
		runCmd = strings.Fields(*ov.Run)
		if len(runCmd) == 0 {
			return errors.New("--run must name a command")
		}
	case file.Run != nil:
		runCmd = file.Run.Command
	}

	runEnv := cfg.ChildEnv
	if file.Run != nil && len(file.Run.Env) > 0 {
		runEnv = append(append([]string{}, cfg.ChildEnv...), envPairs(file.Run.Env)...)
	}

	if len(runCmd) > 0 {
		cfg.RunPlan = proc.RunPlan{
			Program: runCmd[0],
			Args:    runCmd[1:],
			Env:     runEnv,
			Dir:     cfg.Root,
		}
		return nil
	}

	if _, explicit := cfg.Resolver.(artifact.NoneResolver); explicit {
		return errors.New("an explicit build command produces no known artifact, set run.command or --run")
	}
	var args []string
	if file.Run != nil {
		args = file.Run.Args
	}
	cfg.RunPlan = proc.RunPlan{Args: args, Env: runEnv, Dir: cfg.Root}
	return nil
}

func resolveHooks(fh *FileHooks) HookSet {
	if fh == nil {
		return HookSet{}
	}
	return HookSet{
		PreBuild:    toSpec(fh.PreBuild),
		PostBuild:   toSpec(fh.PostBuild),
		PreRun:      toSpec(fh.PreRun),
		PostRun:     toSpec(fh.PostRun),
		OnBuildFail: toSpec(fh.OnBuildFail),
	}
}

func toSpec(steps [][]string) hook.Spec {
	if len(steps) == 0 {
		return nil
	}
	spec := make(hook.Spec, len(steps))
	for i, argv := range steps {
		spec[i] = hook.Step(argv)
	}
	return spec
}

func pickInt(flag, file *int, def int) int {
	if flag != nil {
		return *flag
	}
	if file != nil {
		return *file
	}
	return def
}

func pickBool(flag, file *bool, def bool) bool {
	if flag != nil {
		return *flag
	}
	if file != nil {
		return *file
	}
	return def
}

// pickStrings distinguishes nil (absent) from an explicitly empty list, so
// `exclude = []` in the file really does clear the default excludes.
func pickStrings(flag, file, def []string) []string {
	if flag != nil {
		return flag
	}
	if file != nil {
		return file
	}
	return def
}

// underRoot resolves p against root unless it is already absolute.
func underRoot(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	return nil
}

func exeName(stem string) string {
	if runtime.GOOS == "windows" {
		return stem + ".exe"
	}
	return stem
}

// envPairs renders a map as sorted KEY=value strings so the child
// environment is deterministic.
func envPairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(m))
	for _, k := range keys {
		pairs = append(pairs, k+"="+m[k])
	}
	return pairs
}
