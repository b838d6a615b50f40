package config

import (
	"time"

	"github.com/vk/reloadgo/internal/artifact"
	"github.com/vk/reloadgo/internal/build"
	"github.com/vk/reloadgo/internal/hook"
	"github.com/vk/reloadgo/internal/proc"
	"github.com/vk/reloadgo/internal/watch"
)

const (
	// DefaultFileName is the config file looked up under the project root
	// when no explicit path is given.
	DefaultFileName = "reload.hcl"

	// ActiveEnvVar marks child process environments so a supervised binary
	// that happens to be this tool does not start a nested session.
	ActiveEnvVar = "RELOADGO_ACTIVE"

	// DefaultDebounce is the quiet period that must elapse after the last
	// file system event before a rebuild cycle fires.
	DefaultDebounce = 250 * time.Millisecond

	// DefaultGrace is how long a process group gets to exit after the
	// polite termination signal before it is killed.
	DefaultGrace = 5 * time.Second

	// DefaultOutputDir receives build artifacts in package mode.
	DefaultOutputDir = "tmp"

	// DefaultPackage is the package built when the build block is absent.
	DefaultPackage = "."
)

// Defaults that are slices live here so Resolve and the tests share them.
var (
	DefaultWatch      = []string{"."}
	DefaultIncludeExt = []string{"go", "mod"}
	DefaultExclude    = []string{"tmp/**", ".git/**", "vendor/**"}
)

// Config is the immutable session snapshot produced by Resolve. Everything
// downstream (watcher, debouncer, orchestrator, status server) reads from
// it and nothing mutates it after startup.
type Config struct {
	Root       string
	WatchPaths []string
	Filter     *watch.Filter
	Debounce   time.Duration
	Grace      time.Duration
	Clear      bool
	StatusPort int

	BuildPlan build.Plan
	Resolver  artifact.Resolver
	RunPlan   proc.RunPlan
	Hooks     HookSet

	// ChildEnv is the environment given to hooks and builds. The run
	// process additionally gets the env entries from the run block.
	ChildEnv []string
}

// HookSet holds the resolved hook specs, one per lifecycle phase.
type HookSet struct {
	PreBuild    hook.Spec
	PostBuild   hook.Spec
	PreRun      hook.Spec
	PostRun     hook.Spec
	OnBuildFail hook.Spec
}

// Overrides carries per-field command-line overrides into Resolve. A nil
// pointer (or nil slice) means the flag was not given, so the file value,
// and failing that the default, applies.
type Overrides struct {
	Watch      []string
	DebounceMS *int
	GraceMS    *int
	Clear      *bool
	StatusPort *int

	// Build and Run are whitespace-split into argv vectors and, when set,
	// force explicit mode over whatever the file configures.
	Build *string
	Run   *string

	// Package switches to package mode for the named import path.
	Package *string
}
