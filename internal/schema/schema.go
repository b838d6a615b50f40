package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// Root represents the top-level structure of a reload.hcl file. Every
// attribute is optional; the config package fills in defaults for whatever
// the user leaves out.
type Root struct {
	Watch      []string `hcl:"watch,optional"`
	IncludeExt []string `hcl:"include_ext,optional"`
	Exclude    []string `hcl:"exclude,optional"`
	DebounceMS *int     `hcl:"debounce_ms,optional"`
	GraceMS    *int     `hcl:"grace_ms,optional"`
	Clear      *bool    `hcl:"clear,optional"`
	StatusPort *int     `hcl:"status_port,optional"`
	Build      *Build   `hcl:"build,block"`
	Run        *Run     `hcl:"run,block"`
	Hooks      *Hooks   `hcl:"hooks,block"`
}

// Build represents a `build` block. Command, file, and package select
// mutually exclusive build modes; validation happens after translation.
type Build struct {
	Command   []string `hcl:"command,optional"`
	File      *string  `hcl:"file,optional"`
	Package   *string  `hcl:"package,optional"`
	Tags      []string `hcl:"tags,optional"`
	Race      *bool    `hcl:"race,optional"`
	OutputDir *string  `hcl:"output_dir,optional"`
}

// Run represents a `run` block. Env is kept as a raw expression so the
// loader can accept numbers and booleans alongside strings and convert
// them all to environment values.
type Run struct {
	Command []string       `hcl:"command,optional"`
	Args    []string       `hcl:"args,optional"`
	Env     hcl.Expression `hcl:"env,optional"`
}

// Hooks represents a `hooks` block: per-phase lists of argv vectors.
type Hooks struct {
	PreBuild    [][]string `hcl:"pre_build,optional"`
	PostBuild   [][]string `hcl:"post_build,optional"`
	PreRun      [][]string `hcl:"pre_run,optional"`
	PostRun     [][]string `hcl:"post_run,optional"`
	OnBuildFail [][]string `hcl:"on_build_fail,optional"`
}
