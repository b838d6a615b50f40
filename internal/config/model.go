package config

// File is the unified, format-agnostic representation of a config file.
// Every field is optional so that the merge in Resolve can tell "absent"
// from "explicitly set to the zero value".
type File struct {
	Watch      []string
	IncludeExt []string
	Exclude    []string
	DebounceMS *int
	GraceMS    *int
	Clear      *bool
	StatusPort *int
	Build      *FileBuild
	Run        *FileRun
	Hooks      *FileHooks
}

// FileBuild is the format-agnostic representation of a `build` block.
// Command, File, and Package select mutually exclusive build modes.
type FileBuild struct {
	Command   []string
	File      *string
	Package   *string
	Tags      []string
	Race      *bool
	OutputDir *string
}

// FileRun is the format-agnostic representation of a `run` block.
type FileRun struct {
	Command []string
	Args    []string
	Env     map[string]string
}

// FileHooks is the format-agnostic representation of a `hooks` block.
// Each phase holds zero or more argv vectors, run in order.
type FileHooks struct {
	PreBuild    [][]string
	PostBuild   [][]string
	PreRun      [][]string
	PostRun     [][]string
	OnBuildFail [][]string
}
