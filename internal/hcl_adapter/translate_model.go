// This file contains the logic for translating HCL schema structs into the
// format-agnostic configuration model defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/reloadgo/internal/config"
	"github.com/vk/reloadgo/internal/ctxlog"
	"github.com/vk/reloadgo/internal/schema"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// translateRoot converts the HCL-specific schema into the agnostic model.
func (l *Loader) translateRoot(ctx context.Context, root *schema.Root) (*config.File, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Translating HCL config to internal model.")

	file := &config.File{
		Watch:      root.Watch,
		IncludeExt: root.IncludeExt,
		Exclude:    root.Exclude,
		DebounceMS: root.DebounceMS,
		GraceMS:    root.GraceMS,
		Clear:      root.Clear,
		StatusPort: root.StatusPort,
	}

	if root.Build != nil {
		file.Build = &config.FileBuild{
			Command:   root.Build.Command,
			File:      root.Build.File,
			Package:   root.Build.Package,
			Tags:      root.Build.Tags,
			Race:      root.Build.Race,
			OutputDir: root.Build.OutputDir,
		}
	}

	if root.Run != nil {
		env, err := translateEnv(root.Run.Env)
		if err != nil {
			return nil, err
		}
		file.Run = &config.FileRun{
			Command: root.Run.Command,
			Args:    root.Run.Args,
			Env:     env,
		}
	}

	if root.Hooks != nil {
		file.Hooks = &config.FileHooks{
			PreBuild:    root.Hooks.PreBuild,
			PostBuild:   root.Hooks.PostBuild,
			PreRun:      root.Hooks.PreRun,
			PostRun:     root.Hooks.PostRun,
			OnBuildFail: root.Hooks.OnBuildFail,
		}
	}

	return file, nil
}

// translateEnv evaluates the raw env expression and converts every value to
// a string, so numbers and booleans work as environment values alongside
// plain strings.
func translateEnv(expr hcl.Expression) (map[string]string, error) {
	if expr == nil {
		return nil, nil
	}

	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("run.env: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("run.env must be an object of key = value pairs, got %s", val.Type().FriendlyName())
	}

	values := val.AsValueMap()
	env := make(map[string]string, len(values))
	for key, v := range values {
		converted, err := convert.Convert(v, cty.String)
		if err != nil {
			return nil, fmt.Errorf("run.env %q: %w", key, err)
		}
		if converted.IsNull() {
			continue
		}
		env[key] = converted.AsString()
	}
	return env, nil
}
