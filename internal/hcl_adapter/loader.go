package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/reloadgo/internal/config"
	"github.com/vk/reloadgo/internal/ctxlog"
	"github.com/vk/reloadgo/internal/schema"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses a single config file and translates it into the
// format-agnostic File model. Unknown attributes and blocks are rejected,
// so typos surface at startup instead of silently doing nothing.
func (l *Loader) Load(ctx context.Context, path string) (*config.File, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var root schema.Root
	diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	file, err := l.translateRoot(ctx, &root)
	if err != nil {
		return nil, fmt.Errorf("in %s: %w", path, err)
	}

	logger.Debug("HCL loading complete.", "path", path)
	return file, nil
}
