package watch

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// manifestNames are always relevant regardless of the extension filter,
// since dependency changes force a rebuild just like source edits.
var manifestNames = map[string]struct{}{
	"go.mod": {},
	"go.sum": {},
}

// Filter decides which file system changes are relevant enough to count
// toward a rebuild cycle.
type Filter struct {
	includeExt map[string]struct{}
	exclude    []string
}

// NewFilter builds a filter from raw configuration. Extensions are
// normalized via NormalizeExt, and exclude patterns are validated
// doublestar globs matched against slash-separated paths relative to the
// project root.
func NewFilter(includeExt, exclude []string) (*Filter, error) {
	f := &Filter{
		includeExt: make(map[string]struct{}, len(includeExt)),
		exclude:    exclude,
	}
	for _, ext := range includeExt {
		if norm := NormalizeExt(ext); norm != "" {
			f.includeExt[norm] = struct{}{}
		}
	}
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return f, nil
}

// NormalizeExt canonicalizes a file extension for matching, so "GO",
// ".go", and "go" all select the same files.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimLeft(ext, "."))
}

// Relevant reports whether a change at rel should trigger a rebuild.
// Exclusion wins over everything else, manifests always count, and
// otherwise the extension must be on the include list. An empty include
// list accepts any extension, but files without one never match.
func (f *Filter) Relevant(rel string) bool {
	rel = filepath.ToSlash(rel)
	if f.excluded(rel) {
		return false
	}
	base := path.Base(rel)
	if _, ok := manifestNames[base]; ok {
		return true
	}
	ext := NormalizeExt(path.Ext(base))
	if ext == "" {
		return false
	}
	if len(f.includeExt) == 0 {
		return true
	}
	_, ok := f.includeExt[ext]
	return ok
}

// SkipDir reports whether an entire directory subtree can be left
// unwatched. A pattern like "vendor/**" names a directory's contents
// rather than the directory itself, so the check also probes with a
// synthetic child path.
func (f *Filter) SkipDir(rel string) bool {
	rel = filepath.ToSlash(rel)
	return f.excluded(rel) || f.excluded(path.Join(rel, "_"))
}

func (f *Filter) excluded(rel string) bool {
	for _, pattern := range f.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
