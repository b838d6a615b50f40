// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"path/filepath"
)

// FindWatchDirs recursively collects every directory under rootPath,
// rootPath included. Subtrees for which skip returns true (judged by the
// directory's path relative to relBase) are pruned from the walk.
func FindWatchDirs(rootPath, relBase string, skip func(rel string) bool) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(relBase, path)
		if relErr != nil {
			return relErr
		}
		if rel != "." && skip != nil && skip(rel) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return dirs, nil
}
