package pipeline

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Discover walks root, collects files whose lowercased extension is in
// exts, prunes root/prune (the backups directory) when prune is set, and
// returns the paths sorted lexicographically for deterministic processing
// order.
func Discover(root string, exts map[string]bool, prune string) ([]string, error) {
	var pruned string
	if prune != "" {
		pruned = filepath.Join(root, prune)
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == pruned {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if exts[ext] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
