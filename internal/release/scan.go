package release

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"codeberg.org/mutker/wvasim/internal/errors"
)

// Scan lists the files below root that rules admit, as sorted
// slash-separated paths relative to root.
//
// Names starting with a dot are skipped unless permitted. A directory is
// pruned when its base name or its root-relative path is ignored.
func Scan(root string, rules Rules) ([]string, error) {
	c, err := rules.compile()
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if strings.HasPrefix(name, ".") && !c.dots[name] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if c.dirs[name] || c.dirs[rel] {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks are packed only when they resolve to a regular file.
		if !d.Type().IsRegular() {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
		}

		if !c.ignoredFile(name) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.New().Wrap(ErrScan, err)
	}

	sort.Strings(files)
	return files, nil
}
