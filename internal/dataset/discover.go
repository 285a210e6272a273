package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
)

var arrayRegexp = regexp.MustCompile(`\.npy$`)

// Discover returns sorted absolute paths to serialized array files beneath root.
func Discover(root string) ([]string, error) {
	entries := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if arrayRegexp.MatchString(d.Name()) {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover arrays: %w", err)
	}
	sort.Strings(entries)
	return entries, nil
}
