package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// FindFiles walks rootDir and returns the paths of regular files whose
// base name matches pattern. Set caseSensitive false to match
// regardless of case. Results are sorted for reproducible runs.
func FindFiles(rootDir, pattern string, caseSensitive bool) ([]string, error) {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern '%v': %v", pattern, err)
	}

	var files []string
	err = filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && re.MatchString(info.Name()) {
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
