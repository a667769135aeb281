package chunker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// PartName returns the name of part index (1-based) of path, zero-padded
// to width digits: PartName("out/T.csv", 2, 3) == "out/T.002.csv".
func PartName(path string, index, width int) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s.%0*d%s", stem, width, index, ext)
}

// ExistingParts lists part files of path that are already on disk, sorted.
func ExistingParts(path string) ([]string, error) {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var parts []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) < len(stem)+len(ext)+4 {
			continue
		}
		if !strings.HasPrefix(name, stem+".") || !strings.HasSuffix(name, ext) {
			continue
		}
		if isPartNumber(name[len(stem)+1 : len(name)-len(ext)]) {
			parts = append(parts, filepath.Join(dir, name))
		}
	}
	sort.Strings(parts)
	return parts, nil
}

// RemoveParts removes all part files of path.
func RemoveParts(path string) error {
	parts, err := ExistingParts(path)
	if err != nil {
		return err
	}
	return removeFiles(parts)
}

func isPartNumber(s string) bool {
	if len(s) < 3 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// removeFiles удаляет все файлы и собирает ошибки
func removeFiles(paths []string) error {
	var result *multierror.Error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
