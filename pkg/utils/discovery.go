package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/picogrid/v2v-simulations/pkg/node"
	"github.com/picogrid/v2v-simulations/pkg/recorder"
)

// RawFile is a recorded node file found under a raw data directory
type RawFile struct {
	Path     string
	Name     string
	Category node.Category
}

// DiscoverRawFiles finds the node CSV files in every category directory
// under rawDir. Missing category directories are skipped.
func DiscoverRawFiles(rawDir string) ([]RawFile, error) {
	var files []RawFile

	for _, c := range node.Categories() {
		dir := recorder.CategoryDir(rawDir, c)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}

		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != dir {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(d.Name(), ".csv") {
				files = append(files, RawFile{Path: path, Name: d.Name(), Category: c})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
	}

	return files, nil
}
