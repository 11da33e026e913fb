package tools

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
)

// Extensions of the text point files the builder reads
var PointFileExtensions = []string{".xyz", ".txt", ".csv"}

type FileFinder interface {
	// GetPointFilesToProcess returns input itself unless folder processing is enabled.
	GetPointFilesToProcess(input string, folder, recursive bool) ([]string, error)

	// FindEptDatasets returns the folders holding an ept.json, sorted by path.
	FindEptDatasets(input string, recursive bool) ([]string, error)
}

type StandardFileFinder struct{}

func NewStandardFileFinder() FileFinder {
	return &StandardFileFinder{}
}

func (f *StandardFileFinder) GetPointFilesToProcess(input string, folder, recursive bool) ([]string, error) {
	if !folder {
		return []string{input}, nil
	}

	var files []string
	err := f.walk(input, recursive, func(path string, info os.FileInfo) {
		if isPointFile(info.Name()) {
			files = append(files, path)
		}
	})
	return files, err
}

func (f *StandardFileFinder) FindEptDatasets(input string, recursive bool) ([]string, error) {
	var datasets []string
	err := f.walk(input, recursive, func(path string, info os.FileInfo) {
		if info.Name() == ept.RootFileName {
			datasets = append(datasets, filepath.Dir(path))
		}
	})
	sort.Strings(datasets)
	return datasets, err
}

// walk visits the regular files under input, descending into subfolders only when recursive.
func (f *StandardFileFinder) walk(input string, recursive bool, visit func(path string, info os.FileInfo)) error {
	baseInfo, err := os.Stat(input)
	if err != nil {
		return errors.Wrapf(err, "input %s", input)
	}
	if !baseInfo.IsDir() {
		return errors.Errorf("input %s is not a folder", input)
	}

	return filepath.Walk(
		input,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if !recursive && !os.SameFile(info, baseInfo) {
					return filepath.SkipDir
				}
				// EPT data folders never hold datasets
				if info.Name() == ept.DataFolder || info.Name() == ept.HierarchyFolder {
					return filepath.SkipDir
				}
				return nil
			}
			visit(path, info)
			return nil
		},
	)
}

func isPointFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range PointFileExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
