package utils

import (
	"path/filepath"
	"strings"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// OutputPath swaps the extension of inPath for ext. An empty ext strips
// the extension; if that leaves inPath unchanged ".out" is used instead so
// the source is never overwritten.
func OutputPath(inPath, ext string) string {
	base := strings.TrimSuffix(inPath, filepath.Ext(inPath))
	out := base + ext
	if out == inPath {
		return inPath + ".out"
	}
	return out
}
