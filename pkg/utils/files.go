package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the extension of path for ext, appending ext when path
// has none.
func ReplaceExt(path, ext string) string {
	old := filepath.Ext(path)
	if old == "" {
		return path + ext
	}
	return strings.TrimSuffix(path, old) + ext
}

// WriteFileWith creates path, hands it to write and closes it. The first
// error wins.
func WriteFileWith(path string, write func(w io.Writer) error) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(fp); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}
