package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestReplaceExt(t *testing.T) {
	tests := []struct {
		path, ext, want string
	}{
		{"exp.yaml", ".vcd", "exp.vcd"},
		{"runs/hyscore.v2.yaml", ".txt", "runs/hyscore.v2.txt"},
		{"noext", ".vcd", "noext.vcd"},
	}
	for _, tt := range tests {
		if got := ReplaceExt(tt.path, tt.ext); got != tt.want {
			t.Errorf("ReplaceExt(%q, %q) = %q; want %q", tt.path, tt.ext, got, tt.want)
		}
	}
}

func TestWriteFileWith(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	err := WriteFileWith(path, func(w io.Writer) error {
		_, err := fmt.Fprint(w, "hello")
		return err
	})
	if err != nil {
		t.Fatalf("WriteFileWith: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello" {
		t.Errorf("file = %q, %v", data, err)
	}

	boom := errors.New("boom")
	if err := WriteFileWith(path, func(io.Writer) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("WriteFileWith error = %v; want %v", err, boom)
	}
	if err := WriteFileWith(filepath.Join(t.TempDir(), "missing", "x"), func(io.Writer) error { return nil }); err == nil {
		t.Errorf("WriteFileWith into a missing directory succeeded")
	}
}
