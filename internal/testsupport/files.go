package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WritePages creates count numbered page files (001.ext, 002.ext, ...) in dir
// and returns their names in order. Each page holds its own name.
func WritePages(t testing.TB, dir string, count int, ext string) []string {
	t.Helper()

	names := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("%03d.%s", i, ext)
		WriteText(t, filepath.Join(dir, name), name)
		names = append(names, name)
	}
	return names
}
