package testsupport

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// ZipEntry is one archive member used by fixture helpers.
type ZipEntry struct {
	Name   string
	Data   []byte
	Method uint16
}

// WriteZip creates an archive at path holding entries in order. Names ending
// in "/" become directory entries.
func WriteZip(t testing.TB, path string, entries ...ZipEntry) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range entries {
		writer, err := zw.CreateHeader(&zip.FileHeader{Name: entry.Name, Method: entry.Method})
		if err != nil {
			t.Fatalf("create zip entry %s: %v", entry.Name, err)
		}
		if len(entry.Data) > 0 {
			if _, err := writer.Write(entry.Data); err != nil {
				t.Fatalf("write zip entry %s: %v", entry.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadZip returns the entries of the archive at path in order.
func ReadZip(t testing.TB, path string) []ZipEntry {
	t.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip %s: %v", path, err)
	}
	defer zr.Close()

	entries := make([]ZipEntry, 0, len(zr.File))
	for _, file := range zr.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", file.Name, err)
		}
		entries = append(entries, ZipEntry{Name: file.Name, Data: data, Method: file.Method})
	}
	return entries
}

// ZipNames returns the entry names of the archive at path in order.
func ZipNames(t testing.TB, path string) []string {
	t.Helper()

	entries := ReadZip(t, path)
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name
	}
	return names
}

// RawEntries returns each entry's compressed bytes keyed by name.
func RawEntries(t testing.TB, path string) map[string][]byte {
	t.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip %s: %v", path, err)
	}
	defer zr.Close()

	out := make(map[string][]byte, len(zr.File))
	for _, file := range zr.File {
		rc, err := file.OpenRaw()
		if err != nil {
			t.Fatalf("open raw entry %s: %v", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read raw entry %s: %v", file.Name, err)
		}
		out[file.Name] = data
	}
	return out
}
