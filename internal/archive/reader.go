package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"strings"

	"comictag/internal/comicinfo"
)

// maxDocumentSize bounds how much of a metadata entry is read into memory.
const maxDocumentSize = 16 << 20

var (
	// ErrNotArchive reports a source that is not a readable zip archive.
	ErrNotArchive = errors.New("archive: not a zip archive")
	// ErrNotDirectory reports a folder source that is not a directory.
	ErrNotDirectory = errors.New("archive: not a directory")
)

// Document is the metadata entry found inside an archive.
type Document struct {
	Data     []byte
	Location string
	Found    bool
}

// IsDocumentName reports whether an entry or file path names the metadata
// document. Only the final path element is compared, case-insensitively.
func IsDocumentName(name string) bool {
	name = strings.TrimRight(strings.ReplaceAll(name, "\\", "/"), "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return strings.EqualFold(name, comicinfo.DocumentName)
}

func openArchive(path string) (*zip.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) {
			return nil, fmt.Errorf("open %s: %w: %w", path, ErrNotArchive, err)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return zr, nil
}

// ReadDocument returns the first metadata entry of the archive at path.
func ReadDocument(path string) (Document, error) {
	zr, err := openArchive(path)
	if err != nil {
		return Document{}, err
	}
	defer zr.Close()

	for _, file := range zr.File {
		if file.FileInfo().IsDir() || !IsDocumentName(file.Name) {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return Document{}, fmt.Errorf("open entry %s: %w", file.Name, err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxDocumentSize+1))
		rc.Close()
		if err != nil {
			return Document{}, fmt.Errorf("read entry %s: %w", file.Name, err)
		}
		if len(data) > maxDocumentSize {
			return Document{}, fmt.Errorf("entry %s exceeds %d bytes", file.Name, maxDocumentSize)
		}
		return Document{Data: data, Location: file.Name, Found: true}, nil
	}
	return Document{}, nil
}

// ReadRecord decodes the archive's metadata document. A missing document
// yields an empty record. A malformed one yields an empty record that still
// remembers the entry location, plus the decode error so callers can log it.
func ReadRecord(path string) (comicinfo.Record, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return comicinfo.Record{}, err
	}
	if !doc.Found {
		return comicinfo.Record{}, nil
	}
	rec, err := comicinfo.Decode(doc.Data)
	if err != nil {
		return comicinfo.Record{OriginalLocation: doc.Location}, err
	}
	rec.OriginalLocation = doc.Location
	return rec, nil
}
