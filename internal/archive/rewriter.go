package archive

import (
	"archive/zip"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"

	"comictag/internal/comicinfo"
	"comictag/internal/fileutil"
	"comictag/internal/logging"
)

// Compression methods for entries the rewriter creates itself.
const (
	CompressionStore   = "store"
	CompressionDeflate = "deflate"
)

// Options configures a Rewriter.
type Options struct {
	// Compression applies to the metadata document and to files packaged
	// from folders. Copied archive entries keep their original encoding.
	Compression string
	// Now stamps newly created entries; defaults to time.Now.
	Now func() time.Time
}

// Rewriter produces new archives from a source and a merged record.
type Rewriter struct {
	method uint16
	now    func() time.Time
	logger *slog.Logger
}

// NewRewriter validates opts and returns a ready Rewriter.
func NewRewriter(opts Options, logger *slog.Logger) (*Rewriter, error) {
	method := zip.Store
	switch strings.ToLower(strings.TrimSpace(opts.Compression)) {
	case "", CompressionStore:
	case CompressionDeflate:
		method = zip.Deflate
	default:
		return nil, fmt.Errorf("archive: unsupported compression %q", opts.Compression)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Rewriter{
		method: method,
		now:    now,
		logger: logging.NewComponentLogger(logger, "archive"),
	}, nil
}

// Rewrite writes dst from src and rec using mode. The destination is only
// replaced when the whole archive was written; on any error, including
// cancellation of ctx, the temporary file is removed and the error returned.
func (r *Rewriter) Rewrite(ctx context.Context, mode Mode, src, dst string, rec comicinfo.Record) error {
	doc, err := comicinfo.Generate(rec)
	if err != nil {
		return fmt.Errorf("generate metadata: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var stats rewriteStats
	switch mode {
	case ModeInPlace:
		location := rec.OriginalLocation
		if strings.TrimSpace(location) == "" {
			location = comicinfo.DocumentName
		}
		stats, err = r.rewriteArchive(ctx, src, dst, func(zr *zip.Reader, zw *zip.Writer) (rewriteStats, error) {
			return r.copyInPlace(ctx, zr, zw, doc, location)
		})
	case ModeFlatten:
		stats, err = r.rewriteArchive(ctx, src, dst, func(zr *zip.Reader, zw *zip.Writer) (rewriteStats, error) {
			return r.copyFlattened(ctx, zr, zw, doc)
		})
	case ModeFolderToArchive:
		stats, err = r.packFolder(ctx, src, dst, doc)
	default:
		return fmt.Errorf("archive: unsupported mode %s", mode)
	}
	if err != nil {
		return err
	}

	r.logger.Debug("archive rewritten",
		logging.String(logging.FieldMode, mode.String()),
		logging.String("source", src),
		logging.String("destination", dst),
		logging.Int("entries", stats.written),
		logging.Int("dropped", stats.dropped),
	)
	return nil
}

type rewriteStats struct {
	written int
	dropped int
}

func (r *Rewriter) newWriter(w io.Writer) *zip.Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	return zw
}

// rewriteArchive wraps an archive-to-archive copy in the temp/commit cycle.
func (r *Rewriter) rewriteArchive(ctx context.Context, src, dst string, copyFn func(*zip.Reader, *zip.Writer) (rewriteStats, error)) (rewriteStats, error) {
	info, err := os.Stat(src)
	if err != nil {
		return rewriteStats{}, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return rewriteStats{}, fmt.Errorf("%s: %w", src, ErrNotArchive)
	}
	zr, err := openArchive(src)
	if err != nil {
		return rewriteStats{}, err
	}
	defer zr.Close()

	return r.commit(dst, func(zw *zip.Writer) (rewriteStats, error) {
		return copyFn(&zr.Reader, zw)
	})
}

func (r *Rewriter) commit(dst string, fill func(*zip.Writer) (rewriteStats, error)) (rewriteStats, error) {
	out, err := fileutil.CreateAtomic(dst, 0o644)
	if err != nil {
		return rewriteStats{}, err
	}
	zw := r.newWriter(out)
	stats, err := fill(zw)
	if err != nil {
		out.Abort()
		return rewriteStats{}, err
	}
	if err := zw.Close(); err != nil {
		out.Abort()
		return rewriteStats{}, fmt.Errorf("finish archive: %w", err)
	}
	if err := out.Commit(); err != nil {
		return rewriteStats{}, err
	}
	return stats, nil
}

func (r *Rewriter) writeDocument(zw *zip.Writer, name string, doc []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   r.method,
		Modified: r.now(),
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(doc); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (r *Rewriter) copyInPlace(ctx context.Context, zr *zip.Reader, zw *zip.Writer, doc []byte, location string) (rewriteStats, error) {
	var stats rewriteStats
	written := false
	for _, file := range zr.File {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if !file.FileInfo().IsDir() && IsDocumentName(file.Name) {
			if written {
				stats.dropped++
				continue
			}
			if err := r.writeDocument(zw, location, doc); err != nil {
				return stats, err
			}
			written = true
			stats.written++
			continue
		}
		if err := zw.Copy(file); err != nil {
			return stats, fmt.Errorf("copy entry %s: %w", file.Name, err)
		}
		stats.written++
	}
	if !written {
		if err := r.writeDocument(zw, comicinfo.DocumentName, doc); err != nil {
			return stats, err
		}
		stats.written++
	}
	return stats, nil
}

func (r *Rewriter) copyFlattened(ctx context.Context, zr *zip.Reader, zw *zip.Writer, doc []byte) (rewriteStats, error) {
	var stats rewriteStats
	seen := make(map[string]struct{}, len(zr.File))
	for _, file := range zr.File {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if file.FileInfo().IsDir() {
			continue
		}
		base := path.Base(strings.ReplaceAll(file.Name, "\\", "/"))
		if base == "." || base == "/" || IsDocumentName(base) {
			stats.dropped++
			continue
		}
		if _, dup := seen[base]; dup {
			stats.dropped++
			continue
		}
		seen[base] = struct{}{}

		if err := copyRenamed(zw, file, base); err != nil {
			return stats, err
		}
		stats.written++
	}
	if err := r.writeDocument(zw, comicinfo.DocumentName, doc); err != nil {
		return stats, err
	}
	stats.written++
	return stats, nil
}

// copyRenamed copies an entry's compressed bytes under a new name.
func copyRenamed(zw *zip.Writer, file *zip.File, name string) error {
	header := file.FileHeader
	header.Name = name
	header.Extra = stripUnicodePathExtra(header.Extra)
	w, err := zw.CreateRaw(&header)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	rc, err := file.OpenRaw()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", file.Name, err)
	}
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("copy entry %s: %w", file.Name, err)
	}
	return nil
}

// unicodePathExtraID is the Info-ZIP Unicode Path field, which carries the
// old entry name and would override the new one in readers that honor it.
const unicodePathExtraID = 0x7075

func stripUnicodePathExtra(extra []byte) []byte {
	if len(extra) == 0 {
		return extra
	}
	out := make([]byte, 0, len(extra))
	for rest := extra; len(rest) >= 4; {
		id := binary.LittleEndian.Uint16(rest[0:2])
		size := int(binary.LittleEndian.Uint16(rest[2:4]))
		if 4+size > len(rest) {
			out = append(out, rest...)
			break
		}
		if id != unicodePathExtraID {
			out = append(out, rest[:4+size]...)
		}
		rest = rest[4+size:]
	}
	return out
}

func (r *Rewriter) packFolder(ctx context.Context, src, dst string, doc []byte) (rewriteStats, error) {
	info, err := os.Stat(src)
	if err != nil {
		return rewriteStats{}, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return rewriteStats{}, fmt.Errorf("%s: %w", src, ErrNotDirectory)
	}

	return r.commit(dst, func(zw *zip.Writer) (rewriteStats, error) {
		var stats rewriteStats
		if err := r.writeDocument(zw, comicinfo.DocumentName, doc); err != nil {
			return stats, err
		}
		stats.written++

		absDst, _ := filepath.Abs(dst)
		err := filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if IsDocumentName(d.Name()) {
				stats.dropped++
				return nil
			}
			if abs, _ := filepath.Abs(p); abs == absDst || isTempFor(abs, absDst) {
				return nil
			}
			rel, err := filepath.Rel(src, p)
			if err != nil {
				return err
			}
			if err := r.addFile(zw, p, filepath.ToSlash(rel)); err != nil {
				return err
			}
			stats.written++
			return nil
		})
		return stats, err
	})
}

// isTempFor reports whether p is a temporary file created for dst.
func isTempFor(p, dst string) bool {
	if filepath.Dir(p) != filepath.Dir(dst) {
		return false
	}
	base := filepath.Base(p)
	return strings.HasPrefix(base, "."+filepath.Base(dst)+".") && strings.HasSuffix(base, ".tmp")
}

func (r *Rewriter) addFile(zw *zip.Writer, fullPath, name string) error {
	info, err := os.Stat(fullPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", fullPath, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("header for %s: %w", fullPath, err)
	}
	header.Name = name
	header.Method = r.method

	in, err := os.Open(fullPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", fullPath, err)
	}
	defer in.Close()

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("copy %s: %w", fullPath, err)
	}
	return nil
}

// IsCancellation reports whether err came from a cancelled or expired context.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
