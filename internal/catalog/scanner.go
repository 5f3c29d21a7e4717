package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"comictag/internal/archive"
	"comictag/internal/comicinfo"
	"comictag/internal/config"
	"comictag/internal/logging"
	"comictag/internal/store"
)

// ErrRootMissing reports a scan root that does not exist or is not a directory.
var ErrRootMissing = errors.New("catalog: source root is not a directory")

// Scanner walks source roots and builds catalogs.
type Scanner struct {
	archiveExts map[string]struct{}
	pageExts    map[string]struct{}
	allowFiles  map[string]struct{}
	store       *store.Store
	logger      *slog.Logger
}

// NewScanner builds a scanner from the scan settings. A nil store skips
// publication.
func NewScanner(cfg config.Scan, st *store.Store, logger *slog.Logger) *Scanner {
	return &Scanner{
		archiveExts: extensionSet(cfg.ArchiveExts),
		pageExts:    extensionSet(cfg.PageExts),
		allowFiles:  nameSet(cfg.AllowFiles),
		store:       st,
		logger:      logging.NewComponentLogger(logger, "catalog"),
	}
}

func extensionSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if !strings.HasPrefix(v, ".") {
			v = "." + v
		}
		set[v] = struct{}{}
	}
	return set
}

func nameSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// Scan walks root and returns the discovered items in discovery order: a
// directory's files in lexical order, then its subdirectories. The result is
// published to the store before it is returned.
func (s *Scanner) Scan(ctx context.Context, root string) (*Catalog, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is a file", root)
		}
		return nil, fmt.Errorf("%w: %w", ErrRootMissing, err)
	}

	cat := &Catalog{
		Root:    root,
		Records: make(map[string]comicinfo.Record),
		Order:   config.SortManual,
	}
	if err := s.walk(ctx, root, "", cat); err != nil {
		return nil, err
	}

	s.logger.Info("scan complete",
		logging.String("root", root),
		logging.Int("items", len(cat.Items)),
	)
	Publish(s.store, cat)
	return cat, nil
}

func (s *Scanner) walk(ctx context.Context, dir, rel string, cat *Catalog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if rel == "" {
			return fmt.Errorf("catalog: list root: %w", err)
		}
		logging.WarnWithContext(s.logger, "catalog: skip unreadable directory", "catalog_dir_skipped",
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check directory permissions"),
			logging.String(logging.FieldImpact, "items below this directory are not listed"),
		)
		return nil
	}

	var (
		subdirs   []string
		pages     int
		documents []string
		folder    = rel != ""
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			subdirs = append(subdirs, name)
			folder = false
			continue
		}
		lower := strings.ToLower(name)
		ext := filepath.Ext(lower)
		switch {
		case s.isArchive(ext) && entry.Type().IsRegular():
			s.addArchive(filepath.Join(dir, name), joinRel(rel, name), cat)
			folder = false
		case s.isPage(ext):
			pages++
		case archive.IsDocumentName(name):
			documents = append(documents, name)
		case s.isAllowed(lower):
		default:
			folder = false
		}
	}

	if folder && pages > 0 && len(documents) <= 1 {
		s.addFolder(dir, rel, documents, cat)
	}

	for _, name := range subdirs {
		if err := s.walk(ctx, filepath.Join(dir, name), joinRel(rel, name), cat); err != nil {
			return err
		}
	}
	return nil
}

func joinRel(rel, name string) string {
	if rel == "" {
		return name
	}
	return rel + "/" + name
}

func (s *Scanner) isArchive(ext string) bool {
	_, ok := s.archiveExts[ext]
	return ok
}

func (s *Scanner) isPage(ext string) bool {
	_, ok := s.pageExts[ext]
	return ok
}

func (s *Scanner) isAllowed(lowerName string) bool {
	_, ok := s.allowFiles[lowerName]
	return ok
}

func (s *Scanner) addArchive(full, rel string, cat *Catalog) {
	item := Item{RelPath: rel, Kind: KindArchive}
	rec, err := archive.ReadRecord(full)
	if err != nil {
		item.Problem = err.Error()
		s.warnUnreadable(rel, err)
	}
	cat.Items = append(cat.Items, item)
	cat.Records[rel] = rec
}

func (s *Scanner) addFolder(dir, rel string, documents []string, cat *Catalog) {
	item := Item{RelPath: rel, Kind: KindFolder}
	var rec comicinfo.Record
	if len(documents) == 1 {
		data, err := os.ReadFile(filepath.Join(dir, documents[0]))
		if err == nil {
			rec, err = comicinfo.Decode(data)
		}
		if err != nil {
			rec = comicinfo.Record{}
			item.Problem = err.Error()
			s.warnUnreadable(rel, err)
		}
	}
	cat.Items = append(cat.Items, item)
	cat.Records[rel] = rec
}

func (s *Scanner) warnUnreadable(rel string, err error) {
	logging.WarnWithContext(s.logger, "catalog: metadata unreadable; using empty record", "catalog_metadata_unreadable",
		logging.String(logging.FieldItem, rel),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "inspect the archive or its ComicInfo.xml"),
		logging.String(logging.FieldImpact, "existing metadata is not shown and will be replaced on write"),
	)
}
