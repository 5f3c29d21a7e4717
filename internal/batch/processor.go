package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"comictag/internal/archive"
	"comictag/internal/catalog"
	"comictag/internal/comicinfo"
	"comictag/internal/config"
	"comictag/internal/journal"
	"comictag/internal/logging"
	"comictag/internal/merge"
	"comictag/internal/placeholder"
	"comictag/internal/store"
)

// Rewriter writes one output archive.
type Rewriter interface {
	Rewrite(ctx context.Context, mode archive.Mode, src, dst string, rec comicinfo.Record) error
}

// Recorder persists finished runs.
type Recorder interface {
	RecordRun(ctx context.Context, run journal.Run) error
}

// Request describes one batch run.
type Request struct {
	SourceRoot string
	OutputRoot string
	// Items is the selection in processing order.
	Items []catalog.Item
	// Records holds the cached original record per item path. Missing
	// entries count as empty records.
	Records map[string]comicinfo.Record
	Edits   merge.Edits
	// Namespaces are bound on every merged record so prefixed edits can be
	// written.
	Namespaces []comicinfo.Namespace
	// Mode applies to archive items: in_place or flatten. Folder items are
	// always packaged.
	Mode      string
	OutputExt string
	// Extra placeholder values shared by every item.
	Extra placeholder.Context
}

// Processor runs batch requests.
type Processor struct {
	rewriter Rewriter
	store    *store.Store
	recorder Recorder
	lockPath string
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Processor.
type Option func(*Processor)

// WithStore publishes progress into st.
func WithStore(st *store.Store) Option {
	return func(p *Processor) { p.store = st }
}

// WithRecorder records finished runs.
func WithRecorder(r Recorder) Option {
	return func(p *Processor) { p.recorder = r }
}

// WithLockPath enables the single-writer lock at path.
func WithLockPath(path string) Option {
	return func(p *Processor) { p.lockPath = path }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logging.NewComponentLogger(logger, "batch") }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithIDGenerator overrides run identifier generation.
func WithIDGenerator(fn func() string) Option {
	return func(p *Processor) { p.newID = fn }
}

// New returns a processor that writes through rewriter.
func New(rewriter Rewriter, opts ...Option) *Processor {
	p := &Processor{
		rewriter: rewriter,
		logger:   logging.NewComponentLogger(nil, "batch"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run validates req, then processes every item in order. The returned error
// is non-nil only when the run could not start; per-item failures and
// cancellation are reported in the Report.
func (p *Processor) Run(ctx context.Context, req Request) (*Report, error) {
	req.OutputExt = normalizeExt(req.OutputExt)
	mode, err := p.validate(req)
	if err != nil {
		return nil, err
	}

	unlock, err := p.acquire()
	if err != nil {
		return nil, err
	}
	defer unlock()

	report := &Report{
		RunID:      p.newID(),
		StartedAt:  p.now(),
		Mode:       mode.String(),
		SourceRoot: req.SourceRoot,
		OutputRoot: req.OutputRoot,
		Outcomes:   make([]Outcome, 0, len(req.Items)),
	}
	ctx = logging.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.String(logging.FieldMode, report.Mode),
		logging.Int("items", len(req.Items)),
		logging.Bool("journaled", p.recorder != nil),
	)

	total := len(req.Items)
	claims := destinationClaims{}
	p.publishProgress(report, total, "")
	for i, item := range req.Items {
		if ctx.Err() != nil {
			p.cancelRemaining(report, req, i)
			break
		}
		outcome := p.processItem(ctx, req, mode, claims, item, i+1, total)
		report.Outcomes = append(report.Outcomes, outcome)
		p.publishProgress(report, total, item.RelPath)
		if outcome.Status == StatusCancelled {
			p.cancelRemaining(report, req, i+1)
			break
		}
	}
	report.FinishedAt = p.now()
	p.publishProgress(report, total, "")

	succeeded, failed, cancelled := report.Counts()
	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("succeeded", succeeded),
		logging.Int("failed", failed),
		logging.Int("cancelled", cancelled),
		logging.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)

	if p.store != nil {
		p.store.Set(store.KeyLastRun, report.RunID)
	}
	if p.recorder != nil {
		if err := p.recorder.RecordRun(context.WithoutCancel(ctx), report.Run()); err != nil {
			logging.WarnWithContext(logger, "batch: journal write failed", "journal_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the state directory and journal.db permissions"),
				logging.String(logging.FieldImpact, "this run is missing from history"),
			)
		}
	}
	return report, nil
}

func (p *Processor) validate(req Request) (archive.Mode, error) {
	if strings.TrimSpace(req.SourceRoot) == "" {
		return 0, invalid("source root", "not set")
	}
	if info, err := os.Stat(req.SourceRoot); err != nil || !info.IsDir() {
		return 0, invalid("source root", "%s is not a directory", req.SourceRoot)
	}
	if strings.TrimSpace(req.OutputRoot) == "" {
		return 0, invalid("output root", "not set")
	}
	if len(req.Items) == 0 {
		return 0, invalid("selection", "no items selected")
	}
	if !slices.Contains(config.OutputExtensions(), req.OutputExt) {
		return 0, invalid("output extension", "%q is not one of %s", req.OutputExt, strings.Join(config.OutputExtensions(), ", "))
	}
	mode, err := archive.ParseMode(req.Mode)
	if err != nil || mode == archive.ModeFolderToArchive {
		return 0, invalid("mode", "%q must be %s or %s", req.Mode, archive.ModeInPlace, archive.ModeFlatten)
	}
	if p.rewriter == nil {
		return 0, invalid("rewriter", "not configured")
	}
	return mode, nil
}

func (p *Processor) acquire() (func(), error) {
	if p.lockPath == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(p.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(p.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logging.ErrorWithContext(p.logger, "failed to release batch lock", "batch_lock_release_failed",
				logging.String("lock_path", p.lockPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the lock file once no comictag run is active"),
			)
		}
	}, nil
}

func (p *Processor) processItem(ctx context.Context, req Request, mode archive.Mode, claims destinationClaims, item catalog.Item, position, total int) Outcome {
	ctx = logging.WithItem(ctx, item.RelPath)
	logger := logging.WithContext(ctx, p.logger)

	planned := prepare(req, mode, claims, item, position, total)
	outcome := Outcome{
		Position:    position,
		RelPath:     item.RelPath,
		Kind:        item.Kind,
		Destination: planned.Destination,
	}
	itemMode := planned.Mode

	if planned.ConflictsWith != "" {
		outcome.Status = StatusFailed
		outcome.Err = fmt.Errorf("%w by %s", ErrDestinationConflict, planned.ConflictsWith)
		logging.WarnWithContext(logger, "item skipped; destination belongs to an earlier item", "batch_destination_conflict",
			logging.String("destination", outcome.Destination),
			logging.String("claimed_by", planned.ConflictsWith),
			logging.String(logging.FieldErrorHint, "rename one of the source items or write them in separate runs"),
			logging.String(logging.FieldImpact, "the earlier item's output was kept"),
		)
		return outcome
	}

	src := filepath.Join(req.SourceRoot, filepath.FromSlash(item.RelPath))
	err := p.rewriter.Rewrite(ctx, itemMode, src, outcome.Destination, planned.Record)
	switch {
	case err == nil:
		outcome.Status = StatusSucceeded
		logger.Info("item written",
			logging.String(logging.FieldMode, itemMode.String()),
			logging.String("destination", outcome.Destination),
		)
	case archive.IsCancellation(err) && ctx.Err() != nil:
		outcome.Status = StatusCancelled
		outcome.Err = err
		logger.Info("item cancelled")
	default:
		outcome.Status = StatusFailed
		outcome.Err = err
		logging.WarnWithContext(logger, "item failed; continuing with next item", "batch_item_failed",
			logging.String(logging.FieldMode, itemMode.String()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the source item and output directory"),
			logging.String(logging.FieldImpact, "the destination was left untouched"),
		)
	}
	return outcome
}

func (p *Processor) cancelRemaining(report *Report, req Request, from int) {
	total := len(req.Items)
	for i := from; i < total; i++ {
		item := req.Items[i]
		report.Outcomes = append(report.Outcomes, Outcome{
			Position:    i + 1,
			RelPath:     item.RelPath,
			Kind:        item.Kind,
			Destination: Destination(req.OutputRoot, item, req.OutputExt),
			Status:      StatusCancelled,
		})
	}
}

func (p *Processor) publishProgress(report *Report, total int, current string) {
	if p.store == nil {
		return
	}
	succeeded, failed, cancelled := report.Counts()
	p.store.Set(store.KeyProgress, Progress{
		RunID:     report.RunID,
		Done:      len(report.Outcomes),
		Total:     total,
		Current:   current,
		Succeeded: succeeded,
		Failed:    failed,
		Cancelled: cancelled,
	})
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// Destination returns the output path of item: the relative path under
// outputRoot with an archive's extension replaced by ext, or ext appended to
// a folder's full name.
func Destination(outputRoot string, item catalog.Item, ext string) string {
	rel := item.RelPath
	if item.Kind != catalog.KindFolder {
		rel = strings.TrimSuffix(rel, path.Ext(rel))
	}
	return filepath.Join(outputRoot, filepath.FromSlash(rel)+"."+strings.TrimPrefix(ext, "."))
}
