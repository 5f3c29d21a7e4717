package batch_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"comictag/internal/archive"
	"comictag/internal/batch"
	"comictag/internal/catalog"
	"comictag/internal/comicinfo"
	"comictag/internal/config"
	"comictag/internal/journal"
	"comictag/internal/merge"
	"comictag/internal/store"
	"comictag/internal/testsupport"
)

type rewriteCall struct {
	mode archive.Mode
	src  string
	dst  string
	rec  comicinfo.Record
}

type fakeRewriter struct {
	calls []rewriteCall
	fn    func(call int) error
}

func (f *fakeRewriter) Rewrite(_ context.Context, mode archive.Mode, src, dst string, rec comicinfo.Record) error {
	f.calls = append(f.calls, rewriteCall{mode: mode, src: src, dst: dst, rec: rec})
	if f.fn != nil {
		return f.fn(len(f.calls))
	}
	return nil
}

type fakeRecorder struct {
	runs []journal.Run
	err  error
}

func (f *fakeRecorder) RecordRun(_ context.Context, run journal.Run) error {
	f.runs = append(f.runs, run)
	return f.err
}

func archives(names ...string) []catalog.Item {
	items := make([]catalog.Item, len(names))
	for i, name := range names {
		items[i] = catalog.Item{RelPath: name, Kind: catalog.KindArchive}
	}
	return items
}

func baseRequest(cfg *config.Config, items []catalog.Item) batch.Request {
	return batch.Request{
		SourceRoot: cfg.Paths.SourceDir,
		OutputRoot: cfg.Paths.OutputDir,
		Items:      items,
		Edits:      merge.Edits{merge.Base("Title", "{fileName} #{index}")},
		Mode:       config.WriteModeInPlace,
		OutputExt:  "cbz",
	}
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := cfg.Paths.SourceDir
	testsupport.WriteZip(t, filepath.Join(src, "series", "a.cbz"),
		testsupport.ZipEntry{Name: "001.png", Data: []byte("page")},
		testsupport.ZipEntry{Name: "meta/ComicInfo.xml", Data: []byte("<ComicInfo><Title>old</Title><Series>S</Series></ComicInfo>")},
	)
	testsupport.WriteText(t, filepath.Join(src, "series", "broken.cbz"), "not a zip")
	testsupport.WriteText(t, filepath.Join(src, "vol.1", "001.png"), "page")

	st := store.New(nil)
	cat, err := catalog.NewScanner(cfg.Scan, st, nil).Scan(context.Background(), src)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	rewriter, err := archive.NewRewriter(archive.Options{}, nil)
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}
	recorder := &fakeRecorder{}
	proc := batch.New(rewriter,
		batch.WithStore(st),
		batch.WithRecorder(recorder),
		batch.WithLockPath(cfg.LockPath()),
		batch.WithIDGenerator(func() string { return "run-1" }),
	)

	req := baseRequest(cfg, cat.Items)
	req.Records = cat.Records
	req.Edits = append(req.Edits, merge.Base("Series", merge.Keep))
	report, err := proc.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	succeeded, failed, cancelled := report.Counts()
	if succeeded != 2 || failed != 1 || cancelled != 0 {
		t.Fatalf("unexpected counts %d/%d/%d: %+v", succeeded, failed, cancelled, report.Outcomes)
	}
	if report.Outcomes[1].RelPath != "series/broken.cbz" || report.Outcomes[1].Status != batch.StatusFailed {
		t.Fatalf("expected the broken archive to fail in place, got %+v", report.Outcomes[1])
	}
	if !errors.Is(report.Outcomes[1].Err, archive.ErrNotArchive) {
		t.Fatalf("unexpected failure cause %v", report.Outcomes[1].Err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, "series", "broken.cbz")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("failed item left output behind: %v", err)
	}

	doc, err := archive.ReadDocument(filepath.Join(cfg.Paths.OutputDir, "series", "a.cbz"))
	if err != nil || !doc.Found {
		t.Fatalf("ReadDocument: %+v %v", doc, err)
	}
	rec := comicinfo.Parse(doc.Data)
	if title, _ := rec.Field(comicinfo.BasePrefix, "Title"); title != "a #1" {
		t.Fatalf("unexpected title %q", title)
	}
	if series, _ := rec.Field(comicinfo.BasePrefix, "Series"); series != "S" {
		t.Fatalf("kept field lost: %q", series)
	}
	if doc.Location != "meta/ComicInfo.xml" {
		t.Fatalf("in-place location not preserved: %q", doc.Location)
	}

	folderOut := filepath.Join(cfg.Paths.OutputDir, "vol.1.cbz")
	names := testsupport.ZipNames(t, folderOut)
	if len(names) != 2 || names[0] != comicinfo.DocumentName || names[1] != "001.png" {
		t.Fatalf("unexpected folder archive entries %v", names)
	}
	folderDoc, _ := archive.ReadDocument(folderOut)
	if title, _ := comicinfo.Parse(folderDoc.Data).Field(comicinfo.BasePrefix, "Title"); title != "vol.1 #3" {
		t.Fatalf("unexpected folder title %q", title)
	}

	if original, _ := cat.Record("series/a.cbz").Field(comicinfo.BasePrefix, "Title"); original != "old" {
		t.Fatalf("cached original record mutated: %q", original)
	}

	progress, ok := store.Lookup[batch.Progress](st, store.KeyProgress)
	if !ok || progress.Done != 3 || progress.Total != 3 || progress.Failed != 1 {
		t.Fatalf("unexpected progress %+v (%v)", progress, ok)
	}
	if last, _ := store.Lookup[string](st, store.KeyLastRun); last != "run-1" {
		t.Fatalf("unexpected last run %q", last)
	}
	if len(recorder.runs) != 1 || recorder.runs[0].Failed != 1 || len(recorder.runs[0].Items) != 3 {
		t.Fatalf("unexpected journal runs %+v", recorder.runs)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rw := &fakeRewriter{fn: func(call int) error {
		if call == 2 {
			return errors.New("disk full")
		}
		return nil
	}}

	report, err := batch.New(rw).Run(context.Background(), baseRequest(cfg, archives("1.cbz", "2.cbz", "3.cbz")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rw.calls) != 3 {
		t.Fatalf("expected every item attempted, got %d calls", len(rw.calls))
	}
	want := []batch.Status{batch.StatusSucceeded, batch.StatusFailed, batch.StatusSucceeded}
	for i, status := range want {
		if report.Outcomes[i].Status != status {
			t.Fatalf("outcome %d = %s, want %s", i, report.Outcomes[i].Status, status)
		}
	}
	if title, _ := rw.calls[2].rec.Field(comicinfo.BasePrefix, "Title"); title != "3 #3" {
		t.Fatalf("unexpected resolved title %q", title)
	}
	if rw.calls[0].mode != archive.ModeInPlace {
		t.Fatalf("unexpected mode %v", rw.calls[0].mode)
	}
}

func TestRunCancellationMarksRemainingItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rw := &fakeRewriter{fn: func(call int) error {
		if call == 2 {
			cancel()
			return context.Canceled
		}
		return nil
	}}

	report, err := batch.New(rw).Run(ctx, baseRequest(cfg, archives("1.cbz", "2.cbz", "3.cbz", "4.cbz")))
	if err != nil {
		t.Fatalf("cancellation must not be an error, got %v", err)
	}
	if len(rw.calls) != 2 {
		t.Fatalf("expected processing to stop after the cancelled item, got %d calls", len(rw.calls))
	}
	succeeded, failed, cancelled := report.Counts()
	if succeeded != 1 || failed != 0 || cancelled != 3 || !report.Cancelled() {
		t.Fatalf("unexpected counts %d/%d/%d", succeeded, failed, cancelled)
	}
	if len(report.Outcomes) != 4 || report.Outcomes[3].Position != 4 {
		t.Fatalf("expected an outcome per item, got %+v", report.Outcomes)
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rw := &fakeRewriter{}
	recorder := &fakeRecorder{}

	report, err := batch.New(rw, batch.WithRecorder(recorder)).Run(ctx, baseRequest(cfg, archives("1.cbz", "2.cbz")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rw.calls) != 0 {
		t.Fatalf("expected no rewrites, got %d", len(rw.calls))
	}
	if _, _, cancelled := report.Counts(); cancelled != 2 {
		t.Fatalf("expected both items cancelled, got %+v", report.Outcomes)
	}
	if len(recorder.runs) != 1 {
		t.Fatalf("cancelled run should still be journaled")
	}
}

func TestRunValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tests := []struct {
		name   string
		mutate func(*batch.Request)
	}{
		{"missing source", func(r *batch.Request) { r.SourceRoot = filepath.Join(t.TempDir(), "nope") }},
		{"empty source", func(r *batch.Request) { r.SourceRoot = "" }},
		{"empty output", func(r *batch.Request) { r.OutputRoot = "" }},
		{"empty selection", func(r *batch.Request) { r.Items = nil }},
		{"bad extension", func(r *batch.Request) { r.OutputExt = "rar" }},
		{"bad mode", func(r *batch.Request) { r.Mode = "sideways" }},
		{"folder mode", func(r *batch.Request) { r.Mode = "folder" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := &fakeRewriter{}
			req := baseRequest(cfg, archives("1.cbz"))
			tt.mutate(&req)
			_, err := batch.New(rw).Run(context.Background(), req)
			if !batch.IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(rw.calls) != 0 {
				t.Fatalf("no item may be processed on validation failure")
			}
		})
	}

	req := baseRequest(cfg, archives("1.cbz"))
	req.OutputExt = ".ZIP"
	req.Mode = "Flatten"
	rw := &fakeRewriter{}
	if _, err := batch.New(rw).Run(context.Background(), req); err != nil {
		t.Fatalf("expected normalized request to pass, got %v", err)
	}
	if rw.calls[0].mode != archive.ModeFlatten || filepath.Ext(rw.calls[0].dst) != ".zip" {
		t.Fatalf("unexpected call %+v", rw.calls[0])
	}
}

func TestRunRefusesWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	held := flock.New(cfg.LockPath())
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer held.Unlock()

	rw := &fakeRewriter{}
	_, err = batch.New(rw, batch.WithLockPath(cfg.LockPath())).Run(context.Background(), baseRequest(cfg, archives("1.cbz")))
	if !errors.Is(err, batch.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if len(rw.calls) != 0 {
		t.Fatalf("locked run must not write")
	}
}

func TestRunJournalFailureIsNotFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	recorder := &fakeRecorder{err: errors.New("readonly database")}
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	proc := batch.New(&fakeRewriter{},
		batch.WithRecorder(recorder),
		batch.WithClock(func() time.Time { return clock }),
	)
	report, err := proc.Run(context.Background(), baseRequest(cfg, archives("1.cbz")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RunID == "" || !report.StartedAt.Equal(clock) {
		t.Fatalf("unexpected report header %+v", report)
	}
}

func TestRunBindsNamespacesForPrefixedEdits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteZip(t, filepath.Join(cfg.Paths.SourceDir, "1.cbz"), testsupport.ZipEntry{Name: "1.png", Data: []byte("1")})
	rewriter, err := archive.NewRewriter(archive.Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	req := baseRequest(cfg, archives("1.cbz"))
	req.Edits = merge.Edits{{Prefix: "ext", Tag: "Source", Value: "scan"}}

	report, err := batch.New(rewriter).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcomes[0].Status != batch.StatusFailed || !errors.Is(report.Outcomes[0].Err, comicinfo.ErrUnboundPrefix) {
		t.Fatalf("expected unbound prefix failure, got %+v", report.Outcomes[0])
	}

	req.Namespaces = []comicinfo.Namespace{{Prefix: "ext", URI: "https://example.org/ext"}}
	report, err = batch.New(rewriter).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcomes[0].Status != batch.StatusSucceeded {
		t.Fatalf("expected success with bound namespace, got %+v", report.Outcomes[0])
	}
	rec, err := archive.ReadRecord(report.Outcomes[0].Destination)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if v, _ := rec.Field("ext", "Source"); v != "scan" {
		t.Fatalf("prefixed field not written: %+v", rec)
	}
}

func TestDestination(t *testing.T) {
	out := filepath.Join("/", "out")
	cases := []struct {
		item catalog.Item
		want string
	}{
		{catalog.Item{RelPath: "a/b.zip", Kind: catalog.KindArchive}, filepath.Join(out, "a", "b.cbz")},
		{catalog.Item{RelPath: "vol.1", Kind: catalog.KindFolder}, filepath.Join(out, "vol.1.cbz")},
		{catalog.Item{RelPath: "x.y.cbz", Kind: catalog.KindArchive}, filepath.Join(out, "x.y.cbz")},
	}
	for _, tc := range cases {
		if got := batch.Destination(out, tc.item, "cbz"); got != tc.want {
			t.Errorf("Destination(%q) = %q, want %q", tc.item.RelPath, got, tc.want)
		}
	}
}

func TestRunFailsItemsThatShareADestination(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rewriter := &fakeRewriter{}
	items := append(archives("a.cbz", "a.zip", "b.cbz"), catalog.Item{RelPath: "b", Kind: catalog.KindFolder})

	report, err := batch.New(rewriter).Run(context.Background(), baseRequest(cfg, items))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rewriter.calls) != 2 {
		t.Fatalf("expected only the first claimant of each path to be written, got %d calls", len(rewriter.calls))
	}
	for _, i := range []int{1, 3} {
		o := report.Outcomes[i]
		if o.Status != batch.StatusFailed || !errors.Is(o.Err, batch.ErrDestinationConflict) {
			t.Fatalf("outcome %d: expected destination conflict, got %+v", i, o)
		}
	}
	if report.Outcomes[0].Status != batch.StatusSucceeded || report.Outcomes[2].Status != batch.StatusSucceeded {
		t.Fatalf("first claimants should succeed: %+v", report.Outcomes)
	}

	planned, err := batch.New(rewriter).Plan(baseRequest(cfg, items))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if planned[1].ConflictsWith != "a.cbz" || planned[3].ConflictsWith != "b.cbz" || planned[0].ConflictsWith != "" {
		t.Fatalf("unexpected plan conflicts %q %q %q", planned[0].ConflictsWith, planned[1].ConflictsWith, planned[3].ConflictsWith)
	}
}

func TestPlanResolvesWithoutWriting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rewriter := &fakeRewriter{}
	proc := batch.New(rewriter, batch.WithLockPath(cfg.LockPath()))

	items := append(archives("x/one.cbz"), catalog.Item{RelPath: "x/vol.2", Kind: catalog.KindFolder})
	req := baseRequest(cfg, items)
	req.OutputExt = ".ZIP"
	planned, err := proc.Plan(req)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(rewriter.calls) != 0 {
		t.Fatalf("Plan must not rewrite, got %d calls", len(rewriter.calls))
	}
	if len(planned) != 2 {
		t.Fatalf("expected 2 planned writes, got %d", len(planned))
	}
	if planned[0].Mode != archive.ModeInPlace || planned[1].Mode != archive.ModeFolderToArchive {
		t.Fatalf("unexpected modes %v %v", planned[0].Mode, planned[1].Mode)
	}
	if want := filepath.Join(cfg.Paths.OutputDir, "x", "vol.2.zip"); planned[1].Destination != want {
		t.Fatalf("destination = %q, want %q", planned[1].Destination, want)
	}
	if title, _ := planned[1].Record.Field(comicinfo.BasePrefix, "Title"); title != "vol.2 #2" {
		t.Fatalf("title = %q", title)
	}

	req.Items = nil
	if _, err := proc.Plan(req); !batch.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
