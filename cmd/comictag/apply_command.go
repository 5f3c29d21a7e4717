package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"comictag/internal/archive"
	"comictag/internal/batch"
	"comictag/internal/catalog"
	"comictag/internal/comicinfo"
	"comictag/internal/editset"
	"comictag/internal/journal"
	"comictag/internal/placeholder"
	"comictag/internal/preflight"
	"comictag/internal/store"
)

type applyOptions struct {
	all         bool
	sets        []string
	editsFile   string
	vars        map[string]string
	mode        string
	outputExt   string
	compression string
	dryRun      bool
	jsonOutput  bool
}

func newApplyCommand(ctx *commandContext) *cobra.Command {
	opts := &applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply [path|number...]",
		Short: "Write edited copies of the selected items to the output directory",
		Long: `Apply merges an edit set into the metadata of every selected item and
writes the result as a new archive under the output directory. Sources are
never modified.

Edit values may use placeholders such as {fileName}, {index}, {total} and
{titleFromName}. The value {keep} leaves a field as it is and an empty value
clears it.`,
		Example: `  comictag apply --all --set Series="Saga" --set Number="{index}"
  comictag apply 3 5 --edits edits.toml --mode flatten
  comictag apply --all --set Title="{titleFromName}" --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, ctx, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "Select every catalog item")
	cmd.Flags().StringArrayVar(&opts.sets, "set", nil, "Edit as Tag=Value or prefix:Tag=Value (repeatable)")
	cmd.Flags().StringVarP(&opts.editsFile, "edits", "e", "", "Edit set file (.toml, .yaml or .yml)")
	cmd.Flags().StringToStringVar(&opts.vars, "var", nil, "Extra placeholder value as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Archive write mode: in_place or flatten (default from config)")
	cmd.Flags().StringVar(&opts.outputExt, "ext", "", "Output extension: cbz or zip (default from config)")
	cmd.Flags().StringVar(&opts.compression, "compression", "", "Compression for new entries: store or deflate (default from config)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show planned writes without touching the output directory")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runApply(cmd *cobra.Command, ctx *commandContext, opts *applyOptions, args []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if opts.all == (len(args) > 0) {
		return errors.New("select items by path or number, or pass --all")
	}

	set, err := loadEditSet(opts)
	if err != nil {
		return err
	}

	cat, err := ctx.loadCatalog(cmd.Context(), "")
	if err != nil {
		return err
	}
	items := cat.Items
	if !opts.all {
		if items, err = resolveItems(cat, args); err != nil {
			return err
		}
	}

	compression := strings.TrimSpace(opts.compression)
	if compression == "" {
		compression = cfg.Write.Compression
	}
	rewriter, err := archive.NewRewriter(archive.Options{Compression: compression}, ctx.loggerValue())
	if err != nil {
		return err
	}

	req := batch.Request{
		SourceRoot: cat.Root,
		OutputRoot: cfg.Paths.OutputDir,
		Items:      items,
		Records:    cat.Records,
		Edits:      set.Edits,
		Namespaces: set.Namespaces,
		Mode:       firstNonEmpty(opts.mode, cfg.Write.Mode),
		OutputExt:  firstNonEmpty(opts.outputExt, cfg.Write.OutputExt),
		Extra:      placeholder.Context(opts.vars),
	}

	if opts.dryRun {
		planned, err := batch.New(rewriter).Plan(req)
		if err != nil {
			return err
		}
		return renderPlan(cmd, cat, planned, opts.jsonOutput)
	}

	if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
		errOut := cmd.ErrOrStderr()
		for _, r := range failed {
			fmt.Fprintln(errOut, renderStatusLine(r.Name, statusError, r.Detail, shouldColorize(errOut)))
		}
		return fmt.Errorf("preflight failed (%d check(s)); run 'comictag doctor' for details", len(failed))
	}

	j, err := journal.Open(cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	st := ctx.storeValue()
	proc := batch.New(rewriter,
		batch.WithStore(st),
		batch.WithRecorder(j),
		batch.WithLockPath(cfg.LockPath()),
		batch.WithLogger(ctx.loggerValue()),
	)

	stopProgress := func() {}
	if !opts.jsonOutput && isTerminal(cmd.ErrOrStderr()) {
		stopProgress = watchProgress(st, cmd.ErrOrStderr())
	}
	report, err := proc.Run(cmd.Context(), req)
	stopProgress()
	if err != nil {
		if errors.Is(err, batch.ErrLocked) {
			return fmt.Errorf("another comictag run holds %s", cfg.LockPath())
		}
		return err
	}

	if opts.jsonOutput {
		if err := writeJSON(cmd, newReportJSON(report)); err != nil {
			return err
		}
	} else {
		renderReport(cmd.OutOrStdout(), report)
	}

	succeeded, failed, cancelled := report.Counts()
	switch {
	case cancelled > 0:
		return context.Canceled
	case failed > 0:
		return fmt.Errorf("%d of %d item(s) failed", failed, succeeded+failed)
	}
	return nil
}

func loadEditSet(opts *applyOptions) (editset.Set, error) {
	var set editset.Set
	if path := strings.TrimSpace(opts.editsFile); path != "" {
		loaded, err := editset.Load(path, comicinfo.DefaultSchema)
		if err != nil {
			return editset.Set{}, err
		}
		set = loaded
	}
	if len(opts.sets) > 0 {
		edits, err := editset.ParseAssignments(opts.sets, comicinfo.DefaultSchema)
		if err != nil {
			return editset.Set{}, err
		}
		set.Edits = append(set.Edits, edits...)
	}
	if len(set.Edits) == 0 {
		return editset.Set{}, errors.New("no edits given (use --set or --edits)")
	}
	return set, nil
}

// watchProgress rewrites a single status line as the batch publishes
// progress. The returned func stops it and ends the line.
func watchProgress(st *store.Store, w io.Writer) func() {
	var mu sync.Mutex
	printed := false
	sub := st.Subscribe(func(changes []store.Change) {
		for _, change := range changes {
			if change.Key != store.KeyProgress {
				continue
			}
			progress, ok := change.Value.(batch.Progress)
			if !ok {
				continue
			}
			mu.Lock()
			fmt.Fprintf(w, "\r\x1b[K[%d/%d] %s", progress.Done, progress.Total, progress.Current)
			printed = true
			mu.Unlock()
		}
	})
	return func() {
		sub.Unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if printed {
			fmt.Fprint(w, "\r\x1b[K")
		}
	}
}

func renderReport(out io.Writer, report *batch.Report) {
	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		detail := o.Destination
		if o.Err != nil {
			detail = o.Err.Error()
		}
		rows = append(rows, []string{
			strconv.Itoa(o.Position),
			o.RelPath,
			colorizeText(string(o.Status), outcomeStatus(o.Status), colorize),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"#", "Item", "Status", "Destination / Error"}, rows,
		[]columnAlignment{alignRight}))

	succeeded, failed, cancelled := report.Counts()
	fmt.Fprintf(out, "Run %s: %d succeeded, %d failed, %d cancelled in %s\n",
		report.RunID, succeeded, failed, cancelled, formatDuration(report.StartedAt, report.FinishedAt))
}

func renderPlan(cmd *cobra.Command, cat *catalog.Catalog, planned []batch.Planned, jsonOutput bool) error {
	if jsonOutput {
		type planJSON struct {
			Position    int      `json:"position"`
			Path        string   `json:"path"`
			Mode        string   `json:"mode"`
			Destination string   `json:"destination"`
			Conflicts   string   `json:"conflicts_with,omitempty"`
			Changes     []string `json:"changes"`
		}
		out := make([]planJSON, 0, len(planned))
		for _, p := range planned {
			out = append(out, planJSON{
				Position:    p.Position,
				Path:        p.Item.RelPath,
				Mode:        p.Mode.String(),
				Destination: p.Destination,
				Conflicts:   p.ConflictsWith,
				Changes:     fieldChanges(cat.Record(p.Item.RelPath), p.Record),
			})
		}
		return writeJSON(cmd, out)
	}

	rows := make([][]string, 0, len(planned))
	for _, p := range planned {
		changes := fieldChanges(cat.Record(p.Item.RelPath), p.Record)
		destination := p.Destination
		if p.ConflictsWith != "" {
			destination += "\n(skipped: also written by " + p.ConflictsWith + ")"
		}
		rows = append(rows, []string{
			strconv.Itoa(p.Position),
			p.Item.RelPath,
			p.Mode.String(),
			destination,
			dash(strings.Join(changes, "\n")),
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable([]string{"#", "Item", "Mode", "Destination", "Changes"}, rows,
		[]columnAlignment{alignRight}))
	fmt.Fprintf(out, "Dry run: %d item(s) would be written\n", len(planned))
	return nil
}

// fieldChanges lists the simple fields whose value differs between before
// and after, in the order they appear in after.
func fieldChanges(before, after comicinfo.Record) []string {
	changes := []string{}
	for _, group := range after.Fields {
		for _, f := range group.Fields {
			old, ok := before.Field(group.Prefix, f.Tag)
			if ok && old == f.Value {
				continue
			}
			changes = append(changes, fmt.Sprintf("%s=%q", qualifiedTag(group.Prefix, f.Tag), singleLine(f.Value)))
		}
	}
	return changes
}

type outcomeJSON struct {
	Position    int    `json:"position"`
	Path        string `json:"path"`
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

type reportJSON struct {
	RunID     string        `json:"run_id"`
	Mode      string        `json:"mode"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Outcomes  []outcomeJSON `json:"outcomes"`
}

func newReportJSON(report *batch.Report) reportJSON {
	succeeded, failed, cancelled := report.Counts()
	out := reportJSON{
		RunID:     report.RunID,
		Mode:      report.Mode,
		Succeeded: succeeded,
		Failed:    failed,
		Cancelled: cancelled,
		Outcomes:  make([]outcomeJSON, 0, len(report.Outcomes)),
	}
	for _, o := range report.Outcomes {
		entry := outcomeJSON{
			Position:    o.Position,
			Path:        o.RelPath,
			Kind:        string(o.Kind),
			Destination: o.Destination,
			Status:      string(o.Status),
		}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		}
		out.Outcomes = append(out.Outcomes, entry)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
