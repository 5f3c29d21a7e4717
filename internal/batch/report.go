package batch

import (
	"time"

	"comictag/internal/catalog"
	"comictag/internal/journal"
)

// Status is the outcome of one item.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Outcome records what happened to one selected item.
type Outcome struct {
	// Position is 1-based within the selection.
	Position    int
	RelPath     string
	Kind        catalog.Kind
	Destination string
	Status      Status
	Err         error
}

// Report summarizes a finished run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Mode       string
	SourceRoot string
	OutputRoot string
	Outcomes   []Outcome
}

// Counts returns the number of outcomes per status.
func (r *Report) Counts() (succeeded, failed, cancelled int) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		case StatusCancelled:
			cancelled++
		}
	}
	return succeeded, failed, cancelled
}

// Cancelled reports whether the run stopped before every item was processed.
func (r *Report) Cancelled() bool {
	_, _, cancelled := r.Counts()
	return cancelled > 0
}

// Run converts the report into its journal form.
func (r *Report) Run() journal.Run {
	succeeded, failed, cancelled := r.Counts()
	run := journal.Run{
		ID:         r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Mode:       r.Mode,
		SourceRoot: r.SourceRoot,
		OutputRoot: r.OutputRoot,
		Succeeded:  succeeded,
		Failed:     failed,
		Cancelled:  cancelled,
		Items:      make([]journal.Item, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		item := journal.Item{
			Position:    o.Position,
			RelPath:     o.RelPath,
			Kind:        string(o.Kind),
			Destination: o.Destination,
			Status:      string(o.Status),
		}
		if o.Err != nil {
			item.Error = o.Err.Error()
		}
		run.Items = append(run.Items, item)
	}
	return run
}

// Progress is published to the store while a run is active.
type Progress struct {
	RunID     string
	Done      int
	Total     int
	Current   string
	Succeeded int
	Failed    int
	Cancelled int
}
