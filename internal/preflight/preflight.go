package preflight

import (
	"context"

	"comictag/internal/config"
)

// MinFreeSpace is the headroom RunAll requires on the output filesystem.
const MinFreeSpace uint64 = 64 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckReadableDirectory("Source directory", cfg.Paths.SourceDir),
		CheckCreatableDirectory("Output directory", cfg.Paths.OutputDir),
		CheckCreatableDirectory("State directory", cfg.Paths.StateDir),
	}
	if cfg.Paths.OutputDir != "" {
		results = append(results, CheckFreeSpace("Output free space", cfg.Paths.OutputDir, MinFreeSpace))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
