// Package importer loads vehicle records and reference bundles from a
// directory tree. Files are parsed concurrently and stored in walk order.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/voltline/j1939-console/internal/j1939"
	"github.com/voltline/j1939-console/internal/metrics"
	"github.com/voltline/j1939-console/internal/progress"
	"github.com/voltline/j1939-console/internal/reference"
	"github.com/voltline/j1939-console/internal/vehicles"
)

// Kind classifies an imported file.
type Kind string

const (
	KindVehicle Kind = "vehicle"
	KindBundle  Kind = "bundle"
)

// Outcome labels for a single file.
const (
	OutcomeImported  = "imported"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Options configures a Run.
type Options struct {
	Include     []string
	Exclude     []string
	Concurrency int
	UploadedBy  string
	DryRun      bool // Parse and classify only.
}

// FileResult is the outcome for one file.
type FileResult struct {
	RelPath string `json:"path"`
	Kind    Kind   `json:"kind,omitempty"`
	Outcome string `json:"outcome"`
	ID      string `json:"id,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Summary totals a Run.
type Summary struct {
	Files    []FileResult `json:"files"`
	Vehicles int          `json:"vehicles"`
	Bundles  int          `json:"bundles"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
}

// String renders the one-line totals.
func (s *Summary) String() string {
	return fmt.Sprintf("%d vehicle(s), %d bundle(s) imported; %d duplicate(s) skipped; %d failed",
		s.Vehicles, s.Bundles, s.Skipped, s.Failed)
}

// Importer stores parsed files.
type Importer struct {
	vehicles  *vehicles.Store
	reference *reference.Store
	metrics   *metrics.Metrics
	reporter  progress.Reporter
}

// New creates an Importer. A nil reporter discards progress.
func New(vs *vehicles.Store, rs *reference.Store, m *metrics.Metrics, r progress.Reporter) *Importer {
	if r == nil {
		r = progress.Nop{}
	}
	return &Importer{vehicles: vs, reference: rs, metrics: m, reporter: r}
}

type parsed struct {
	kind   Kind
	record *j1939.VehicleRecord
	bundle *reference.Bundle
	err    error
}

// Run imports everything Select finds under root. A failing file is counted
// and reported; only context cancellation or a walk error aborts the run.
func (im *Importer) Run(ctx context.Context, root string, opts Options) (*Summary, error) {
	files, err := Select(Selection{Root: root, Include: opts.Include, Exclude: opts.Exclude})
	if err != nil {
		return nil, err
	}

	results, err := parseAll(ctx, files, opts.Concurrency)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Files: make([]FileResult, 0, len(files))}
	seen := make(map[string]bool, len(files))

	im.reporter.Start(len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		fr := im.store(ctx, f, results[i], seen, opts)
		switch fr.Outcome {
		case OutcomeImported:
			if fr.Kind == KindBundle {
				sum.Bundles++
			} else {
				sum.Vehicles++
			}
		case OutcomeDuplicate:
			sum.Skipped++
		default:
			sum.Failed++
			slog.Warn("import failed", "path", f.RelPath, "error", fr.Detail)
		}
		im.metrics.Imported(string(fr.Kind), fr.Outcome)
		sum.Files = append(sum.Files, fr)
		im.reporter.Update(i+1, f.RelPath)
	}
	im.reporter.Finish(sum.String())
	return sum, nil
}

func (im *Importer) store(ctx context.Context, f File, p parsed, seen map[string]bool, opts Options) FileResult {
	fr := FileResult{RelPath: f.RelPath, Kind: p.kind}
	if p.err != nil {
		fr.Outcome, fr.Detail = OutcomeFailed, p.err.Error()
		return fr
	}
	if seen[f.Hash] {
		fr.Outcome, fr.Detail = OutcomeDuplicate, "same content as an earlier file"
		return fr
	}
	seen[f.Hash] = true

	if opts.DryRun {
		fr.Outcome = OutcomeImported
		return fr
	}

	switch p.kind {
	case KindBundle:
		res, err := im.reference.ImportBundle(ctx, p.bundle)
		if err != nil {
			fr.Outcome, fr.Detail = OutcomeFailed, err.Error()
			return fr
		}
		fr.ID = res.Standard.ID
		fr.Detail = fmt.Sprintf("%s: %d PGN(s), %d SPN(s)", res.Standard.Code, res.PGNs, res.SPNs)
	default:
		v, err := im.vehicles.Create(ctx, p.record, filepath.Base(f.RelPath), opts.UploadedBy)
		if err != nil {
			fr.Outcome, fr.Detail = OutcomeFailed, err.Error()
			return fr
		}
		fr.ID = v.ID
		fr.Detail = fmt.Sprintf("%s: %s, %d PGN(s)", v.DisplayName, v.Shape, v.PGNCount)
	}
	fr.Outcome = OutcomeImported
	return fr
}

// parseAll reads and classifies files with at most limit in flight.
func parseAll(ctx context.Context, files []File, limit int) ([]parsed, error) {
	if limit <= 0 {
		limit = 1
	}
	out := make([]parsed, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = parseFile(f.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseFile(path string) parsed {
	data, err := os.ReadFile(path)
	if err != nil {
		return parsed{kind: KindVehicle, err: err}
	}
	if reference.IsBundle(data) {
		b, err := reference.ParseBundle(data)
		return parsed{kind: KindBundle, bundle: b, err: err}
	}
	rec, err := j1939.ParseRecord(data)
	return parsed{kind: KindVehicle, record: rec, err: err}
}
