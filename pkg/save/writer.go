// Package save persists the outcome of a reconciliation run: the canonical
// export of passed items, the next index snapshot, the review artifact, the
// per-item record store and a markdown review summary.
//
// Every artifact is rendered in memory before the first file is touched, so
// an encoding error leaves the previous outputs in place.
package save

import (
	"context"
	"path/filepath"

	"github.com/agentstation/collection/internal/fsutil"
	"github.com/agentstation/collection/internal/store"
	"github.com/agentstation/collection/pkg/constants"
	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/items"
	"github.com/agentstation/collection/pkg/logging"
	"github.com/agentstation/collection/pkg/reconciler"
)

// Report describes what a write produced.
type Report struct {
	Mode Mode
	// IndexPath is where the next snapshot went.
	IndexPath string
	// Written lists every file in write order.
	Written []string
	// ReviewNoop is set when nothing changed and the review artifact is empty.
	ReviewNoop bool
	// Records is the number of per-item records written.
	Records int
}

// Writer renders and writes run artifacts.
type Writer struct {
	opts  Options
	store *store.Store
}

// NewWriter creates a writer with options.
func NewWriter(opts ...Option) *Writer {
	o := Defaults().Apply(opts...)
	return &Writer{opts: o, store: store.New(o.collectionDir)}
}

// Options returns the writer configuration.
func (w *Writer) Options() Options {
	return w.opts
}

// Write renders every artifact of result and writes them.
func (w *Writer) Write(ctx context.Context, result *reconciler.Result, mode Mode) (*Report, error) {
	if result == nil || result.Next == nil {
		return nil, &errors.ValidationError{Field: "result", Message: "nothing to write"}
	}
	logger := logging.Ctx(ctx)

	report := &Report{Mode: mode}
	files, err := w.Render(ctx, result, mode, report)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := fsutil.WriteAll(files); err != nil {
		return nil, err
	}
	for _, f := range files {
		report.Written = append(report.Written, f.Path)
	}

	if w.opts.writer != nil && w.opts.summary {
		if err := writeSummary(w.opts.writer, result, mode); err != nil {
			return nil, errors.WrapIO("write", "summary", err)
		}
	}

	logger.Info().
		Str("mode", mode.String()).
		Str("index", report.IndexPath).
		Int("files", len(report.Written)).
		Int("records", report.Records).
		Msg("Artifacts written")
	return report, nil
}

// Render encodes every artifact without touching the disk.
// report receives the index path, the no-op decision and the record count.
func (w *Writer) Render(ctx context.Context, result *reconciler.Result, mode Mode, report *Report) ([]fsutil.File, error) {
	logger := logging.Ctx(ctx)
	var files []fsutil.File

	carried, err := w.loadCarried(result)
	if err != nil {
		return nil, err
	}

	// Canonical export of passed items.
	export := w.export(result, carried)
	for _, f := range w.opts.formats {
		var (
			data []byte
			err  error
			name string
		)
		switch f {
		case FormatYAML:
			data, err = export.YAML()
			name = constants.ExportYAMLName
		case FormatJSON:
			data, err = export.JSON()
			name = constants.ExportJSONName
		}
		if err != nil {
			return nil, errors.WrapResource("encode", "export", f.String(), err)
		}
		files = append(files, fsutil.File{Path: filepath.Join(w.opts.distDir, name), Data: data})
	}

	// Next index snapshot.
	indexPath := w.opts.ProposedPath()
	if mode == ModeOverwrite {
		indexPath = w.opts.indexPath
	}
	data, err := result.Next.YAML()
	if err != nil {
		return nil, errors.WrapResource("encode", "index", indexPath, err)
	}
	files = append(files, fsutil.File{Path: indexPath, Data: data})

	// Review artifact.
	review, noop := w.review(result, mode, carried)
	if noop {
		logger.Info().Msg("No new or removed items, review artifact left empty")
	}
	data, err = review.YAML()
	if err != nil {
		return nil, errors.WrapResource("encode", "review", constants.ReviewName, err)
	}
	files = append(files, fsutil.File{Path: filepath.Join(w.opts.distDir, constants.ReviewName), Data: data})

	// Per-item records.
	records, err := w.records(result)
	if err != nil {
		return nil, err
	}
	recordFiles, err := w.store.Render(records)
	if err != nil {
		return nil, err
	}
	files = append(files, recordFiles...)

	if w.opts.summary {
		data, err := renderSummary(result, mode)
		if err != nil {
			return nil, errors.WrapResource("encode", "summary", constants.SummaryName, err)
		}
		files = append(files, fsutil.File{Path: filepath.Join(w.opts.distDir, constants.SummaryName), Data: data})
	}

	if report != nil {
		report.IndexPath = indexPath
		report.ReviewNoop = noop
		report.Records = len(recordFiles)
	}
	return files, nil
}

// carriedBucket holds the stored records of a bucket copied unchanged from
// the previous snapshot.
type carriedBucket struct {
	passed  []items.Item
	current []items.Item
}

// loadCarried reads the full records of every carried bucket from the store.
// The index status wins over the stored one. A passed item without a record
// fails the render, since the export would silently lose it.
func (w *Writer) loadCarried(result *reconciler.Result) (map[string]carriedBucket, error) {
	out := make(map[string]carriedBucket, len(result.Carried))
	for _, id := range result.Carried {
		cb := carriedBucket{passed: []items.Item{}, current: []items.Item{}}
		for _, proj := range result.Next.Bucket(id) {
			if proj.Status == items.StatusDeleted {
				continue
			}
			proj.PartnerID = id
			rec, ok, err := w.store.Get(proj)
			if err != nil {
				return nil, errors.WrapResource("load", "record", proj.ID, err)
			}
			if !ok {
				if proj.Status == items.StatusPassed {
					return nil, errors.WrapResource("export", "partner", id, errors.NewNotFoundError("record", proj.ID))
				}
				rec = proj
			}
			rec = rec.WithStatus(proj.Status)
			rec.PartnerID = id
			cb.current = append(cb.current, rec)
			if rec.Status == items.StatusPassed {
				cb.passed = append(cb.passed, rec)
			}
		}
		out[id] = cb
	}
	return out, nil
}

// export is the template with every passed item attached, including the
// passed items of carried buckets.
func (w *Writer) export(result *reconciler.Result, carried map[string]carriedBucket) *items.Snapshot {
	out := result.Next.Template()
	if w.opts.groupBy == GroupByType {
		passed := append([]items.Item{}, result.Passed...)
		for _, id := range result.Carried {
			passed = append(passed, carried[id].passed...)
		}
		byType := reconciler.GroupByType(passed)
		for _, t := range items.Types() {
			out.SetBucket(string(t), byType[t])
		}
		return out
	}
	for _, id := range result.Next.BucketIDs() {
		if b, ok := result.Bucket(id); ok {
			out.SetBucket(id, b.Passed)
			continue
		}
		if cb, ok := carried[id]; ok {
			out.SetBucket(id, cb.passed)
		}
	}
	return out
}

// review holds every current item on overwrite and only new items on
// propose. A run without additions or removals yields empty attachments.
func (w *Writer) review(result *reconciler.Result, mode Mode, carried map[string]carriedBucket) (*items.Snapshot, bool) {
	out := result.Next.Template()
	if !result.HasChanges() {
		return out, true
	}
	for _, id := range result.Next.BucketIDs() {
		if b, ok := result.Bucket(id); ok {
			list := b.New
			if mode == ModeOverwrite {
				list = b.Current
			}
			out.SetBucket(id, list)
			continue
		}
		if cb, ok := carried[id]; ok && mode == ModeOverwrite {
			out.SetBucket(id, cb.current)
		}
	}
	return out, false
}

// records returns the current items plus the stored records of removed items,
// marked deleted so a vanished pending item no longer blocks the gate.
func (w *Writer) records(result *reconciler.Result) ([]items.Item, error) {
	list := result.Current()
	for _, gone := range result.Removed {
		stored, ok, err := w.store.Get(gone)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		list = append(list, stored.WithStatus(items.StatusDeleted))
	}
	return list, nil
}
