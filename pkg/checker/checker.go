// Package checker audits the per-item record store before a release. Every
// item must carry a moderation decision; a single pending item fails the gate.
package checker

import (
	"context"

	"github.com/agentstation/collection/internal/store"
	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/items"
	"github.com/agentstation/collection/pkg/logging"
)

// Report partitions the stored items by status.
type Report struct {
	Root    string
	Passed  []string
	Pending []string
	Deleted []string
	// Other lists ids whose status is missing or unknown.
	Other []string
}

// Resolved reports whether no item is pending.
func (r *Report) Resolved() bool {
	return len(r.Pending) == 0
}

// Total returns the number of audited items.
func (r *Report) Total() int {
	return len(r.Passed) + len(r.Pending) + len(r.Deleted) + len(r.Other)
}

// Checker audits one store root.
type Checker struct {
	store *store.Store
}

// New creates a checker for the store at root.
func New(root string) *Checker {
	return &Checker{store: store.New(root)}
}

// Check walks the store and returns the status partition. The error is a
// *errors.GateFailure when any item is pending; the report is returned either way.
func (c *Checker) Check(ctx context.Context) (*Report, error) {
	logger := logging.Ctx(ctx)
	report := &Report{
		Root:    c.store.Root(),
		Passed:  []string{},
		Pending: []string{},
		Deleted: []string{},
	}

	err := c.store.Walk(func(rec store.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch rec.Item.Status {
		case items.StatusPassed:
			report.Passed = append(report.Passed, rec.Item.ID)
		case items.StatusPending:
			report.Pending = append(report.Pending, rec.Item.ID)
		case items.StatusDeleted:
			report.Deleted = append(report.Deleted, rec.Item.ID)
		default:
			logger.Warn().Str("id", rec.Item.ID).Str("status", string(rec.Item.Status)).Str("path", rec.Path).Msg("Record without a known status")
			report.Other = append(report.Other, rec.Item.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Int("count", len(report.Passed)).Strs("ids", report.Passed).Msg("Passed items")
	if report.Resolved() {
		logger.Info().Int("total", report.Total()).Msg("All items resolved")
		return report, nil
	}
	logger.Error().Int("count", len(report.Pending)).Strs("ids", report.Pending).Msg("Pending items")
	return report, &errors.GateFailure{Pending: report.Pending}
}

// CheckAllResolved fails when any item below root is still pending.
func CheckAllResolved(ctx context.Context, root string) error {
	_, err := New(root).Check(ctx)
	return err
}
