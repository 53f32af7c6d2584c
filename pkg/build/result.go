package build

import (
	"fmt"
	"strings"

	"github.com/agentstation/collection/pkg/reconciler"
	"github.com/agentstation/collection/pkg/save"
	"github.com/agentstation/collection/pkg/sources"
)

// Result represents the complete result of a build.
type Result struct {
	// Run is the reconciliation outcome.
	Run *reconciler.Result
	// Report is nil on dry runs.
	Report *save.Report
	// Failed lists sources that failed under failure isolation.
	Failed []sources.Outcome
	// Invalid counts fetched entries dropped by normalization.
	Invalid int

	Mode   save.Mode
	DryRun bool
}

// HasChanges returns true if the run added or removed items.
func (r *Result) HasChanges() bool {
	return r.Run != nil && r.Run.HasChanges()
}

// Summary returns a human-readable summary of the build result.
func (r *Result) Summary() string {
	if r.Run == nil {
		return "Nothing reconciled"
	}

	var parts []string
	if r.DryRun {
		parts = append(parts, "(Dry run)")
	} else {
		parts = append(parts, fmt.Sprintf("(%s)", r.Mode))
	}
	if len(r.Failed) > 0 {
		ids := make([]string, len(r.Failed))
		for i, o := range r.Failed {
			ids[i] = o.Source.String()
		}
		parts = append(parts, "failed: "+strings.Join(ids, ", "))
	}
	if r.Invalid > 0 {
		parts = append(parts, fmt.Sprintf("%d invalid", r.Invalid))
	}
	return r.Run.Summary() + " " + strings.Join(parts, " ")
}
