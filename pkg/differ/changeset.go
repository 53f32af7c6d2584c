// Package differ provides functionality for comparing item lists and detecting changes.
package differ

import (
	"fmt"
	"strings"

	"github.com/agentstation/collection/pkg/items"
)

// Retained pairs an item present in both lists.
type Retained struct {
	Previous items.Item
	Current  items.Item
	Changed  []string // record fields whose content differs
}

// Updated reports whether the item's content changed.
func (r Retained) Updated() bool {
	return len(r.Changed) > 0
}

// Duplicates lists ids seen more than once per side.
type Duplicates struct {
	Previous []string
	Current  []string
}

// Any reports whether either side repeats an id.
func (d Duplicates) Any() bool {
	return len(d.Previous) > 0 || len(d.Current) > 0
}

// Changeset represents the differences between two item lists.
type Changeset struct {
	Added      []items.Item // In current only, in fetch order
	Removed    []items.Item // In previous only, in previous order
	Retained   []Retained   // In both, in fetch order
	Duplicates Duplicates
}

// ChangesetSummary provides summary statistics for a changeset.
type ChangesetSummary struct {
	Added        int
	Removed      int
	Retained     int
	Updated      int
	TotalChanges int
}

// HasChanges returns true if items were added, removed or updated.
func (c *Changeset) HasChanges() bool {
	return c.Summary().TotalChanges > 0
}

// IsEmpty returns true if the changeset contains no changes.
func (c *Changeset) IsEmpty() bool {
	return !c.HasChanges()
}

// Updated returns the retained items whose content changed.
func (c *Changeset) Updated() []Retained {
	var out []Retained
	for _, r := range c.Retained {
		if r.Updated() {
			out = append(out, r)
		}
	}
	return out
}

// Summary computes summary statistics.
func (c *Changeset) Summary() ChangesetSummary {
	updated := len(c.Updated())
	return ChangesetSummary{
		Added:        len(c.Added),
		Removed:      len(c.Removed),
		Retained:     len(c.Retained),
		Updated:      updated,
		TotalChanges: len(c.Added) + len(c.Removed) + updated,
	}
}

// String returns a human-readable summary.
func (c *Changeset) String() string {
	s := c.Summary()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d added, %d removed, %d retained (%d updated)", s.Added, s.Removed, s.Retained, s.Updated)
	if c.Duplicates.Any() {
		fmt.Fprintf(&sb, "; duplicate ids: previous %v, current %v", c.Duplicates.Previous, c.Duplicates.Current)
	}
	return sb.String()
}

// Print writes a detailed listing of the changes to stdout.
func (c *Changeset) Print() {
	fmt.Println(c.String())
	for _, it := range c.Added {
		fmt.Printf("  + %s\n", it.ID)
	}
	for _, r := range c.Updated() {
		fmt.Printf("  ~ %s (%s)\n", r.Current.ID, strings.Join(r.Changed, ", "))
	}
	for _, it := range c.Removed {
		fmt.Printf("  - %s\n", it.ID)
	}
}
