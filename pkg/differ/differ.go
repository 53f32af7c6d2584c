package differ

import (
	"maps"
	"slices"

	"github.com/google/go-cmp/cmp"

	"github.com/agentstation/collection/pkg/items"
)

// Differ handles change detection between item lists.
type Differ interface {
	// Items compares the previous bucket with the current fetch, keyed by id.
	Items(previous, current []items.Item) *Changeset
}

// differ is the default implementation of Differ.
type differ struct {
	ignoreFields   map[string]bool
	deepComparison bool
}

// New creates a Differ with default settings.
func New(opts ...Option) Differ {
	d := &differ{
		ignoreFields:   make(map[string]bool),
		deepComparison: true,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Items compares two item lists. Lookups are map based; the first occurrence
// of a repeated id wins and the repetition is reported in Duplicates.
func (diff *differ) Items(previous, current []items.Item) *Changeset {
	cs := &Changeset{
		Added:    []items.Item{},
		Removed:  []items.Item{},
		Retained: []Retained{},
	}

	previousMap := index(previous)
	currentMap := index(current)
	cs.Duplicates.Previous = items.DuplicateIDs(previous)
	cs.Duplicates.Current = items.DuplicateIDs(current)

	// Walk current in fetch order.
	emitted := make(map[string]bool, len(current))
	for _, it := range current {
		if emitted[it.ID] {
			continue
		}
		emitted[it.ID] = true

		prev, exists := previousMap[it.ID]
		if !exists {
			cs.Added = append(cs.Added, it)
			continue
		}
		r := Retained{Previous: prev, Current: it}
		if diff.deepComparison {
			r.Changed = diff.changedFields(prev, it)
		}
		cs.Retained = append(cs.Retained, r)
	}

	emitted = make(map[string]bool, len(previous))
	for _, it := range previous {
		if emitted[it.ID] {
			continue
		}
		emitted[it.ID] = true
		if _, exists := currentMap[it.ID]; !exists {
			cs.Removed = append(cs.Removed, it)
		}
	}

	return cs
}

// changedFields lists the record fields whose content differs.
// Moderation status is not content and is never compared. Index projections
// carry no fields, so only their type can differ.
func (diff *differ) changedFields(prev, cur items.Item) []string {
	var changed []string
	if prev.Type != "" && prev.Type != cur.Type && !diff.ignoreFields["type"] {
		changed = append(changed, "type")
	}
	if len(prev.Fields) == 0 && len(prev.Config) == 0 {
		return changed
	}

	keys := make(map[string]bool)
	for k := range prev.Fields {
		keys[k] = true
	}
	for k := range cur.Fields {
		keys[k] = true
	}
	for _, k := range slices.Sorted(maps.Keys(keys)) {
		if diff.ignoreFields[k] {
			continue
		}
		if !cmp.Equal(prev.Fields[k], cur.Fields[k]) {
			changed = append(changed, k)
		}
	}

	if !diff.ignoreFields["config"] && len(prev.Config) > 0 && !cmp.Equal(prev.Config, cur.Config) {
		changed = append(changed, "config")
	}
	return changed
}

// index maps ids to their first occurrence.
func index(list []items.Item) map[string]items.Item {
	m := make(map[string]items.Item, len(list))
	for _, it := range list {
		if _, seen := m[it.ID]; !seen {
			m[it.ID] = it
		}
	}
	return m
}
