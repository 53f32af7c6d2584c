// Package items defines the records the collection builder reconciles: resource
// items, partner descriptors and the catalog snapshot that persists moderation
// state between runs.
package items

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/collection/pkg/errors"
)

// Type is the declared kind of a resource item.
type Type string

// Item types.
const (
	TypeDataset     Type = "dataset"
	TypeApplication Type = "application"
)

// Types returns the supported item types in feed order.
func Types() []Type {
	return []Type{TypeDataset, TypeApplication}
}

// IsValid reports whether t is a supported item type.
func (t Type) IsValid() bool {
	return slices.Contains(Types(), t)
}

// String returns the string representation of the type.
func (t Type) String() string {
	return string(t)
}

// Status is the moderation state of an item.
type Status string

// Moderation states.
const (
	// StatusPending marks an item seen for the first time, awaiting review.
	StatusPending Status = "pending"
	// StatusPassed marks an item approved for publication.
	StatusPassed Status = "passed"
	// StatusDeleted marks an item that disappeared from its source (tombstone).
	StatusDeleted Status = "deleted"
)

// IsValid reports whether s is a known moderation state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPassed, StatusDeleted:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// PrimaryPartnerID is the reserved bucket of the primary registry.
const PrimaryPartnerID = "zenodo"

// RawItem is an untyped record as delivered by a source.
type RawItem map[string]any

// Reserved record keys. Everything else is kept in Item.Fields.
const (
	keyID      = "id"
	keyType    = "type"
	keyStatus  = "status"
	keyPartner = "partner"
	keyConfig  = "config"
)

// Item is one catalog entry.
type Item struct {
	ID        string
	Type      Type
	Status    Status
	PartnerID string
	Config    map[string]any // source_config, never carries "_deposit"
	Fields    map[string]any // remaining record attributes (name, authors, covers, ...)
}

// LocalID returns the id without its partner namespace.
func (it Item) LocalID() string {
	if it.PartnerID == "" || it.PartnerID == PrimaryPartnerID {
		return it.ID
	}
	return strings.TrimPrefix(it.ID, it.PartnerID+"/")
}

// Project returns the minimal index form {id, status, type}.
func (it Item) Project() Item {
	return Item{ID: it.ID, Type: it.Type, Status: it.Status}
}

// WithStatus returns a copy of the item with the given status.
func (it Item) WithStatus(status Status) Item {
	it.Status = status
	return it
}

// IDs returns the ids of items in order.
func IDs(list []Item) []string {
	ids := make([]string, len(list))
	for i, it := range list {
		ids[i] = it.ID
	}
	return ids
}

// toMapSlice renders the item with the known keys first.
func (it Item) toMapSlice() yaml.MapSlice {
	out := yaml.MapSlice{{Key: keyID, Value: it.ID}}
	if it.Type != "" {
		out = append(out, yaml.MapItem{Key: keyType, Value: string(it.Type)})
	}
	if it.Status != "" {
		out = append(out, yaml.MapItem{Key: keyStatus, Value: string(it.Status)})
	}
	if it.PartnerID != "" {
		out = append(out, yaml.MapItem{Key: keyPartner, Value: it.PartnerID})
	}
	for _, k := range slices.Sorted(maps.Keys(it.Fields)) {
		out = append(out, yaml.MapItem{Key: k, Value: it.Fields[k]})
	}
	if len(it.Config) > 0 {
		out = append(out, yaml.MapItem{Key: keyConfig, Value: it.Config})
	}
	return out
}

func (it Item) toMap() map[string]any {
	out := make(map[string]any, len(it.Fields)+5)
	for _, kv := range it.toMapSlice() {
		out[kv.Key.(string)] = kv.Value
	}
	return out
}

// MarshalYAML flattens Fields next to the known keys.
func (it Item) MarshalYAML() (any, error) {
	return it.toMapSlice(), nil
}

// MarshalJSON flattens Fields next to the known keys.
func (it Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(it.toMap())
}

// UnmarshalYAML reads a persisted record.
func (it *Item) UnmarshalYAML(data []byte) error {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := FromMap(m)
	if err != nil {
		return err
	}
	*it = parsed
	return nil
}

// UnmarshalJSON reads a persisted record.
func (it *Item) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := FromMap(m)
	if err != nil {
		return err
	}
	*it = parsed
	return nil
}

// FromMap builds an item from a persisted record without any normalization.
// Records written by older runs keep the status under config.status; that
// location is still honoured when the top-level key is missing.
func FromMap(m map[string]any) (Item, error) {
	if m == nil {
		return Item{}, &errors.ValidationError{Field: keyID, Message: "empty record"}
	}
	id, ok := stringValue(m[keyID])
	if !ok || id == "" {
		return Item{}, &errors.ValidationError{Field: keyID, Message: "record has no id"}
	}
	it := Item{ID: id}
	if s, ok := stringValue(m[keyType]); ok {
		it.Type = Type(s)
	}
	if s, ok := stringValue(m[keyStatus]); ok {
		it.Status = Status(s)
	}
	if s, ok := stringValue(m[keyPartner]); ok {
		it.PartnerID = s
	}
	if cfg, ok := asMap(m[keyConfig]); ok {
		it.Config = maps.Clone(cfg)
		if it.Status == "" {
			if s, ok := stringValue(cfg[keyStatus]); ok {
				it.Status = Status(s)
			}
		}
		if it.PartnerID == "" {
			if s, ok := stringValue(cfg[keyPartner]); ok {
				it.PartnerID = s
			}
		}
	}
	for k, v := range m {
		switch k {
		case keyID, keyType, keyStatus, keyPartner, keyConfig:
			continue
		}
		if it.Fields == nil {
			it.Fields = make(map[string]any)
		}
		it.Fields[k] = v
	}
	return it, nil
}

// stringValue converts scalar identifiers to strings; feeds often carry numeric ids.
func stringValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case fmt.Stringer:
		return x.String(), true
	}
	return "", false
}

// asMap accepts both decoded map shapes.
func asMap(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case RawItem:
		return map[string]any(x), true
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	case yaml.MapSlice:
		return asMap(x.ToMap())
	}
	return nil, false
}
