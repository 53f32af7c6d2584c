package items

import (
	"fmt"
	"maps"

	"github.com/agentstation/collection/pkg/errors"
)

// depositKey holds upstream session data that must never be persisted.
const depositKey = "_deposit"

// Normalize turns a raw source record into an Item owned by partnerID.
// Partner items are namespaced as <partnerID>/<localID>; primary registry
// items keep their DOI. Any status the source carries is dropped: moderation
// state belongs to the snapshot.
func Normalize(raw RawItem, partnerID string) (Item, error) {
	if partnerID == "" {
		return Item{}, &errors.ValidationError{Field: "partner", Message: "partner id cannot be empty"}
	}
	if raw == nil {
		return Item{}, &errors.ValidationError{Message: "empty record"}
	}

	id, ok := stringValue(raw[keyID])
	if !ok || id == "" {
		return Item{}, &errors.ValidationError{Field: keyID, Value: raw[keyID], Message: "item id cannot be empty"}
	}
	typ, ok := stringValue(raw[keyType])
	if !ok || typ == "" {
		return Item{}, &errors.ValidationError{Field: keyType, Value: id, Message: "item type cannot be empty"}
	}
	t := Type(typ)
	if !t.IsValid() {
		return Item{}, &errors.ValidationError{Field: keyType, Value: typ, Message: fmt.Sprintf("unsupported item type %q for %s", typ, id)}
	}

	it := Item{
		ID:        namespace(partnerID, id),
		Type:      t,
		PartnerID: partnerID,
	}

	if v, present := raw[keyConfig]; present && v != nil {
		cfg, ok := asMap(v)
		if !ok {
			return Item{}, &errors.ValidationError{Field: keyConfig, Value: id, Message: fmt.Sprintf("expected a mapping, got %T", v)}
		}
		cfg = maps.Clone(cfg)
		delete(cfg, depositKey)
		delete(cfg, keyStatus)
		delete(cfg, keyPartner)
		if len(cfg) > 0 {
			it.Config = cfg
		}
	}

	for k, v := range raw {
		switch k {
		case keyID, keyType, keyStatus, keyPartner, keyConfig:
			continue
		}
		if it.Fields == nil {
			it.Fields = make(map[string]any, len(raw))
		}
		it.Fields[k] = v
	}
	return it, nil
}

// namespace prefixes partner-local ids. Feed ids are always local, even when
// they already contain the partner id, so distinct entries stay distinct.
func namespace(partnerID, id string) string {
	if partnerID == PrimaryPartnerID {
		return id
	}
	return partnerID + "/" + id
}
