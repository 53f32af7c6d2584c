package items

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/collection/pkg/errors"
)

const (
	keyPartners    = "partners"
	keyAttachments = "attachments"
)

// Snapshot is the persisted catalog document: partner descriptors plus one
// bucket of items per partner. It is both the input of a run (previous state)
// and its output (next state).
type Snapshot struct {
	Config SnapshotConfig
	Extra  map[string]any // other top-level keys (name, description, ...)

	order   []string
	buckets map[string][]Item
}

// SnapshotConfig is the config section of a snapshot.
type SnapshotConfig struct {
	Partners []Partner
	Extra    map[string]any
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{buckets: make(map[string][]Item)}
}

// Bucket returns a copy of the items stored under a partner id.
func (s *Snapshot) Bucket(partnerID string) []Item {
	if s == nil {
		return nil
	}
	return slices.Clone(s.buckets[partnerID])
}

// HasBucket reports whether the snapshot holds a bucket for the partner.
func (s *Snapshot) HasBucket(partnerID string) bool {
	if s == nil {
		return false
	}
	_, ok := s.buckets[partnerID]
	return ok
}

// SetBucket replaces a bucket. New buckets are appended after existing ones.
func (s *Snapshot) SetBucket(partnerID string, list []Item) {
	if s.buckets == nil {
		s.buckets = make(map[string][]Item)
	}
	if _, ok := s.buckets[partnerID]; !ok {
		s.order = append(s.order, partnerID)
	}
	if list == nil {
		list = []Item{}
	}
	s.buckets[partnerID] = slices.Clone(list)
}

// DeleteBucket drops a bucket.
func (s *Snapshot) DeleteBucket(partnerID string) {
	if _, ok := s.buckets[partnerID]; !ok {
		return
	}
	delete(s.buckets, partnerID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == partnerID })
}

// BucketIDs returns the bucket keys in insertion order.
func (s *Snapshot) BucketIDs() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.order)
}

// Items returns every item across buckets in bucket order.
func (s *Snapshot) Items() []Item {
	var all []Item
	for _, id := range s.BucketIDs() {
		all = append(all, s.buckets[id]...)
	}
	return all
}

// Partner returns the declared descriptor for an id.
func (s *Snapshot) Partner(id string) (Partner, bool) {
	for _, p := range s.Config.Partners {
		if p.ID == id {
			return p, true
		}
	}
	return Partner{}, false
}

// SetPartner replaces the descriptor with the same id, or appends it.
func (s *Snapshot) SetPartner(p Partner) {
	for i := range s.Config.Partners {
		if s.Config.Partners[i].ID == p.ID {
			s.Config.Partners[i] = p
			return
		}
	}
	s.Config.Partners = append(s.Config.Partners, p)
}

// Template returns a copy of the snapshot without any attachments.
func (s *Snapshot) Template() *Snapshot {
	out := NewSnapshot()
	out.Extra = maps.Clone(s.Extra)
	out.Config.Extra = maps.Clone(s.Config.Extra)
	out.Config.Partners = make([]Partner, len(s.Config.Partners))
	for i, p := range s.Config.Partners {
		p.Tags = slices.Clone(p.Tags)
		out.Config.Partners[i] = p
	}
	return out
}

// Clone returns a copy of the snapshot. Buckets are copied; item maps are shared.
func (s *Snapshot) Clone() *Snapshot {
	out := s.Template()
	for _, id := range s.order {
		out.SetBucket(id, s.buckets[id])
	}
	return out
}

// ValidatePartners checks every partner descriptor and id uniqueness.
func (s *Snapshot) ValidatePartners() error {
	seen := make(map[string]bool, len(s.Config.Partners))
	for i, p := range s.Config.Partners {
		if err := p.Validate(); err != nil {
			return errors.WrapResource("validate", "partner", fmt.Sprintf("#%d", i), err)
		}
		if seen[p.ID] {
			return &errors.ValidationError{Field: "config.partners", Value: p.ID, Message: fmt.Sprintf("partner %s declared twice", p.ID)}
		}
		seen[p.ID] = true
	}
	return nil
}

// Validate checks partner descriptors and that ids are unique per bucket.
func (s *Snapshot) Validate() error {
	if err := s.ValidatePartners(); err != nil {
		return err
	}
	for _, id := range s.order {
		if dups := DuplicateIDs(s.buckets[id]); len(dups) > 0 {
			return &errors.DuplicateIDError{Partner: id, Origin: "previous", IDs: dups}
		}
	}
	return nil
}

// DuplicateIDs returns ids occurring more than once, in first-seen order.
func DuplicateIDs(list []Item) []string {
	count := make(map[string]int, len(list))
	var dups []string
	for _, it := range list {
		count[it.ID]++
		if count[it.ID] == 2 {
			dups = append(dups, it.ID)
		}
	}
	return dups
}

// MarshalYAML renders extra keys sorted, then config, then attachments in bucket order.
func (s Snapshot) MarshalYAML() (any, error) {
	out := yaml.MapSlice{}
	for _, k := range slices.Sorted(maps.Keys(s.Extra)) {
		out = append(out, yaml.MapItem{Key: k, Value: s.Extra[k]})
	}

	cfg := yaml.MapSlice{}
	for _, k := range slices.Sorted(maps.Keys(s.Config.Extra)) {
		cfg = append(cfg, yaml.MapItem{Key: k, Value: s.Config.Extra[k]})
	}
	partners := s.Config.Partners
	if partners == nil {
		partners = []Partner{}
	}
	cfg = append(cfg, yaml.MapItem{Key: keyPartners, Value: partners})
	out = append(out, yaml.MapItem{Key: keyConfig, Value: cfg})

	att := yaml.MapSlice{}
	for _, id := range s.order {
		att = append(att, yaml.MapItem{Key: id, Value: s.buckets[id]})
	}
	out = append(out, yaml.MapItem{Key: keyAttachments, Value: att})
	return out, nil
}

// MarshalJSON renders the same content as MarshalYAML.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	doc := maps.Clone(s.Extra)
	if doc == nil {
		doc = make(map[string]any)
	}
	cfg := maps.Clone(s.Config.Extra)
	if cfg == nil {
		cfg = make(map[string]any)
	}
	partners := s.Config.Partners
	if partners == nil {
		partners = []Partner{}
	}
	cfg[keyPartners] = partners
	doc[keyConfig] = cfg

	att := make(map[string][]Item, len(s.order))
	for _, id := range s.order {
		att[id] = s.buckets[id]
	}
	doc[keyAttachments] = att
	return json.Marshal(doc)
}

// YAML encodes the snapshot.
func (s *Snapshot) YAML() ([]byte, error) {
	return yaml.MarshalWithOptions(s,
		yaml.Indent(2),
		yaml.IndentSequence(false),
		yaml.UseLiteralStyleIfMultiline(true),
	)
}

// JSON encodes the snapshot with two-space indentation.
func (s *Snapshot) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// snapshotHead captures the typed parts of the document and the bucket order.
type snapshotHead struct {
	Config struct {
		Partners []Partner `yaml:"partners"`
	} `yaml:"config"`
	Attachments yaml.MapSlice `yaml:"attachments"`
}

// ParseSnapshot decodes a snapshot document. JSON input is accepted too.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapParse("yaml", "", err)
	}
	var head snapshotHead
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, errors.WrapParse("yaml", "", err)
	}

	s := NewSnapshot()
	s.Config.Partners = head.Config.Partners
	for k, v := range doc {
		switch k {
		case keyConfig, keyAttachments:
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]any)
		}
		s.Extra[k] = v
	}
	if cfg, ok := asMap(doc[keyConfig]); ok {
		for k, v := range cfg {
			if k == keyPartners {
				continue
			}
			if s.Config.Extra == nil {
				s.Config.Extra = make(map[string]any)
			}
			s.Config.Extra[k] = v
		}
	}

	att, _ := asMap(doc[keyAttachments])
	order := make([]string, 0, len(att))
	for _, kv := range head.Attachments {
		order = append(order, fmt.Sprint(kv.Key))
	}
	// Fall back to sorted keys if the ordered decode came back short.
	if len(order) != len(att) {
		order = slices.Sorted(maps.Keys(att))
	}
	for _, id := range order {
		raw, ok := att[id]
		if !ok {
			continue
		}
		list, err := parseBucket(id, raw)
		if err != nil {
			return nil, err
		}
		s.SetBucket(id, list)
	}
	return s, nil
}

func parseBucket(partnerID string, raw any) ([]Item, error) {
	if raw == nil {
		return []Item{}, nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil, &errors.ValidationError{
			Field:   "attachments." + partnerID,
			Message: fmt.Sprintf("expected a list, got %T", raw),
		}
	}
	list := make([]Item, 0, len(entries))
	for i, e := range entries {
		m, ok := asMap(e)
		if !ok {
			return nil, &errors.ValidationError{
				Field:   fmt.Sprintf("attachments.%s[%d]", partnerID, i),
				Message: fmt.Sprintf("expected a mapping, got %T", e),
			}
		}
		it, err := FromMap(m)
		if err != nil {
			return nil, errors.WrapValidation(fmt.Sprintf("attachments.%s[%d]", partnerID, i), err)
		}
		list = append(list, it)
	}
	return list, nil
}

// LoadSnapshot reads and decodes a snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapResource("load", "snapshot", path, errors.NewNotFoundError("snapshot", path))
		}
		return nil, errors.WrapIO("read", path, err)
	}
	s, err := ParseSnapshot(data)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) {
			pe.File = path
		}
		return nil, err
	}
	return s, nil
}
