// Package store keeps one record file per item:
//
//	<root>/<partner>/<escaped local id>/rdf.yaml
//
// Local ids are path-escaped so DOIs fit in a single directory level.
package store

import (
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/karrick/godirwalk"

	"github.com/agentstation/collection/internal/fsutil"
	"github.com/agentstation/collection/pkg/constants"
	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/items"
)

// Record is one loaded record file.
type Record struct {
	Partner string // partner directory name
	Path    string
	Item    items.Item
}

// Store is a per-item record directory tree.
type Store struct {
	root string
}

// New returns a store rooted at root.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the record file of an item.
func (s *Store) Path(it items.Item) (string, error) {
	if it.PartnerID == "" {
		return "", &errors.ValidationError{Field: "partner", Value: it.ID, Message: "item has no partner"}
	}
	local := it.LocalID()
	if local == "" {
		return "", &errors.ValidationError{Field: "id", Value: it.ID, Message: "item has no local id"}
	}
	return filepath.Join(s.root, it.PartnerID, url.PathEscape(local), constants.RecordName), nil
}

// Render encodes the full record of every item without touching the disk.
func (s *Store) Render(list []items.Item) ([]fsutil.File, error) {
	files := make([]fsutil.File, 0, len(list))
	for _, it := range list {
		path, err := s.Path(it)
		if err != nil {
			return nil, err
		}
		data, err := yaml.MarshalWithOptions(it,
			yaml.Indent(2),
			yaml.IndentSequence(false),
			yaml.UseLiteralStyleIfMultiline(true),
		)
		if err != nil {
			return nil, errors.WrapResource("encode", "item", it.ID, err)
		}
		files = append(files, fsutil.File{Path: path, Data: data})
	}
	return files, nil
}

// Write stores the full record of every item.
func (s *Store) Write(list []items.Item) error {
	files, err := s.Render(list)
	if err != nil {
		return err
	}
	return fsutil.WriteAll(files)
}

// Get loads the stored record of an item. ok is false when none exists.
func (s *Store) Get(it items.Item) (items.Item, bool, error) {
	path, err := s.Path(it)
	if err != nil {
		return items.Item{}, false, err
	}
	rec, err := load(path, it.PartnerID)
	if err != nil {
		if os.IsNotExist(err) {
			return items.Item{}, false, nil
		}
		return items.Item{}, false, err
	}
	return rec.Item, true, nil
}

// Walk calls fn for each record two levels below the root, in name order.
// Only directories are descended and entries without a record file are skipped.
func (s *Store) Walk(fn func(Record) error) error {
	partners, err := readDirs(s.root)
	if err != nil {
		return errors.WrapIO("walk", s.root, err)
	}
	for _, partner := range partners {
		partnerDir := filepath.Join(s.root, partner)
		entries, err := readDirs(partnerDir)
		if err != nil {
			return errors.WrapIO("walk", partnerDir, err)
		}
		for _, entry := range entries {
			path := filepath.Join(partnerDir, entry, constants.RecordName)
			rec, err := load(path, partner)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load returns every record in the store.
func (s *Store) Load() ([]Record, error) {
	var out []Record
	err := s.Walk(func(r Record) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

// Items returns the items of every record.
func (s *Store) Items() ([]items.Item, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}
	list := make([]items.Item, len(records))
	for i, r := range records {
		list[i] = r.Item
	}
	return list, nil
}

func load(path, partner string) (Record, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from the store root
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, err
		}
		return Record{}, errors.WrapIO("read", path, err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Record{}, errors.WrapParse("yaml", path, err)
	}
	it, err := items.FromMap(m)
	if err != nil {
		return Record{}, errors.NewParseError("yaml", path, err.Error(), err)
	}
	if it.PartnerID == "" {
		it.PartnerID = partner
	}
	return Record{Partner: partner, Path: path, Item: it}, nil
}

// readDirs lists subdirectory names of dir, sorted. Hidden entries are ignored.
func readDirs(dir string) ([]string, error) {
	dirents, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirents))
	for _, de := range dirents {
		if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		names = append(names, de.Name())
	}
	slices.Sort(names)
	return names, nil
}
