package zenodo

import (
	"encoding/json"
	"strconv"
)

// searchResponse is the envelope of GET /api/records/.
// Hits is a pointer: the registry answers rate-limited searches with a body
// that has no hits block at all.
type searchResponse struct {
	Hits *struct {
		Hits  []json.RawMessage `json:"hits"`
		Total json.RawMessage   `json:"total"`
	} `json:"hits"`
}

// Record is the part of a registry record the converter reads.
type Record struct {
	ID       json.Number `json:"id"`
	DOI      string      `json:"doi"`
	Metadata Metadata    `json:"metadata"`
	Links    Links       `json:"links"`
}

// Metadata is the descriptive block of a record.
type Metadata struct {
	Title              string              `json:"title"`
	DOI                string              `json:"doi"`
	Notes              string              `json:"notes"`
	Keywords           []string            `json:"keywords"`
	Creators           []map[string]any    `json:"creators"`
	License            json.RawMessage     `json:"license"`
	RelatedIdentifiers []RelatedIdentifier `json:"related_identifiers"`
}

// Links holds the record URLs; Bucket is the file bucket.
type Links struct {
	Bucket string `json:"bucket"`
	Self   string `json:"self"`
}

// RelatedIdentifier links a record to files and other resources.
type RelatedIdentifier struct {
	Identifier   string `json:"identifier"`
	Relation     string `json:"relation"`
	ResourceType string `json:"resource_type"`
	Scheme       string `json:"scheme"`
}

// Relations used by uploaded collection items.
const (
	relationCompiledBy   = "isCompiledBy"
	relationHasPart      = "hasPart"
	relationReferences   = "references"
	relationDocumentedBy = "isDocumentedBy"

	resourceImageFigure = "image-figure"
	schemeURL           = "url"
)

// license accepts both "CC-BY-4.0" and {"id": "cc-by-4.0"}.
func (m Metadata) license() string {
	if len(m.License) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.License, &s); err == nil {
		return s
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(m.License, &obj); err == nil {
		return obj.ID
	}
	return ""
}

// total reads hits.total, which is a number or {"value": n} depending on the API version.
func (r *searchResponse) total() (int, bool) {
	if r.Hits == nil || len(r.Hits.Total) == 0 {
		return 0, false
	}
	if n, err := strconv.Atoi(string(r.Hits.Total)); err == nil {
		return n, true
	}
	var obj struct {
		Value int `json:"value"`
	}
	if err := json.Unmarshal(r.Hits.Total, &obj); err == nil {
		return obj.Value, true
	}
	return 0, false
}
