package zenodo

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/agentstation/collection/pkg/constants"
	"github.com/agentstation/collection/pkg/items"
)

var (
	apiFilePattern    = regexp.MustCompile(`.*zenodo\.org/api/files/.*/(.*)`)
	recordFilePattern = regexp.MustCompile(`.*zenodo\.org/.*/files/(.*)`)
)

// ConvertError explains why a record could not become an item.
type ConvertError struct {
	RecordID string
	Reason   string
}

// Error implements the error interface.
func (e *ConvertError) Error() string {
	return fmt.Sprintf("record %s: %s", e.RecordID, e.Reason)
}

// ToRawItem maps a registry record onto a raw collection item.
// deposit is the undecoded record; it travels in config._deposit and is
// stripped again by the normalizer.
func ToRawItem(rec Record, deposit map[string]any) (items.RawItem, error) {
	md := rec.Metadata
	recID := rec.ID.String()
	if recID == "" {
		recID = md.DOI
	}

	typ := ""
	for _, k := range md.Keywords {
		if strings.HasPrefix(k, constants.TypeKeywordPrefix) {
			typ = strings.TrimPrefix(k, constants.TypeKeywordPrefix)
			break
		}
	}
	if typ == "" {
		return nil, &ConvertError{RecordID: recID, Reason: fmt.Sprintf("no %q<type> keyword", constants.TypeKeywordPrefix)}
	}

	var (
		rdfFile       string
		documentation string
		covers        = []string{}
		links         = []string{}
	)
	for _, idf := range md.RelatedIdentifiers {
		if idf.Scheme != schemeURL {
			continue
		}
		switch {
		case idf.Relation == relationCompiledBy:
			u, err := bucketURL(idf.Identifier, rec.Links.Bucket, "/files/")
			if err != nil {
				return nil, &ConvertError{RecordID: recID, Reason: err.Error()}
			}
			rdfFile = u
		case idf.Relation == relationHasPart && idf.ResourceType == resourceImageFigure:
			u, err := bucketURL(idf.Identifier, rec.Links.Bucket, recID+"/files/")
			if err != nil {
				return nil, &ConvertError{RecordID: recID, Reason: err.Error()}
			}
			covers = append(covers, u)
		case idf.Relation == relationReferences && strings.HasPrefix(idf.Identifier, constants.ResourceLinkPrefix):
			link := strings.TrimPrefix(idf.Identifier, constants.ResourceLinkPrefix)
			if decoded, err := url.QueryUnescape(link); err == nil {
				link = decoded
			}
			links = append(links, link)
		case idf.Relation == relationDocumentedBy:
			documentation = idf.Identifier
			if _, name, ok := strings.Cut(idf.Identifier, "/files/"); ok && rec.Links.Bucket != "" {
				documentation = rec.Links.Bucket + "/" + name
			}
		}
	}
	if rdfFile == "" {
		return nil, &ConvertError{RecordID: recID, Reason: "record file is not declared in related_identifiers"}
	}

	tags := make([]string, 0, len(md.Keywords)+1)
	tags = append(tags, md.Keywords...)
	tags = append(tags, items.PrimaryPartnerID)

	authors := make([]any, 0, len(md.Creators))
	for _, c := range md.Creators {
		authors = append(authors, c)
	}

	raw := items.RawItem{
		"id":          md.DOI,
		"name":        md.Title,
		"type":        typ,
		"authors":     authors,
		"tags":        tags,
		"description": strings.Replace(md.Notes, constants.UploadNote, "", 1),
		"license":     md.license(),
		"covers":      covers,
		"source":      rdfFile,
		"links":       links,
		"config": map[string]any{
			"_doi":      md.DOI,
			"_rdf_file": rdfFile,
			"_deposit":  deposit,
		},
	}
	if documentation != "" {
		raw["documentation"] = documentation
	}
	return raw, nil
}

// bucketURL rewrites file references onto the record's file bucket.
// marker selects which hosted URLs are recognised as record files.
func bucketURL(identifier, bucket, marker string) (string, error) {
	switch {
	case strings.HasPrefix(identifier, "file://"):
		if bucket == "" {
			return "", fmt.Errorf("record has no file bucket for %s", identifier)
		}
		return bucket + "/" + strings.TrimPrefix(identifier, "file://"), nil
	case strings.Contains(identifier, marker):
		pattern := recordFilePattern
		if strings.Contains(identifier, "/api/files/") {
			pattern = apiFilePattern
		}
		m := pattern.FindStringSubmatch(identifier)
		if m == nil || bucket == "" {
			return "", fmt.Errorf("invalid file identifier: %s", identifier)
		}
		return bucket + "/" + m[1], nil
	}
	return "", fmt.Errorf("invalid file identifier: %s", identifier)
}
