package items

import (
	"fmt"
	"strings"

	"github.com/agentstation/collection/pkg/errors"
)

// Partner describes a partner feed declared in the index snapshot.
// The field set is fixed; keys a feed declares beyond it are ignored.
type Partner struct {
	ID          string   `json:"id" yaml:"id"`                                       // Unique partner identifier (bucket key)
	Source      string   `json:"source" yaml:"source"`                               // Feed URL
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`               // Display name
	Description string   `json:"description,omitempty" yaml:"description,omitempty"` // Short description
	Icon        string   `json:"icon,omitempty" yaml:"icon,omitempty"`               // Icon URL or emoji
	Logo        string   `json:"logo,omitempty" yaml:"logo,omitempty"`               // Logo URL
	Docs        string   `json:"docs,omitempty" yaml:"docs,omitempty"`               // Documentation URL
	Splash      string   `json:"splash_title,omitempty" yaml:"splash_title,omitempty"`
	Background  string   `json:"background_image,omitempty" yaml:"background_image,omitempty"`
	URL         string   `json:"url,omitempty" yaml:"url,omitempty"` // Homepage
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// PartnerConfig is the config block a partner feed declares about itself.
type PartnerConfig struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Icon        string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Logo        string   `json:"logo,omitempty" yaml:"logo,omitempty"`
	Docs        string   `json:"docs,omitempty" yaml:"docs,omitempty"`
	Splash      string   `json:"splash_title,omitempty" yaml:"splash_title,omitempty"`
	Background  string   `json:"background_image,omitempty" yaml:"background_image,omitempty"`
	URL         string   `json:"url,omitempty" yaml:"url,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Validate checks the partner descriptor.
func (p Partner) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return &errors.ValidationError{Field: "id", Message: "partner id cannot be empty"}
	}
	if p.ID == PrimaryPartnerID {
		return &errors.ValidationError{
			Field:   "id",
			Value:   p.ID,
			Message: fmt.Sprintf("partner id %q is reserved for the primary registry", p.ID),
		}
	}
	if strings.ContainsAny(p.ID, `/\`) {
		return &errors.ValidationError{Field: "id", Value: p.ID, Message: "partner id cannot contain path separators"}
	}
	if strings.TrimSpace(p.Source) == "" {
		return &errors.ValidationError{Field: "source", Value: p.ID, Message: "partner source cannot be empty"}
	}
	return nil
}

// Overlay copies the fields a feed declares about itself onto the descriptor.
// ID and Source always stay as configured.
func (p Partner) Overlay(cfg *PartnerConfig) Partner {
	if cfg == nil {
		return p
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.Name, cfg.Name)
	set(&p.Description, cfg.Description)
	set(&p.Icon, cfg.Icon)
	set(&p.Logo, cfg.Logo)
	set(&p.Docs, cfg.Docs)
	set(&p.Splash, cfg.Splash)
	set(&p.Background, cfg.Background)
	set(&p.URL, cfg.URL)
	if len(cfg.Tags) > 0 {
		p.Tags = append([]string(nil), cfg.Tags...)
	}
	return p
}
