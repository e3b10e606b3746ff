package model

import (
	"errors"
	"fmt"
	"strings"
)

// Unknown fills required Dublin Core fields the source does not provide.
const Unknown = "unknown"

// Metadata is a Dublin Core description of a book.
//
// Creator, Title and Date are required; everything else is optional and
// left empty when the source does not say.
type Metadata struct {
	// Required
	Creator string `json:"creator" yaml:"creator"`
	Title   string `json:"title" yaml:"title"`
	Date    string `json:"date" yaml:"date"`

	// Optional
	Contributor string   `json:"contributor,omitempty" yaml:"contributor,omitempty"`
	Publisher   string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Type        string   `json:"type,omitempty" yaml:"type,omitempty"`
	Format      string   `json:"format,omitempty" yaml:"format,omitempty"`
	Identifier  string   `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	Source      string   `json:"source,omitempty" yaml:"source,omitempty"`
	Language    string   `json:"language,omitempty" yaml:"language,omitempty"`
	Relation    string   `json:"relation,omitempty" yaml:"relation,omitempty"`
	Coverage    string   `json:"coverage,omitempty" yaml:"coverage,omitempty"`
	Rights      string   `json:"rights,omitempty" yaml:"rights,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Subject     []string `json:"subject,omitempty" yaml:"subject,omitempty"`
}

// Validate checks that the required fields are present.
func (m Metadata) Validate() error {
	var missing []string
	if strings.TrimSpace(m.Creator) == "" {
		missing = append(missing, "creator")
	}
	if strings.TrimSpace(m.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(m.Date) == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return fmt.Errorf("metadata missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// WithDefaults returns a copy whose empty required fields are Unknown.
func (m Metadata) WithDefaults() Metadata {
	if strings.TrimSpace(m.Creator) == "" {
		m.Creator = Unknown
	}
	if strings.TrimSpace(m.Title) == "" {
		m.Title = Unknown
	}
	if strings.TrimSpace(m.Date) == "" {
		m.Date = Unknown
	}
	return m
}

// ErrNoPages is returned when a source yields a book without pages.
var ErrNoPages = errors.New("book has no pages")
