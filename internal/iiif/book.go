package iiif

import (
	"strings"

	"github.com/handiism/bookget/internal/model"
)

// BookOptions controls how canvases become pages.
type BookOptions struct {
	Request ImageRequest
	// ImageExt is the extension of Image API responses, e.g. ".jpg".
	ImageExt string
	// DefaultExt is used for direct image URLs of unknown type.
	DefaultExt string
}

// Book converts the manifest into a model.Book. Every canvas becomes a page
// numbered by its position; the first image of a canvas supplies its URLs.
func (m *Manifest) Book(id, sourceURL string, opts BookOptions) *model.Book {
	if opts.ImageExt == "" {
		opts.ImageExt = ".jpg"
	}
	if opts.DefaultExt == "" {
		opts.DefaultExt = opts.ImageExt
	}

	pages := make([]model.Page, 0, len(m.Canvases))
	for i, c := range m.Canvases {
		page := model.Page{
			Order: i + 1,
			Label: c.Label,
			ID:    c.ID,
		}

		if len(c.Images) > 0 {
			img := c.Images[0]
			page.ImageURL, page.ImageFallbackURL = opts.Request.URLs(img)
			if img.Service != nil {
				page.ImageExt = opts.ImageExt
			} else {
				page.ImageExt = FileExt(img.Format, img.ID, opts.DefaultExt)
			}
		}

		for _, l := range c.SeeAlso {
			switch {
			case page.AltoURL == "" && isALTO(l):
				page.AltoURL = l.ID
			case page.PlainTextURL == "" && isPlainText(l):
				page.PlainTextURL = l.ID
			}
		}

		pages = append(pages, page)
	}

	return model.NewBook(id, sourceURL, m.DublinCore(), pages)
}

func isALTO(l Link) bool {
	return strings.Contains(strings.ToLower(l.Format), "alto") ||
		strings.Contains(strings.ToLower(l.Profile), "alto")
}

func isPlainText(l Link) bool {
	return strings.HasPrefix(strings.ToLower(l.Format), "text/plain")
}

// dcField maps lowercased metadata labels (English and German, as used by
// most European libraries) to Dublin Core elements.
var dcField = map[string]string{
	"author":              "creator",
	"authors":             "creator",
	"creator":             "creator",
	"artist":              "creator",
	"autor":               "creator",
	"verfasser":           "creator",
	"contributor":         "contributor",
	"contributors":        "contributor",
	"date":                "date",
	"date of publication": "date",
	"publication date":    "date",
	"published":           "date",
	"year":                "date",
	"datum":               "date",
	"erscheinungsjahr":    "date",
	"publisher":           "publisher",
	"verlag":              "publisher",
	"language":            "language",
	"languages":           "language",
	"sprache":             "language",
	"subject":             "subject",
	"subjects":            "subject",
	"keywords":            "subject",
	"topic":               "subject",
	"type":                "type",
	"genre":               "type",
	"format":              "format",
	"identifier":          "identifier",
	"shelfmark":           "identifier",
	"call number":         "identifier",
	"signatur":            "identifier",
	"urn":                 "identifier",
	"doi":                 "identifier",
	"source":              "source",
	"repository":          "source",
	"holding institution": "source",
	"relation":            "relation",
	"collection":          "relation",
	"coverage":            "coverage",
	"place":               "coverage",
	"rights":              "rights",
	"license":             "rights",
	"licence":             "rights",
	"description":         "description",
}

// DublinCore maps the manifest's label, description, rights and metadata
// block onto Dublin Core. Missing required fields become model.Unknown.
func (m *Manifest) DublinCore() model.Metadata {
	md := model.Metadata{
		Title:       m.Label,
		Description: m.Description,
		Rights:      m.Rights,
	}

	set := func(target *string, value string) {
		if *target == "" {
			*target = value
		}
	}

	for _, e := range m.Metadata {
		switch dcField[strings.ToLower(strings.TrimSpace(e.Label))] {
		case "creator":
			set(&md.Creator, e.Value)
		case "contributor":
			set(&md.Contributor, e.Value)
		case "date":
			set(&md.Date, e.Value)
		case "publisher":
			set(&md.Publisher, e.Value)
		case "language":
			set(&md.Language, e.Value)
		case "subject":
			for _, s := range strings.Split(e.Value, ";") {
				if s = strings.TrimSpace(s); s != "" {
					md.Subject = append(md.Subject, s)
				}
			}
		case "type":
			set(&md.Type, e.Value)
		case "format":
			set(&md.Format, e.Value)
		case "identifier":
			set(&md.Identifier, e.Value)
		case "source":
			set(&md.Source, e.Value)
		case "relation":
			set(&md.Relation, e.Value)
		case "coverage":
			set(&md.Coverage, e.Value)
		case "rights":
			set(&md.Rights, e.Value)
		case "description":
			set(&md.Description, e.Value)
		}
	}

	set(&md.Rights, m.Attribution)
	set(&md.Date, m.NavDate)
	set(&md.Identifier, m.ID)

	return md.WithDefaults()
}
