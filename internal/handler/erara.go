package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/handiism/bookget/internal/config"
	"github.com/handiism/bookget/internal/download"
	"github.com/handiism/bookget/internal/iiif"
	"github.com/handiism/bookget/internal/mets"
	"github.com/handiism/bookget/internal/model"
)

const (
	// ERaraName is the registry name of the e-rara.ch source.
	ERaraName = "erara"
	// ERaraBaseURL is where e-rara serves IIIF manifests and OAI records.
	ERaraBaseURL = "https://www.e-rara.ch"
)

// ErrNoBookID is returned when no e-rara identifier can be found in a URL.
var ErrNoBookID = errors.New("no e-rara book id in URL")

// eraraIDPatterns are tried in order: title page, IIIF manifest, OAI
// request, then any numeric path segment.
var eraraIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/titleinfo/(\d+)`),
	regexp.MustCompile(`/v20/(\d+)`),
	regexp.MustCompile(`identifier=(\d+)`),
	regexp.MustCompile(`/(\d+)/`),
	regexp.MustCompile(`/(\d+)$`),
}

// ERaraSource loads books from e-rara.ch. Pages and metadata come from the
// METS record, images from the IIIF manifest; ALTO and plain text OCR are
// referenced per page.
type ERaraSource struct {
	client download.Getter
	opts   iiif.BookOptions
	base   string
}

func NewERaraSource(client download.Getter, settings *config.Settings) *ERaraSource {
	return &ERaraSource{client: client, opts: bookOptions(settings), base: ERaraBaseURL}
}

// WithBaseURL points the source at another e-rara installation.
func (s *ERaraSource) WithBaseURL(base string) *ERaraSource {
	s.base = strings.TrimRight(base, "/")
	return s
}

func (s *ERaraSource) Name() string { return ERaraName }

func (s *ERaraSource) Describe() string {
	return "e-rara.ch: IIIF images, METS metadata, ALTO and plain text OCR"
}

// ManifestURL is the IIIF manifest of book id.
func (s *ERaraSource) ManifestURL(id string) string {
	return fmt.Sprintf("%s/i3f/v20/%s/manifest", s.base, id)
}

// METSURL is the OAI-PMH GetRecord request for the METS record of book id.
func (s *ERaraSource) METSURL(id string) string {
	return fmt.Sprintf("%s/oai?verb=GetRecord&metadataPrefix=mets&identifier=%s", s.base, id)
}

// Load accepts a title page, manifest or OAI URL.
func (s *ERaraSource) Load(ctx context.Context, url string) (*Manifest, error) {
	id := ERaraID(url)
	if id == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoBookID, url)
	}

	manifestURL := s.ManifestURL(id)
	manifestBody, err := s.client.Get(ctx, manifestURL, acceptJSON)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	manifest, err := iiif.Parse(manifestBody)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", manifestURL, err)
	}

	metsBody, err := s.client.Get(ctx, s.METSURL(id), map[string]string{"Accept": "application/xml, text/xml"})
	if err != nil {
		return nil, fmt.Errorf("fetch METS: %w", err)
	}
	doc, err := mets.Parse(metsBody)
	if err != nil {
		return nil, fmt.Errorf("parse METS for %s: %w", id, err)
	}

	book := ERaraBook(id, url, doc, manifest.Book(id, manifestURL, s.opts).Pages)
	info, err := json.Marshal(eraraInfo{BookID: id, Metadata: doc.Metadata, TotalPages: book.TotalPages()})
	if err != nil {
		return nil, err
	}

	return &Manifest{
		Book: book,
		Documents: map[string][]byte{
			"manifest.json":  manifestBody,
			"mets.xml":       metsBody,
			"book_info.json": info,
		},
	}, nil
}

// ERaraBook combines a METS record with the pages of the IIIF manifest.
// METS pages supply order, label and OCR files; images are matched to them
// by position. Without METS pages the IIIF pages are used as they are.
func ERaraBook(id, url string, doc *mets.Document, images []model.Page) *model.Book {
	md := doc.Metadata
	metadata := model.Metadata{
		Creator:     or(md.Author, model.Unknown),
		Title:       or(md.Title, "Book "+id),
		Date:        or(md.Date, model.Unknown),
		Publisher:   md.Publisher,
		Identifier:  md.DOI,
		Language:    md.Language,
		Rights:      md.License,
		Description: md.Subtitle,
		Type:        "Book",
		Format:      md.Extent,
	}

	if len(doc.Pages) == 0 {
		return model.NewBook(id, url, metadata, images)
	}

	var pages []model.Page
	for _, mp := range doc.Pages {
		pageID := eraraPageID(mp)
		if pageID == "" {
			continue
		}
		page := model.Page{Order: mp.Order, Label: mp.Label, ID: pageID}
		for _, f := range doc.PageFiles(mp) {
			if strings.HasPrefix(f.ID, "ALTO") && f.Href != "" {
				page.AltoURL = f.Href
				page.PlainTextURL = strings.Replace(f.Href, "/alto3/", "/plain/", 1)
				break
			}
		}
		if i := len(pages); i < len(images) {
			page.ImageURL = images[i].ImageURL
			page.ImageFallbackURL = images[i].ImageFallbackURL
			page.ImageExt = images[i].ImageExt
		}
		pages = append(pages, page)
	}
	return model.NewBook(id, url, metadata, pages)
}

// eraraPageID is the number of the page's ALTO file, else the digits of its
// first file id that has any.
func eraraPageID(p mets.Page) string {
	for _, id := range p.FileIDs {
		if strings.HasPrefix(id, "ALTO") {
			return strings.TrimPrefix(id, "ALTO")
		}
	}
	for _, id := range p.FileIDs {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, id)
		if digits != "" {
			return digits
		}
	}
	return ""
}

// ERaraID extracts the numeric e-rara book id from url, or "".
func ERaraID(url string) string {
	for _, re := range eraraIDPatterns {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}

// eraraInfo is saved as book_info.json.
type eraraInfo struct {
	BookID string `json:"book_id"`
	mets.Metadata
	TotalPages int `json:"total_pages"`
}

func or(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
