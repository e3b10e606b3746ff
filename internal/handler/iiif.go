package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/handiism/bookget/internal/config"
	"github.com/handiism/bookget/internal/download"
	"github.com/handiism/bookget/internal/iiif"
	ioutils "github.com/handiism/bookget/internal/io"
	"github.com/handiism/bookget/internal/model"
)

// IIIFName is the registry name of the generic IIIF source.
const IIIFName = "iiif"

// IIIFSource loads IIIF Presentation v2 and v3 manifests.
type IIIFSource struct {
	client download.Getter
	opts   iiif.BookOptions
}

// NewIIIFSource creates the IIIF source. Image requests use the IIIF
// parameters of settings.
func NewIIIFSource(client download.Getter, settings *config.Settings) *IIIFSource {
	return &IIIFSource{client: client, opts: bookOptions(settings)}
}

func bookOptions(settings *config.Settings) iiif.BookOptions {
	return iiif.BookOptions{
		Request: iiif.ImageRequest{
			Region:   settings.IIIFRegion,
			Rotation: settings.IIIFRotation,
			Quality:  settings.IIIFQuality,
			Format:   strings.TrimPrefix(settings.IIIFFormat, "."),
			MaxSize:  settings.IIIFMaxSize,
		},
		ImageExt:   settings.ImageExt(),
		DefaultExt: settings.FileExt,
	}
}

func (s *IIIFSource) Name() string { return IIIFName }

func (s *IIIFSource) Describe() string {
	return "Generic IIIF Presentation API v2/v3 manifest or collection"
}

var acceptJSON = map[string]string{"Accept": "application/json, application/ld+json"}

// Load fetches a manifest. A collection is loaded as a multi-volume book:
// every member manifest is a volume and pages are numbered across volumes.
func (s *IIIFSource) Load(ctx context.Context, url string) (*Manifest, error) {
	body, err := s.client.Get(ctx, url, acceptJSON)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	if iiif.IsCollection(body) {
		return s.loadCollection(ctx, url, body)
	}

	m, err := iiif.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", url, err)
	}

	return &Manifest{
		Book:      m.Book(BookID(url), url, s.opts),
		Documents: map[string][]byte{"manifest.json": body},
	}, nil
}

func (s *IIIFSource) loadCollection(ctx context.Context, url string, body []byte) (*Manifest, error) {
	c, err := iiif.ParseCollection(body)
	if err != nil {
		return nil, fmt.Errorf("parse collection %s: %w", url, err)
	}
	if len(c.Manifests) == 0 {
		return nil, fmt.Errorf("collection %s has no manifests: %w", url, model.ErrNoPages)
	}

	docs := map[string][]byte{"collection.json": body}
	var (
		pages []model.Page
		md    model.Metadata
	)
	for i, ref := range c.Manifests {
		volume := i + 1
		data, err := s.client.Get(ctx, ref.ID, acceptJSON)
		if err != nil {
			return nil, fmt.Errorf("fetch volume %d: %w", volume, err)
		}
		m, err := iiif.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse volume %d %s: %w", volume, ref.ID, err)
		}
		docs[fmt.Sprintf("volume_%04d.json", volume)] = data

		book := m.Book(BookID(ref.ID), ref.ID, s.opts)
		if volume == 1 {
			md = book.Metadata
		}
		for _, p := range book.Pages {
			p.Order = len(pages) + 1
			p.Volume = volume
			pages = append(pages, p)
		}
	}

	if c.Label != "" {
		md.Title = c.Label
	}
	if c.ID != "" {
		md.Identifier = c.ID
	}
	return &Manifest{
		Book:      model.NewBook(BookID(url), url, md, pages),
		Documents: docs,
	}, nil
}

// BookID derives a book identifier from the last path segment of url,
// looking past a trailing "manifest" or "manifest.json".
func BookID(url string) string {
	trimmed := url
	for range 2 {
		seg := ioutils.LastPathSegment(trimmed)
		switch strings.ToLower(seg) {
		case "manifest", "manifest.json":
			trimmed = strings.TrimSuffix(strings.TrimRight(strings.SplitN(trimmed, "?", 2)[0], "/"), seg)
			continue
		case "":
			return "unknown"
		}
		return seg
	}
	return "unknown"
}
