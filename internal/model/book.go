package model

// Page is one canvas of a book. Order is the 1-based position in the
// source and names the page's files, so it is kept when a page range
// filters the book. Volume is the 1-based volume of a multi-volume work
// and zero otherwise.
type Page struct {
	Order  int    `json:"order" yaml:"order"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Volume int    `json:"volume,omitempty" yaml:"volume,omitempty"`

	// Image URLs
	ImageURL         string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	ImageFallbackURL string `json:"image_fallback_url,omitempty" yaml:"image_fallback_url,omitempty"`
	ImageExt         string `json:"image_ext,omitempty" yaml:"image_ext,omitempty"`

	// OCR URLs
	AltoURL      string `json:"alto_url,omitempty" yaml:"alto_url,omitempty"`
	PlainTextURL string `json:"plain_text_url,omitempty" yaml:"plain_text_url,omitempty"`
}

// HasImage reports whether the page has something to download as image.
func (p Page) HasImage() bool { return p.ImageURL != "" }

// HasOCR reports whether the page references any OCR resource.
func (p Page) HasOCR() bool { return p.AltoURL != "" || p.PlainTextURL != "" }

// Book combines the metadata and pages of one digitized book.
type Book struct {
	ID       string   `json:"book_id" yaml:"book_id"`
	URL      string   `json:"url" yaml:"url"`
	Metadata Metadata `json:"metadata" yaml:"metadata"`
	Pages    []Page   `json:"pages" yaml:"pages"`
}

// NewBook creates a Book. Pages without an Order are numbered by position.
func NewBook(id, url string, metadata Metadata, pages []Page) *Book {
	for i := range pages {
		if pages[i].Order == 0 {
			pages[i].Order = i + 1
		}
	}
	return &Book{ID: id, URL: url, Metadata: metadata, Pages: pages}
}

// Title is a shortcut for Metadata.Title.
func (b *Book) Title() string { return b.Metadata.Title }

// TotalPages is the number of pages in the source, before any filtering.
func (b *Book) TotalPages() int { return len(b.Pages) }

// PagesInRange returns pages whose Order is within [start, end], both
// inclusive. A bound <= 0 is open.
func (b *Book) PagesInRange(start, end int) []Page {
	if start <= 0 && end <= 0 {
		return b.Pages
	}

	var pages []Page
	for _, p := range b.Pages {
		if start > 0 && p.Order < start {
			continue
		}
		if end > 0 && p.Order > end {
			continue
		}
		pages = append(pages, p)
	}
	return pages
}

// Volumes is the number of volumes the pages belong to; a book without
// volumes has one.
func (b *Book) Volumes() int {
	n := 1
	for _, p := range b.Pages {
		n = max(n, p.Volume)
	}
	return n
}

// OCRPages counts pages that reference OCR.
func (b *Book) OCRPages() int {
	n := 0
	for _, p := range b.Pages {
		if p.HasOCR() {
			n++
		}
	}
	return n
}
