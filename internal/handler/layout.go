package handler

import (
	"path/filepath"

	"github.com/handiism/bookget/internal/archive"
	ioutils "github.com/handiism/bookget/internal/io"
)

// Layout is the directory tree of one book:
//
//	<download_dir>/<domain>/<slug>/
//	    images/
//	    metadata/
//	    ocr/alto/
//	    ocr/text/
//	    ro-crate-metadata.json
//	<download_dir>/<domain>/<slug>.zip
type Layout struct {
	Slug     string
	Root     string
	Images   string
	Metadata string
	OCR      string
	Alto     string
	Text     string
}

// NewLayout places the book fetched from url below downloadDir.
func NewLayout(downloadDir, url string) Layout {
	slug := ioutils.URLToSlug(url)
	root := filepath.Join(downloadDir, ioutils.Domain(url), slug)
	ocr := filepath.Join(root, "ocr")
	return Layout{
		Slug:     slug,
		Root:     root,
		Images:   filepath.Join(root, "images"),
		Metadata: filepath.Join(root, "metadata"),
		OCR:      ocr,
		Alto:     filepath.Join(ocr, "alto"),
		Text:     filepath.Join(ocr, "text"),
	}
}

// Ensure creates every directory of the layout.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Images, l.Metadata, l.Alto, l.Text} {
		if err := ioutils.EnsureDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// ImagePath is the destination of a page image.
func (l Layout) ImagePath(order int, ext string) string {
	return filepath.Join(l.Images, ioutils.PageFileName(order, ext))
}

// AltoPath is the destination of a page's ALTO file.
func (l Layout) AltoPath(order int) string {
	return filepath.Join(l.Alto, ioutils.PageFileName(order, ".xml"))
}

// TextPath is the destination of a page's plain text file.
func (l Layout) TextPath(order int) string {
	return filepath.Join(l.Text, ioutils.PageFileName(order, ".txt"))
}

func (l Layout) ThumbnailPath() string {
	return filepath.Join(l.Metadata, "thumbnail.jpg")
}

func (l Layout) ArchivePath() string {
	return filepath.Join(filepath.Dir(l.Root), l.Slug+archive.Ext)
}
