package handler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/handiism/bookget/internal/alto"
	"github.com/handiism/bookget/internal/archive"
	"github.com/handiism/bookget/internal/config"
	ioutils "github.com/handiism/bookget/internal/io"
	"github.com/handiism/bookget/internal/model"
	"github.com/handiism/bookget/internal/rocrate"
)

// ErrNoImages is returned by the thumbnail packager when no page image is
// on disk.
var ErrNoImages = errors.New("no downloaded image to make a thumbnail from")

// DefaultPackagers returns the packagers enabled by settings, in the order
// they must run: the thumbnail and derived text files are listed by the
// crate, and the archive holds all of them.
func DefaultPackagers(settings *config.Settings) []Packager {
	var ps []Packager
	if settings.Thumbnail && !settings.SkipImages {
		ps = append(ps, &ThumbnailPackager{
			images:  ioutils.NewImageService(),
			maxSize: settings.ThumbnailMaxSize,
			ext:     settings.FileExt,
		})
	}
	if !settings.SkipOCR {
		ps = append(ps, TextPackager{})
	}
	ps = append(ps, ROCratePackager{})
	if settings.Archive {
		ps = append(ps, ArchivePackager{})
	}
	return ps
}

// ThumbnailPackager scales the first downloaded page image down to
// metadata/thumbnail.jpg.
type ThumbnailPackager struct {
	images  *ioutils.ImageService
	maxSize int
	ext     string
}

func (p *ThumbnailPackager) Name() string { return "thumbnail" }

func (p *ThumbnailPackager) Package(ctx context.Context, book *model.Book, layout Layout) (string, error) {
	dst := layout.ThumbnailPath()
	if ioutils.Exists(dst) {
		return dst, nil
	}

	for _, page := range book.Pages {
		if !page.HasImage() {
			continue
		}
		ext := page.ImageExt
		if ext == "" {
			ext = p.ext
		}
		src := layout.ImagePath(page.Order, ext)
		if !ioutils.Exists(src) {
			continue
		}
		if err := p.images.ThumbnailFile(ctx, src, dst, p.maxSize); err != nil {
			return "", err
		}
		return dst, nil
	}
	return "", ErrNoImages
}

// TextPackager derives ocr/text/NNNN.txt from the downloaded ALTO file of
// every page that has no plain text yet. Pages whose ALTO holds no words
// are left alone.
type TextPackager struct{}

func (TextPackager) Name() string { return "text" }

func (TextPackager) Package(ctx context.Context, book *model.Book, layout Layout) (string, error) {
	var errs []error
	for _, page := range book.Pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		src, dst := layout.AltoPath(page.Order), layout.TextPath(page.Order)
		if !ioutils.Exists(src) || ioutils.Exists(dst) {
			continue
		}
		if err := altoToText(src, dst); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return "", err
	}
	return layout.Text, nil
}

// altoToText keeps the block and line structure when the layout parses and
// falls back to the bare words otherwise.
func altoToText(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	var text string
	if doc, err := alto.Parse(data); err == nil {
		text = doc.Text()
	}
	if strings.TrimSpace(text) == "" {
		if text, err = alto.ExtractText(data); err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
	}
	if text == "" {
		return nil
	}
	return ioutils.WriteFileAtomic(dst, []byte(text+"\n"), 0644)
}

// ROCratePackager writes ro-crate-metadata.json listing every file under
// images/ and ocr/.
type ROCratePackager struct{}

func (ROCratePackager) Name() string { return "rocrate" }

func (ROCratePackager) Package(_ context.Context, book *model.Book, layout Layout) (string, error) {
	files, err := rocrate.CollectFiles(layout.Root, "images", "ocr")
	if err != nil {
		return "", err
	}

	opts := rocrate.Options{Files: files}
	if ioutils.Exists(layout.ThumbnailPath()) {
		opts.Thumbnail = "metadata/thumbnail.jpg"
	}
	return rocrate.Write(book, layout.Root, opts)
}

// ArchivePackager zips the book directory next to it.
type ArchivePackager struct{}

func (ArchivePackager) Name() string { return "archive" }

func (ArchivePackager) Package(ctx context.Context, _ *model.Book, layout Layout) (string, error) {
	dest := layout.ArchivePath()
	if err := archive.Create(ctx, layout.Root, dest); err != nil {
		return "", err
	}
	return dest, nil
}
