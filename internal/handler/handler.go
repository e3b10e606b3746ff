// Package handler turns a book URL into files on disk.
//
// A Source knows how to load one kind of manifest into a model.Book;
// Packagers derive extra artifacts (thumbnail, RO-Crate, zip) once the
// downloads are done. The Runner ties them together around the download
// engine:
//
//	runner, err := handler.NewRunnerFromSettings(settings, func(e handler.ProgressEvent) {
//	    fmt.Println(e.Message)
//	})
//	if err != nil {
//	    return err
//	}
//	defer runner.Close()
//
//	result, err := runner.Run(ctx, "iiif", "https://example.org/iiif/b1/manifest")
package handler

import (
	"context"

	"github.com/handiism/bookget/internal/model"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

func (l ProgressLevel) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelVerbose:
		return "verbose"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// ProgressEvent is a human-readable status line for UIs.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Manifest is what a Source loads: the book plus the raw documents it was
// built from, saved under metadata/ by file name.
type Manifest struct {
	Book      *model.Book
	Documents map[string][]byte
}

// Source loads the description of a book from a URL.
type Source interface {
	Name() string
	Describe() string
	Load(ctx context.Context, url string) (*Manifest, error)
}

// Packager derives an artifact from a downloaded book and returns its path.
// Failures are reported but never fail the book.
type Packager interface {
	Name() string
	Package(ctx context.Context, book *model.Book, layout Layout) (string, error)
}
