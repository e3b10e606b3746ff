// Package ioutils provides file system and image processing utilities.
//
// This package contains functions for:
//   - Atomic file writes (temp file + rename in the same directory)
//   - Zero-padded page file names
//   - Reversible URL slugs for book directories
//   - Filename sanitization and directory creation
//   - Thumbnail generation from scanned pages
//
// # Atomic Writes
//
//	err := ioutils.WriteFileAtomic(dest, body, 0644)
//	// dest is either missing or complete, never truncated
//
// # Slugs
//
// A book directory is named after its manifest URL:
//
//	slug := ioutils.URLToSlug("https://example.org/iiif/book1/manifest")
//	url, _ := ioutils.SlugToURL(slug) // round-trips exactly
//
// # Image Processing
//
// The ImageService turns a page scan (JPEG, PNG, GIF, WebP, TIFF or BMP)
// into a JPEG thumbnail:
//
//	svc := ioutils.NewImageService()
//	thumb, _ := svc.Thumbnail(ctx, pageData, 400)
package ioutils
