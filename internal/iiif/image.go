package iiif

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// ImageRequest holds the Image API parameters used for every page.
type ImageRequest struct {
	Region   string
	Rotation int
	Quality  string
	Format   string
	// MaxSize caps the longest edge in pixels. Zero asks for the full size.
	MaxSize int
}

// DefaultImageRequest asks for the full region, unrotated, default quality
// JPEG.
func DefaultImageRequest() ImageRequest {
	return ImageRequest{Region: "full", Rotation: 0, Quality: "default", Format: "jpg"}
}

// ImageAPIVersion works out the Image API version of a service from its
// type, then its @context, then its profile. Unknown services are treated
// as version 2.
func ImageAPIVersion(s *Service) int {
	if s == nil {
		return 2
	}
	switch {
	case strings.Contains(s.Type, "ImageService3"):
		return 3
	case strings.Contains(s.Type, "ImageService2"):
		return 2
	case strings.Contains(s.Context, "/image/3/"):
		return 3
	case strings.Contains(s.Context, "/image/2/"):
		return 2
	case strings.Contains(s.Profile, "/image/3/"):
		return 3
	default:
		return 2
	}
}

// FullSize is the canonical "whole image" size parameter for an API version.
func FullSize(apiVersion int) string {
	if apiVersion >= 3 {
		return "max"
	}
	return "full"
}

// Size is the size parameter for an image of the given dimensions. Images
// that fit within MaxSize are requested at full size; larger ones are
// scaled along their longest edge. Unknown dimensions cap the width.
func (r ImageRequest) Size(s *Service, width, height int) string {
	full := FullSize(ImageAPIVersion(s))
	n := strconv.Itoa(r.MaxSize)
	switch {
	case r.MaxSize <= 0:
		return full
	case width <= 0 || height <= 0:
		return n + ","
	case width <= r.MaxSize && height <= r.MaxSize:
		return full
	case width > height:
		return n + ","
	default:
		return "," + n
	}
}

// URL builds {service}/{region}/{size}/{rotation}/{quality}.{format} for
// the full size image.
func (r ImageRequest) URL(s *Service) string {
	return r.url(s, FullSize(ImageAPIVersion(s)))
}

func (r ImageRequest) url(s *Service, size string) string {
	return fmt.Sprintf("%s/%s/%s/%d/%s.%s",
		strings.TrimRight(s.ID, "/"),
		r.Region,
		size,
		r.Rotation,
		r.Quality,
		r.Format)
}

// URLs returns the primary and fallback URL for an image. With a service
// the primary is an Image API request sized by MaxSize and the fallback is
// the image's own id; without one the id is the only URL.
func (r ImageRequest) URLs(img Image) (primary, fallback string) {
	if img.Service == nil {
		return img.ID, ""
	}
	primary = r.url(img.Service, r.Size(img.Service, img.Width, img.Height))
	if img.ID != primary {
		fallback = img.ID
	}
	return primary, fallback
}

var mediaTypeExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/tiff": ".tif",
	"image/jp2":  ".jp2",
	"image/webp": ".webp",
}

// FileExt picks the extension for an image saved from rawURL: the media
// type if known, then the URL path, then def.
func FileExt(mediaType, rawURL, def string) string {
	if ext, ok := mediaTypeExt[strings.ToLower(strings.TrimSpace(mediaType))]; ok {
		return ext
	}
	ext := strings.ToLower(path.Ext(strings.SplitN(rawURL, "?", 2)[0]))
	switch ext {
	case ".jpg", ".jpeg":
		return ".jpg"
	case ".png", ".gif", ".tif", ".tiff", ".jp2", ".webp":
		return ext
	}
	return def
}
