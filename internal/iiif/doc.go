// Package iiif reads IIIF Presentation API manifests, versions 2 and 3.
//
// Parse detects the version and exposes a single Manifest view over both
// layouts. Book turns it into a model.Book whose pages carry an Image API
// URL, a fallback to the plain image id, and any ALTO or plain text OCR
// linked through seeAlso or rendering.
//
//	m, err := iiif.Parse(data)
//	if err != nil {
//	    return err
//	}
//	book := m.Book(id, manifestURL, iiif.BookOptions{Request: iiif.DefaultImageRequest()})
package iiif
