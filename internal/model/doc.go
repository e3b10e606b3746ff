// Package model defines the core data structures used throughout bookget.
//
// # Book
//
// Book combines Dublin Core Metadata with the ordered Pages of a digitized
// book:
//
//	book := model.NewBook("b1", manifestURL, metadata, pages)
//	for _, page := range book.PagesInRange(4, 10) {
//	    fmt.Println(page.Order, page.ImageURL)
//	}
//
// # Metadata
//
// Metadata follows Dublin Core. Creator, Title and Date are required;
// WithDefaults fills missing ones with "unknown".
//
// # Result
//
// Result is the summary record produced for each processed book and printed
// by the CLI as text, JSON or YAML.
package model
