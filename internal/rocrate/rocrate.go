// Package rocrate writes RO-Crate 1.1 metadata for a downloaded book.
//
// The crate's root Dataset carries the book's Dublin Core description
// mapped onto schema.org terms, and lists every downloaded image and OCR
// file through hasPart.
package rocrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	ioutils "github.com/handiism/bookget/internal/io"
	"github.com/handiism/bookget/internal/model"
)

const (
	// MetadataFile is the name of the crate descriptor at the book root.
	MetadataFile = "ro-crate-metadata.json"

	Context = "https://w3id.org/ro/crate/1.1/context"
	Profile = "https://w3id.org/ro/crate/1.1"

	rootID = "./"
)

// ErrNoBook is returned when there is nothing to describe.
var ErrNoBook = errors.New("rocrate: no book")

// Entity is one node of the JSON-LD graph.
type Entity map[string]any

// ID returns the entity's @id.
func (e Entity) ID() string {
	id, _ := e["@id"].(string)
	return id
}

// Ref points at another entity of the graph.
type Ref struct {
	ID string `json:"@id"`
}

// Crate is an RO-Crate metadata document.
type Crate struct {
	Context string   `json:"@context"`
	Graph   []Entity `json:"@graph"`
}

// Root returns the root Dataset.
func (c *Crate) Root() Entity {
	return c.Entity(rootID)
}

// Entity returns the graph node with the given @id, or nil.
func (c *Crate) Entity(id string) Entity {
	for _, e := range c.Graph {
		if e.ID() == id {
			return e
		}
	}
	return nil
}

func (c *Crate) add(e Entity) Ref {
	if existing := c.Entity(e.ID()); existing == nil {
		c.Graph = append(c.Graph, e)
	}
	return Ref{ID: e.ID()}
}

// File is a data entity listed under hasPart. Path is relative to the
// book root and uses forward slashes.
type File struct {
	Path string
	Size int64
}

// Options selects the parts of the crate that depend on disk content.
type Options struct {
	Files []File
	// Thumbnail is the relative path of a preview image, if one was made.
	Thumbnail string
}

// Validate reports whether the book can be described. Title, creator and
// date are required.
func Validate(book *model.Book) error {
	if book == nil {
		return ErrNoBook
	}
	return book.Metadata.Validate()
}

// New builds the crate for book.
func New(book *model.Book, opts Options) (*Crate, error) {
	if err := Validate(book); err != nil {
		return nil, err
	}

	md := book.Metadata
	c := &Crate{Context: Context}
	c.add(Entity{
		"@id":        MetadataFile,
		"@type":      "CreativeWork",
		"conformsTo": Ref{ID: Profile},
		"about":      Ref{ID: rootID},
	})

	root := Entity{
		"@id":           rootID,
		"@type":         "Dataset",
		"name":          md.Title,
		"datePublished": md.Date,
		"numberOfPages": book.TotalPages(),
		"bookId":        book.ID,
	}
	c.Graph = append(c.Graph, root)

	root["creator"] = c.add(person(md.Creator, ""))
	if md.Contributor != "" {
		root["contributor"] = c.add(person(md.Contributor, "_contributor"))
	}
	if md.Publisher != "" {
		root["publisher"] = c.add(Entity{
			"@id":   entityID(md.Publisher, "_publisher"),
			"@type": "Organization",
			"name":  md.Publisher,
		})
	}

	optional := []struct {
		term, value string
	}{
		{"additionalType", md.Type},
		{"encodingFormat", md.Format},
		{"identifier", md.Identifier},
		{"isBasedOn", md.Source},
		{"inLanguage", md.Language},
		{"relatedLink", md.Relation},
		{"spatialCoverage", md.Coverage},
		{"license", md.Rights},
		{"description", md.Description},
	}
	for _, o := range optional {
		if o.value != "" {
			root[o.term] = o.value
		}
	}
	if len(md.Subject) > 0 {
		root["keywords"] = md.Subject
	}
	if book.URL != "" {
		root["url"] = book.URL
	}

	var parts []Ref
	for _, f := range opts.Files {
		parts = append(parts, c.add(fileEntity(f)))
	}
	if opts.Thumbnail != "" {
		ref := c.add(fileEntity(File{Path: opts.Thumbnail}))
		root["thumbnail"] = ref
		if !containsRef(parts, ref) {
			parts = append(parts, ref)
		}
	}
	if len(parts) > 0 {
		root["hasPart"] = parts
	}

	return c, nil
}

// Write builds the crate for book and writes it atomically to
// <dir>/ro-crate-metadata.json, returning the file's path.
func Write(book *model.Book, dir string, opts Options) (string, error) {
	c, err := New(book, opts)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode crate: %w", err)
	}

	if err := ioutils.EnsureDir(dir); err != nil {
		return "", err
	}
	dest := filepath.Join(dir, MetadataFile)
	if err := ioutils.WriteFileAtomic(dest, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	return dest, nil
}

// Read decodes an existing crate file.
func Read(filename string) (*Crate, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var c Crate
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	return &c, nil
}

// CollectFiles lists the regular files below each of dirs, relative to
// root, in lexical order. Missing directories are ignored, as are
// temporary download files.
func CollectFiles(root string, dirs ...string) ([]File, error) {
	var files []File
	for _, dir := range dirs {
		base := filepath.Join(root, dir)
		err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			files = append(files, File{Path: filepath.ToSlash(rel), Size: info.Size()})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func person(name, suffix string) Entity {
	return Entity{
		"@id":   entityID(name, suffix),
		"@type": "Person",
		"name":  name,
	}
}

func entityID(name, suffix string) string {
	return "#" + strings.ReplaceAll(strings.TrimSpace(name), " ", "_") + suffix
}

func fileEntity(f File) Entity {
	e := Entity{
		"@id":   f.Path,
		"@type": "File",
		"name":  path.Base(f.Path),
	}
	if mt := mediaType(f.Path); mt != "" {
		e["encodingFormat"] = mt
	}
	if f.Size > 0 {
		e["contentSize"] = strconv.FormatInt(f.Size, 10)
	}
	return e
}

func mediaType(p string) string {
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".xml":
		return "application/xml"
	case ".txt":
		return "text/plain"
	case ".jp2":
		return "image/jp2"
	default:
		mt := mime.TypeByExtension(ext)
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = mt[:i]
		}
		return mt
	}
}

func containsRef(refs []Ref, r Ref) bool {
	for _, x := range refs {
		if x == r {
			return true
		}
	}
	return false
}
