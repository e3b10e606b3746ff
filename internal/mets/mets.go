// Package mets reads METS documents with embedded MODS metadata, as served
// by OAI-PMH GetRecord responses of digital libraries.
package mets

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrNotMETS is returned when a document holds no mets element.
var ErrNotMETS = errors.New("no METS document found")

// Metadata is the MODS description of the work.
type Metadata struct {
	Title     string `json:"title,omitempty"`
	Subtitle  string `json:"subtitle,omitempty"`
	Author    string `json:"author,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Date      string `json:"date,omitempty"`
	Language  string `json:"language,omitempty"`
	Extent    string `json:"extent,omitempty"`
	DOI       string `json:"doi,omitempty"`
	License   string `json:"license,omitempty"`
}

// File is an entry of the file section. Use is the USE of its file group,
// e.g. FULLTEXT or DEFAULT.
type File struct {
	ID       string
	MIMEType string
	Href     string
	Use      string
}

// Page is a page div of the physical structure map.
type Page struct {
	ID      string
	Label   string
	Order   int
	FileIDs []string
}

// Document is a parsed METS document.
type Document struct {
	Metadata Metadata
	Pages    []Page
	Files    map[string]File
}

// PageFiles returns the files a page points to, skipping unknown ids.
func (d *Document) PageFiles(p Page) []File {
	var files []File
	for _, id := range p.FileIDs {
		if f, ok := d.Files[id]; ok {
			files = append(files, f)
		}
	}
	return files
}

type rawMETS struct {
	DmdSecs []struct {
		MODS []rawMODS `xml:"mdWrap>xmlData>mods"`
	} `xml:"dmdSec"`
	FileGroups []rawFileGroup `xml:"fileSec>fileGrp"`
	StructMaps []struct {
		Type string   `xml:"TYPE,attr"`
		Divs []rawDiv `xml:"div"`
	} `xml:"structMap"`
}

type rawMODS struct {
	TitleInfo []struct {
		Title    []string `xml:"title"`
		SubTitle []string `xml:"subTitle"`
	} `xml:"titleInfo"`
	Names []struct {
		Type      string   `xml:"type,attr"`
		NameParts []string `xml:"namePart"`
	} `xml:"name"`
	OriginInfo []struct {
		Publisher  []string `xml:"publisher"`
		DateIssued []string `xml:"dateIssued"`
	} `xml:"originInfo"`
	Language []struct {
		Terms []string `xml:"languageTerm"`
	} `xml:"language"`
	PhysicalDescription []struct {
		Extent []string `xml:"extent"`
	} `xml:"physicalDescription"`
	Identifiers []struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"identifier"`
	AccessConditions []string `xml:"accessCondition"`
}

type rawFileGroup struct {
	Use    string         `xml:"USE,attr"`
	Files  []rawFile      `xml:"file"`
	Groups []rawFileGroup `xml:"fileGrp"`
}

type rawFile struct {
	ID       string `xml:"ID,attr"`
	MIMEType string `xml:"MIMETYPE,attr"`
	FLocat   []struct {
		Href string `xml:"href,attr"`
	} `xml:"FLocat"`
}

type rawDiv struct {
	ID    string `xml:"ID,attr"`
	Type  string `xml:"TYPE,attr"`
	Label string `xml:"LABEL,attr"`
	Order string `xml:"ORDER,attr"`
	Fptrs []struct {
		FileID string `xml:"FILEID,attr"`
	} `xml:"fptr"`
	Divs []rawDiv `xml:"div"`
}

// Parse reads a METS document. The mets element may be the root or be
// wrapped, as in an OAI-PMH record.
func Parse(data []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, ErrNotMETS
		}
		if err != nil {
			return nil, fmt.Errorf("decode METS: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "mets" {
			continue
		}

		var raw rawMETS
		if err := dec.DecodeElement(&raw, &start); err != nil {
			return nil, fmt.Errorf("decode METS: %w", err)
		}
		return raw.document(), nil
	}
}

func (raw *rawMETS) document() *Document {
	doc := &Document{Files: make(map[string]File)}

	for _, dmd := range raw.DmdSecs {
		if len(dmd.MODS) > 0 {
			doc.Metadata = dmd.MODS[0].metadata()
			break
		}
	}

	for _, g := range raw.FileGroups {
		g.collect(doc.Files, "")
	}

	for _, sm := range raw.StructMaps {
		if !strings.EqualFold(sm.Type, "PHYSICAL") {
			continue
		}
		for _, div := range sm.Divs {
			div.pages(&doc.Pages)
		}
		break
	}
	return doc
}

func (m rawMODS) metadata() Metadata {
	var md Metadata
	for _, ti := range m.TitleInfo {
		md.Title = first(md.Title, ti.Title...)
		md.Subtitle = first(md.Subtitle, ti.SubTitle...)
	}
	for _, n := range m.Names {
		if n.Type == "personal" {
			md.Author = first(md.Author, n.NameParts...)
		}
	}
	for _, oi := range m.OriginInfo {
		md.Publisher = first(md.Publisher, oi.Publisher...)
		md.Date = first(md.Date, oi.DateIssued...)
	}
	for _, l := range m.Language {
		md.Language = first(md.Language, l.Terms...)
	}
	for _, pd := range m.PhysicalDescription {
		md.Extent = first(md.Extent, pd.Extent...)
	}
	for _, id := range m.Identifiers {
		if strings.EqualFold(id.Type, "doi") {
			md.DOI = first(md.DOI, id.Value)
		}
	}
	md.License = first(md.License, m.AccessConditions...)
	return md
}

// collect adds the files of g and its nested groups. A group without USE
// inherits its parent's.
func (g rawFileGroup) collect(files map[string]File, use string) {
	if g.Use != "" {
		use = g.Use
	}
	for _, f := range g.Files {
		if f.ID == "" || len(f.FLocat) == 0 {
			continue
		}
		files[f.ID] = File{
			ID:       f.ID,
			MIMEType: f.MIMEType,
			Href:     strings.TrimSpace(f.FLocat[0].Href),
			Use:      use,
		}
	}
	for _, sub := range g.Groups {
		sub.collect(files, use)
	}
}

// pages appends every page div below d, in document order.
func (d rawDiv) pages(out *[]Page) {
	if strings.EqualFold(d.Type, "page") {
		order, err := strconv.Atoi(strings.TrimSpace(d.Order))
		if err != nil {
			order = 0
		}
		p := Page{ID: d.ID, Label: d.Label, Order: order}
		for _, f := range d.Fptrs {
			if f.FileID != "" {
				p.FileIDs = append(p.FileIDs, f.FileID)
			}
		}
		*out = append(*out, p)
	}
	for _, child := range d.Divs {
		child.pages(out)
	}
}

// first returns current if set, otherwise the first non-blank candidate.
func first(current string, candidates ...string) string {
	if current != "" {
		return current
	}
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}
