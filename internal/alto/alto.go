// Package alto reads ALTO OCR documents (versions 1 to 4) and turns them
// into plain text.
package alto

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

var (
	// ErrNotALTO is returned for documents whose root is not alto.
	ErrNotALTO = errors.New("not an ALTO document")
	// ErrNoLayout is returned when the Layout section or its Page is missing.
	ErrNoLayout = errors.New("ALTO document has no layout page")
)

// Box is the position of an element in MeasurementUnit.
type Box struct {
	HPos   int
	VPos   int
	Width  int
	Height int
}

// String is one recognised word. Confidence is the WC attribute, 0 when
// absent.
type String struct {
	Box
	Content    string
	Confidence float64
}

type Line struct {
	Box
	Strings []String
}

// Text joins the line's words with spaces.
func (l Line) Text() string {
	words := make([]string, len(l.Strings))
	for i, s := range l.Strings {
		words[i] = s.Content
	}
	return strings.Join(words, " ")
}

type Block struct {
	Box
	Lines []Line
}

// Text joins the block's lines with newlines.
func (b Block) Text() string {
	lines := make([]string, len(b.Lines))
	for i, l := range b.Lines {
		lines[i] = l.Text()
	}
	return strings.Join(lines, "\n")
}

// Page is the layout page. Blocks of composed blocks follow the top-level
// text blocks.
type Page struct {
	ID                  string
	Width               int
	Height              int
	PhysicalImageNumber int
	Blocks              []Block
}

// Text separates blocks by a blank line.
func (p Page) Text() string {
	blocks := make([]string, len(p.Blocks))
	for i, b := range p.Blocks {
		blocks[i] = b.Text()
	}
	return strings.Join(blocks, "\n\n")
}

// Document is a parsed ALTO file. Version is derived from the namespace and
// is empty when it names no version.
type Document struct {
	Version         string
	MeasurementUnit string
	OCRProcessing   []string
	Page            Page
}

// Text is the full text of the page.
func (d *Document) Text() string { return d.Page.Text() }

type rawALTO struct {
	XMLName     xml.Name
	Description struct {
		MeasurementUnit string `xml:"MeasurementUnit"`
		OCRProcessing   []struct {
			ID string `xml:"ID,attr"`
		} `xml:"OCRProcessing"`
	} `xml:"Description"`
	Pages []rawPage `xml:"Layout>Page"`
}

type rawPage struct {
	ID           string       `xml:"ID,attr"`
	Width        string       `xml:"WIDTH,attr"`
	Height       string       `xml:"HEIGHT,attr"`
	PhysicalImgN string       `xml:"PHYSICAL_IMG_NR,attr"`
	PrintSpace   rawContainer `xml:"PrintSpace"`
}

// rawContainer holds text blocks directly or inside composed blocks.
type rawContainer struct {
	TextBlocks     []rawBlock     `xml:"TextBlock"`
	ComposedBlocks []rawContainer `xml:"ComposedBlock"`
}

type rawBox struct {
	HPos   string `xml:"HPOS,attr"`
	VPos   string `xml:"VPOS,attr"`
	Width  string `xml:"WIDTH,attr"`
	Height string `xml:"HEIGHT,attr"`
}

type rawBlock struct {
	rawBox
	Lines []struct {
		rawBox
		Strings []struct {
			rawBox
			Content string `xml:"CONTENT,attr"`
			WC      string `xml:"WC,attr"`
		} `xml:"String"`
	} `xml:"TextLine"`
}

// Parse decodes an ALTO document.
func Parse(data []byte) (*Document, error) {
	var raw rawALTO
	if err := newDecoder(data).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode ALTO: %w", err)
	}
	if !strings.EqualFold(raw.XMLName.Local, "alto") {
		return nil, ErrNotALTO
	}
	if len(raw.Pages) == 0 {
		return nil, ErrNoLayout
	}

	doc := &Document{
		Version:         Version(raw.XMLName.Space),
		MeasurementUnit: strings.TrimSpace(raw.Description.MeasurementUnit),
	}
	for _, p := range raw.Description.OCRProcessing {
		if p.ID != "" {
			doc.OCRProcessing = append(doc.OCRProcessing, p.ID)
		}
	}

	rp := raw.Pages[0]
	doc.Page = Page{
		ID:                  rp.ID,
		Width:               number(rp.Width),
		Height:              number(rp.Height),
		PhysicalImageNumber: number(rp.PhysicalImgN),
	}
	rp.PrintSpace.blocks(&doc.Page.Blocks)
	return doc, nil
}

// Version maps an ALTO namespace URI to its schema version.
func Version(namespace string) string {
	for _, v := range []string{"4", "3", "2", "1"} {
		if strings.Contains(namespace, "ns-v"+v) {
			return v + ".0"
		}
	}
	return ""
}

// ExtractText returns the CONTENT of every String element joined by single
// spaces, without building the layout.
func ExtractText(data []byte) (string, error) {
	dec := newDecoder(data)
	var words []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return strings.Join(words, " "), nil
		}
		if err != nil {
			return "", fmt.Errorf("decode ALTO: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "String" {
			continue
		}
		for _, a := range start.Attr {
			if a.Name.Local == "CONTENT" && a.Value != "" {
				words = append(words, a.Value)
			}
		}
	}
}

func newDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

func (c rawContainer) blocks(out *[]Block) {
	for _, b := range c.TextBlocks {
		*out = append(*out, b.block())
	}
	for _, cb := range c.ComposedBlocks {
		cb.blocks(out)
	}
}

func (b rawBlock) block() Block {
	block := Block{Box: b.box()}
	for _, rl := range b.Lines {
		line := Line{Box: rl.box()}
		for _, rs := range rl.Strings {
			wc, _ := strconv.ParseFloat(strings.TrimSpace(rs.WC), 64)
			line.Strings = append(line.Strings, String{
				Box:        rs.box(),
				Content:    rs.Content,
				Confidence: wc,
			})
		}
		block.Lines = append(block.Lines, line)
	}
	return block
}

func (b rawBox) box() Box {
	return Box{
		HPos:   number(b.HPos),
		VPos:   number(b.VPos),
		Width:  number(b.Width),
		Height: number(b.Height),
	}
}

// number parses an integer or decimal attribute, truncating fractions.
// Missing or invalid values are 0.
func number(s string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int(f)
}
