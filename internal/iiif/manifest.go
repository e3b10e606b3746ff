package iiif

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"
)

// Presentation API versions recognised by Parse.
var (
	V2 = version.Must(version.NewVersion("2.1"))
	V3 = version.Must(version.NewVersion("3.0"))
)

// ErrUnknownManifest is returned for JSON that is not a IIIF manifest.
var ErrUnknownManifest = errors.New("unable to determine IIIF manifest version")

// Service is a IIIF Image API service attached to an image.
type Service struct {
	ID      string
	Type    string
	Profile string
	Context string
}

// Image is the painting resource of a canvas.
type Image struct {
	ID      string
	Type    string
	Format  string
	Width   int
	Height  int
	Service *Service
}

// Link is a seeAlso or rendering reference, e.g. an ALTO file.
type Link struct {
	ID      string
	Type    string
	Format  string
	Profile string
	Label   string
}

// Canvas is one page of a manifest.
type Canvas struct {
	ID      string
	Label   string
	Width   int
	Height  int
	Images  []Image
	SeeAlso []Link
}

// MetadataEntry is one label/value pair of the manifest's metadata block.
type MetadataEntry struct {
	Label string
	Value string
}

// Manifest is the version-independent view of a v2 or v3 manifest.
type Manifest struct {
	Version     *version.Version
	ID          string
	Label       string
	Description string
	Attribution string
	Rights      string
	NavDate     string
	Metadata    []MetadataEntry
	Canvases    []Canvas
}

// IsV3 reports whether the manifest uses Presentation API 3.
func (m *Manifest) IsV3() bool {
	return m.Version.GreaterThanOrEqual(V3)
}

type rawManifest struct {
	Context           json.RawMessage `json:"@context"`
	AtID              string          `json:"@id"`
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	Label             json.RawMessage `json:"label"`
	Description       json.RawMessage `json:"description"`
	Summary           json.RawMessage `json:"summary"`
	Attribution       json.RawMessage `json:"attribution"`
	RequiredStatement *rawEntry       `json:"requiredStatement"`
	License           json.RawMessage `json:"license"`
	Rights            json.RawMessage `json:"rights"`
	NavDate           string          `json:"navDate"`
	Metadata          []rawEntry      `json:"metadata"`
	Sequences         []struct {
		Canvases []rawCanvas `json:"canvases"`
	} `json:"sequences"`
	Items []rawCanvas `json:"items"`
}

type rawEntry struct {
	Label json.RawMessage `json:"label"`
	Value json.RawMessage `json:"value"`
}

type rawCanvas struct {
	AtID   string          `json:"@id"`
	ID     string          `json:"id"`
	Label  json.RawMessage `json:"label"`
	Width  json.RawMessage `json:"width"`
	Height json.RawMessage `json:"height"`
	Images []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"images"`
	Items []struct {
		Items []struct {
			Body json.RawMessage `json:"body"`
		} `json:"items"`
	} `json:"items"`
	SeeAlso   json.RawMessage `json:"seeAlso"`
	Rendering json.RawMessage `json:"rendering"`
}

type rawResource struct {
	AtID    string          `json:"@id"`
	ID      string          `json:"id"`
	AtType  string          `json:"@type"`
	Type    string          `json:"type"`
	Format  string          `json:"format"`
	Width   json.RawMessage `json:"width"`
	Height  json.RawMessage `json:"height"`
	Service json.RawMessage `json:"service"`
	Items   []rawResource   `json:"items"`
}

type rawService struct {
	AtID      string          `json:"@id"`
	ID        string          `json:"id"`
	AtType    string          `json:"@type"`
	Type      string          `json:"type"`
	Profile   json.RawMessage `json:"profile"`
	AtContext json.RawMessage `json:"@context"`
}

type rawLink struct {
	AtID    string          `json:"@id"`
	ID      string          `json:"id"`
	AtType  string          `json:"@type"`
	Type    string          `json:"type"`
	Format  string          `json:"format"`
	Profile json.RawMessage `json:"profile"`
	Label   json.RawMessage `json:"label"`
}

// DetectVersion inspects a manifest document. "type": "Manifest" means v3;
// an @context or a sequences block means v2 unless the context names
// Presentation 3.
func DetectVersion(data []byte) (*version.Version, error) {
	var head struct {
		Context   json.RawMessage `json:"@context"`
		Type      string          `json:"type"`
		Sequences json.RawMessage `json:"sequences"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return detect(head.Type, head.Context, head.Sequences)
}

func detect(typ string, context, sequences json.RawMessage) (*version.Version, error) {
	if typ == "Manifest" {
		return V3, nil
	}
	if len(context) == 0 && len(sequences) == 0 {
		return nil, ErrUnknownManifest
	}
	for _, c := range stringOrList(context) {
		if strings.Contains(c, "presentation/3") {
			return V3, nil
		}
	}
	return V2, nil
}

// Parse decodes a v2 or v3 manifest.
func Parse(data []byte) (*Manifest, error) {
	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	var sequences json.RawMessage
	if raw.Sequences != nil {
		sequences = json.RawMessage("[]")
	}
	v, err := detect(raw.Type, raw.Context, sequences)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		Version:     v,
		ID:          firstNonEmpty(raw.ID, raw.AtID),
		Label:       firstText(raw.Label),
		Description: joinedText(firstRaw(raw.Summary, raw.Description)),
		Attribution: joinedText(raw.Attribution),
		Rights:      firstNonEmpty(firstText(raw.Rights), firstText(raw.License)),
		NavDate:     raw.NavDate,
	}
	if raw.RequiredStatement != nil && m.Attribution == "" {
		m.Attribution = joinedText(raw.RequiredStatement.Value)
	}

	for _, e := range raw.Metadata {
		label, value := firstText(e.Label), joinedText(e.Value)
		if label == "" || value == "" {
			continue
		}
		m.Metadata = append(m.Metadata, MetadataEntry{Label: label, Value: value})
	}

	if m.IsV3() {
		for _, c := range raw.Items {
			m.Canvases = append(m.Canvases, c.v3())
		}
	} else {
		for _, seq := range raw.Sequences {
			for _, c := range seq.Canvases {
				m.Canvases = append(m.Canvases, c.v2())
			}
		}
	}

	return m, nil
}

func (c rawCanvas) base() Canvas {
	canvas := Canvas{
		ID:     firstNonEmpty(c.ID, c.AtID),
		Label:  firstText(c.Label),
		Width:  dimension(c.Width),
		Height: dimension(c.Height),
	}
	canvas.SeeAlso = append(parseLinks(c.SeeAlso), parseLinks(c.Rendering)...)
	return canvas
}

// v2: canvas.images[].resource
func (c rawCanvas) v2() Canvas {
	canvas := c.base()
	for _, img := range c.Images {
		if image, ok := parseImage(img.Resource); ok {
			canvas.Images = append(canvas.Images, canvas.sized(image))
		}
	}
	return canvas
}

// v3: canvas.items[].items[].body
func (c rawCanvas) v3() Canvas {
	canvas := c.base()
	for _, page := range c.Items {
		for _, anno := range page.Items {
			if image, ok := parseImage(anno.Body); ok {
				canvas.Images = append(canvas.Images, canvas.sized(image))
			}
		}
	}
	return canvas
}

// sized fills in missing image dimensions from the canvas.
func (c Canvas) sized(img Image) Image {
	if img.Width <= 0 || img.Height <= 0 {
		img.Width, img.Height = c.Width, c.Height
	}
	return img
}

// dimension reads a width or height given as a number or a numeric string.
func dimension(raw json.RawMessage) int {
	raw = bytes.Trim(bytes.TrimSpace(raw), `"`)
	if len(raw) == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}

// parseImage accepts a resource object, a list of them, or a Choice, and
// returns the first usable image.
func parseImage(raw json.RawMessage) (Image, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Image{}, false
	}

	var res rawResource
	if raw[0] == '[' {
		var list []rawResource
		if json.Unmarshal(raw, &list) != nil || len(list) == 0 {
			return Image{}, false
		}
		res = list[0]
	} else if json.Unmarshal(raw, &res) != nil {
		return Image{}, false
	}

	typ := firstNonEmpty(res.Type, res.AtType)
	if (typ == "Choice" || typ == "oa:Choice") && len(res.Items) > 0 {
		res = res.Items[0]
		typ = firstNonEmpty(res.Type, res.AtType)
	}

	image := Image{
		ID:      firstNonEmpty(res.ID, res.AtID),
		Type:    typ,
		Format:  res.Format,
		Width:   dimension(res.Width),
		Height:  dimension(res.Height),
		Service: parseService(res.Service),
	}
	if image.ID == "" && image.Service == nil {
		return Image{}, false
	}
	return image, true
}

// parseService takes a service object or the first entry of a list.
func parseService(raw json.RawMessage) *Service {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var svc rawService
	if raw[0] == '[' {
		var list []rawService
		if json.Unmarshal(raw, &list) != nil || len(list) == 0 {
			return nil
		}
		svc = list[0]
	} else if json.Unmarshal(raw, &svc) != nil {
		return nil
	}

	id := firstNonEmpty(svc.ID, svc.AtID)
	if id == "" {
		return nil
	}
	return &Service{
		ID:      id,
		Type:    firstNonEmpty(svc.Type, svc.AtType),
		Profile: strings.Join(stringOrList(svc.Profile), " "),
		Context: strings.Join(stringOrList(svc.AtContext), " "),
	}
}

func parseLinks(raw json.RawMessage) []Link {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	var list []rawLink
	if raw[0] == '[' {
		if json.Unmarshal(raw, &list) != nil {
			return nil
		}
	} else {
		var one rawLink
		if json.Unmarshal(raw, &one) != nil {
			return nil
		}
		list = []rawLink{one}
	}

	links := make([]Link, 0, len(list))
	for _, l := range list {
		id := firstNonEmpty(l.ID, l.AtID)
		if id == "" {
			continue
		}
		links = append(links, Link{
			ID:      id,
			Type:    firstNonEmpty(l.Type, l.AtType),
			Format:  l.Format,
			Profile: strings.Join(stringOrList(l.Profile), " "),
			Label:   firstText(l.Label),
		})
	}
	return links
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstRaw(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(bytes.TrimSpace(v)) > 0 {
			return v
		}
	}
	return nil
}
