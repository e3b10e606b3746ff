package iiif

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// ErrNotCollection is returned by ParseCollection for other documents.
var ErrNotCollection = errors.New("not a IIIF collection")

// Reference points at a member manifest of a collection.
type Reference struct {
	ID    string
	Label string
}

// Collection lists the volumes of a multi-volume work. Nested collections
// are not followed.
type Collection struct {
	Version   *version.Version
	ID        string
	Label     string
	Manifests []Reference
}

type rawCollection struct {
	AtID      string          `json:"@id"`
	ID        string          `json:"id"`
	AtType    string          `json:"@type"`
	Type      string          `json:"type"`
	Label     json.RawMessage `json:"label"`
	Manifests []rawLink       `json:"manifests"`
	Members   []rawLink       `json:"members"`
	Items     []rawLink       `json:"items"`
}

// IsCollection reports whether data is a v2 or v3 collection document.
func IsCollection(data []byte) bool {
	var head struct {
		AtType string `json:"@type"`
		Type   string `json:"type"`
	}
	if json.Unmarshal(data, &head) != nil {
		return false
	}
	return isCollectionType(firstNonEmpty(head.Type, head.AtType))
}

func isCollectionType(t string) bool {
	return t == "Collection" || t == "sc:Collection"
}

// ParseCollection decodes a collection and returns its member manifests in
// document order.
func ParseCollection(data []byte) (*Collection, error) {
	var raw rawCollection
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	if !isCollectionType(firstNonEmpty(raw.Type, raw.AtType)) {
		return nil, ErrNotCollection
	}

	c := &Collection{
		Version: V2,
		ID:      firstNonEmpty(raw.ID, raw.AtID),
		Label:   firstText(raw.Label),
	}
	members := append(raw.Manifests, raw.Members...)
	if raw.Type == "Collection" {
		c.Version = V3
		members = raw.Items
	}

	seen := make(map[string]bool)
	for _, m := range members {
		id := firstNonEmpty(m.ID, m.AtID)
		typ := firstNonEmpty(m.Type, m.AtType)
		if id == "" || seen[id] || strings.Contains(typ, "Collection") {
			continue
		}
		seen[id] = true
		c.Manifests = append(c.Manifests, Reference{ID: id, Label: firstText(m.Label)})
	}
	return c, nil
}
