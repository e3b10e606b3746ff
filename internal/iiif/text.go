package iiif

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// texts flattens any IIIF text value into plain strings: a bare string, an
// array, a v2 {"@value", "@language"} object or a v3 language map. English
// wins when several languages are present.
func texts(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil
		}
		return clean(s)

	case '[':
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return nil
		}
		var all, english []string
		for _, item := range items {
			values := texts(item)
			all = append(all, values...)
			if language(item) == "en" {
				english = append(english, values...)
			}
		}
		if len(english) > 0 {
			return english
		}
		return all

	case '{':
		var obj map[string]json.RawMessage
		if json.Unmarshal(raw, &obj) != nil {
			return nil
		}
		if v, ok := obj["@value"]; ok {
			return texts(v)
		}
		return languageMap(obj)

	default:
		return clean(string(raw))
	}
}

// languageMap picks "en", then "none", then the first language in sorted
// order.
func languageMap(obj map[string]json.RawMessage) []string {
	for _, lang := range []string{"en", "none"} {
		if v, ok := obj[lang]; ok {
			if values := texts(v); len(values) > 0 {
				return values
			}
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if values := texts(obj[k]); len(values) > 0 {
			return values
		}
	}
	return nil
}

func language(raw json.RawMessage) string {
	var obj struct {
		Language string `json:"@language"`
	}
	if len(raw) == 0 || raw[0] != '{' || json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	return strings.ToLower(strings.SplitN(obj.Language, "-", 2)[0])
}

func clean(s string) []string {
	s = strings.TrimSpace(htmlTag.ReplaceAllString(s, ""))
	if s == "" {
		return nil
	}
	return []string{s}
}

// firstText returns the first text of raw, or "".
func firstText(raw json.RawMessage) string {
	if values := texts(raw); len(values) > 0 {
		return values[0]
	}
	return ""
}

// joinedText returns every text of raw joined with "; ".
func joinedText(raw json.RawMessage) string {
	return strings.Join(texts(raw), "; ")
}

// stringOrList decodes a value that is a string or a list of strings.
func stringOrList(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var one string
	if json.Unmarshal(raw, &one) == nil {
		return []string{one}
	}
	var many []json.RawMessage
	if json.Unmarshal(raw, &many) != nil {
		return nil
	}
	var out []string
	for _, item := range many {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}
