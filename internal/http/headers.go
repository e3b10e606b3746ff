package http

import (
	"bufio"
	"fmt"
	"net/textproto"
	"os"
	"strings"
)

// LoadHeaders reads a header file with one "Name: value" per line. Blank
// lines and lines starting with # are ignored, as are lines without a colon.
// Names are canonicalized ("user-agent" becomes "User-Agent"). A missing
// file yields an empty map.
func LoadHeaders(path string) (map[string]string, error) {
	headers := make(map[string]string)
	if path == "" {
		return headers, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return headers, nil
		}
		return nil, fmt.Errorf("open header file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		headers[textproto.CanonicalMIMEHeaderKey(name)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read header file: %w", err)
	}

	return headers, nil
}

// mergeHeaders layers maps left to right; later keys win. Names are
// compared case-insensitively and returned in canonical form.
func mergeHeaders(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			out[textproto.CanonicalMIMEHeaderKey(k)] = v
		}
	}
	return out
}
