package handler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/handiism/bookget/internal/config"
	"github.com/handiism/bookget/internal/download"
	ioutils "github.com/handiism/bookget/internal/io"
)

// AutoName selects the source from the URL, see Detect.
const AutoName = "auto"

// Registry maps handler names to Sources. It is built once at start-up and
// only read afterwards.
type Registry struct {
	sources map[string]Source
}

// NewRegistry registers sources by name. A later source replaces an
// earlier one of the same name.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		r.sources[s.Name()] = s
	}
	return r
}

// Get returns the source registered as name.
func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("handler %q not found, available: %s", name, strings.Join(r.Names(), ", "))
	}
	return s, nil
}

// Resolve is Get, with AutoName replaced by the source Detect picks for
// url.
func (r *Registry) Resolve(name, url string) (Source, error) {
	if name == AutoName {
		name = Detect(url)
	}
	return r.Get(name)
}

// Detect names the source for url: e-rara hosts get the e-rara source,
// everything else is read as a IIIF manifest.
func Detect(url string) string {
	if strings.HasSuffix(strings.ToLower(ioutils.Domain(url)), "e-rara.ch") {
		return ERaraName
	}
	return IIIFName
}

// Names lists the registered handlers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultSources returns every built-in source, sharing client.
func DefaultSources(client download.Getter, settings *config.Settings) []Source {
	return []Source{
		NewIIIFSource(client, settings),
		NewERaraSource(client, settings),
	}
}
