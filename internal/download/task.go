package download

import (
	"errors"
	"fmt"
)

// Provenance ties a task back to the book it belongs to. It is carried for
// logging and callbacks only.
type Provenance struct {
	BookID   string
	Title    string
	VolumeID string
}

// Task is one file to fetch: a primary URL, an optional fallback used only
// when the primary answers 404, and the destination path. Tasks are values
// and are never modified by the Manager.
type Task struct {
	SourceURL   string
	FallbackURL string
	Destination string
	Headers     map[string]string
	Provenance  Provenance
}

// NewTask builds a Task, rejecting an empty source URL or destination.
func NewTask(sourceURL, fallbackURL, destination string) (Task, error) {
	if sourceURL == "" {
		return Task{}, errors.New("task source URL is empty")
	}
	if destination == "" {
		return Task{}, fmt.Errorf("task for %s has no destination", sourceURL)
	}
	return Task{
		SourceURL:   sourceURL,
		FallbackURL: fallbackURL,
		Destination: destination,
	}, nil
}

// HasFallback reports whether the task carries a fallback URL.
func (t Task) HasFallback() bool {
	return t.FallbackURL != ""
}

func (t Task) String() string {
	return fmt.Sprintf("%s -> %s", t.SourceURL, t.Destination)
}
