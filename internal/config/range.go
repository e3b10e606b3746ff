package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is an inclusive 1-based interval such as a page range "4:434".
type Range struct {
	Start int
	End   int
}

// ParseRange accepts "a:b", "a-b" or a single number "n". An empty string
// yields a nil range, meaning "everything".
func ParseRange(s string) (*Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	sep := strings.IndexAny(s, ":-")
	if sep < 0 {
		n, err := parsePositive(s)
		if err != nil {
			return nil, err
		}
		return &Range{Start: n, End: n}, nil
	}

	start, err := parsePositive(s[:sep])
	if err != nil {
		return nil, err
	}
	end, err := parsePositive(s[sep+1:])
	if err != nil {
		return nil, err
	}
	if end < start {
		return nil, fmt.Errorf("range %q ends before it starts", s)
	}
	return &Range{Start: start, End: end}, nil
}

// Contains reports whether n lies in the range. A nil range contains all.
func (r *Range) Contains(n int) bool {
	if r == nil {
		return true
	}
	return n >= r.Start && n <= r.End
}

func (r *Range) String() string {
	if r == nil {
		return ""
	}
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return fmt.Sprintf("%d:%d", r.Start, r.End)
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("numbers start at 1, got %d", n)
	}
	return n, nil
}
