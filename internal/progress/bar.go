package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// Bar draws a terminal progress bar per batch.
type Bar struct {
	w io.Writer

	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	label     string
	succeeded int
	failed    int
	bytes     int64
}

// NewBar returns a Bar writing to w, usually os.Stderr.
func NewBar(w io.Writer) *Bar {
	return &Bar{w: w}
}

func (b *Bar) Begin(label string, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.label = label
	b.succeeded, b.failed, b.bytes = 0, 0, 0
	b.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(b.w)
		}),
	)
}

func (b *Bar) Observe(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar == nil {
		return
	}
	if e.Success {
		b.succeeded++
	} else {
		b.failed++
	}
	b.bytes += e.Bytes

	b.bar.Describe(b.description())
	_ = b.bar.Add(1)
}

func (b *Bar) End() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
	b.bar = nil
}

func (b *Bar) description() string {
	desc := fmt.Sprintf("%s ok:%d", b.label, b.succeeded)
	if b.failed > 0 {
		desc += fmt.Sprintf(" failed:%d", b.failed)
	}
	if b.bytes > 0 {
		desc += " " + humanize.Bytes(uint64(b.bytes))
	}
	return desc
}
