package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// DefaultProgressInterval throttles redraws.
const DefaultProgressInterval = 200 * time.Millisecond

// Progress draws replay progress on a single terminal line. When the total
// is known (the size of a journal file, or the entry count of a stored log)
// a bar is shown; otherwise only the counters are.
type Progress struct {
	w        io.Writer
	title    string
	width    int
	interval time.Duration

	mu      sync.Mutex
	total   int64
	current int64
	entries uint64
	last    time.Time
	now     func() time.Time
}

// NewProgress returns a progress line titled title. A total of zero or less
// means the total is unknown.
func NewProgress(w io.Writer, title string, total int64) *Progress {
	return &Progress{
		w:        w,
		title:    title,
		width:    30,
		interval: DefaultProgressInterval,
		total:    total,
		now:      time.Now,
	}
}

// Update records the current offset and entry count and redraws when the
// throttle interval has passed.
func (p *Progress) Update(current int64, entries uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	p.entries = entries
	if now := p.now(); now.Sub(p.last) >= p.interval {
		p.last = now
		p.render()
	}
}

// Finish draws the final state and ends the line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total > 0 && p.current < p.total {
		p.current = p.total
	}
	p.render()
	fmt.Fprintln(p.w)
}

func (p *Progress) render() {
	if p.total <= 0 {
		fmt.Fprintf(p.w, "\r%s %d entries", p.title, p.entries)
		return
	}
	frac := min(float64(p.current)/float64(p.total), 1)
	filled := int(float64(p.width) * frac)
	fmt.Fprintf(p.w, "\r%s [%s%s] %3.0f%% %d entries (%s/%s)",
		p.title,
		strings.Repeat("=", filled), strings.Repeat(" ", p.width-filled),
		frac*100,
		p.entries,
		FormatBytes(p.current), FormatBytes(p.total))
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
