package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress reports while a batch of images is scanned.
// ScanImagesParallel calls it from a single goroutine.
type ProgressCallback interface {
	OnStart(total int)
	// OnProgress reports that done of total inputs have been scanned,
	// failed ones included.
	OnProgress(done, total int)
	OnComplete()
	// OnError reports the input index that failed. It is followed by an
	// OnProgress call for the same input.
	OnError(index int, err error)
}

// NoOpProgressCallback implements ProgressCallback but does nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// batchTally is the running state every reporter derives its output from.
type batchTally struct {
	start  time.Time
	total  int
	done   int
	failed int
}

func (t *batchTally) reset(total int) {
	*t = batchTally{start: time.Now(), total: total}
}

func (t *batchTally) percent() float64 {
	if t.total == 0 {
		return 100
	}
	return float64(t.done) / float64(t.total) * 100
}

// rate returns scanned inputs per second.
func (t *batchTally) rate(now time.Time) float64 {
	elapsed := now.Sub(t.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(t.done) / elapsed
}

// eta extrapolates the remaining time from the average so far. It is zero
// until the first input is done.
func (t *batchTally) eta(now time.Time) time.Duration {
	if t.done == 0 || t.done >= t.total {
		return 0
	}
	perInput := now.Sub(t.start) / time.Duration(t.done)
	return perInput * time.Duration(t.total-t.done)
}

// ConsoleProgressCallback draws a scan progress bar. On a terminal the bar is
// redrawn in place; otherwise every update is written on its own line.
type ConsoleProgressCallback struct {
	mu          sync.Mutex
	w           io.Writer
	label       string
	width       int
	interval    time.Duration
	interactive bool
	lastDraw    time.Time
	tally       batchTally
}

// NewConsoleProgressCallback reports to w. interactive selects in-place redraws.
func NewConsoleProgressCallback(w io.Writer, label string, interactive bool) *ConsoleProgressCallback {
	return &ConsoleProgressCallback{
		w:           w,
		label:       label,
		width:       30,
		interval:    100 * time.Millisecond,
		interactive: interactive,
	}
}

// WithWidth sets the number of bar cells.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = max(width, 1)
	return c
}

// WithUpdateInterval sets the minimum time between two redraws. The final
// update is always drawn.
func (c *ConsoleProgressCallback) WithUpdateInterval(interval time.Duration) *ConsoleProgressCallback {
	c.interval = interval
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tally.reset(total)
	c.lastDraw = time.Time{}
	c.draw(time.Now())
}

func (c *ConsoleProgressCallback) OnProgress(done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tally.done, c.tally.total = done, total
	now := time.Now()
	if done < total && now.Sub(c.lastDraw) < c.interval {
		return
	}
	c.draw(now)
}

func (c *ConsoleProgressCallback) OnError(index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tally.failed++
	if c.interactive {
		// Keep the message from being overwritten by the next redraw.
		_, _ = fmt.Fprintln(c.w)
	}
	_, _ = fmt.Fprintf(c.w, "%sinput %d failed: %v\n", c.label, index, err)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interactive {
		_, _ = fmt.Fprintln(c.w)
	}
	elapsed := time.Since(c.tally.start).Round(time.Millisecond)
	_, _ = fmt.Fprintf(c.w, "%sscanned %d inputs (%d failed) in %v\n", c.label, c.tally.done, c.tally.failed, elapsed)
}

func (c *ConsoleProgressCallback) draw(now time.Time) {
	c.lastDraw = now
	filled := int(float64(c.width) * c.tally.percent() / 100)
	filled = min(max(filled, 0), c.width)

	var b strings.Builder
	if c.interactive {
		b.WriteByte('\r')
	}
	fmt.Fprintf(&b, "%s[%s%s] %d/%d (%.0f%%)", c.label,
		strings.Repeat("#", filled), strings.Repeat(".", c.width-filled),
		c.tally.done, c.tally.total, c.tally.percent())
	if c.tally.done > 0 {
		fmt.Fprintf(&b, " %.1f/s", c.tally.rate(now))
	}
	if eta := c.tally.eta(now); eta > 0 {
		fmt.Fprintf(&b, " eta %v", eta.Round(time.Second))
	}
	if !c.interactive {
		b.WriteByte('\n')
	}
	_, _ = io.WriteString(c.w, b.String())
}

// LogProgressCallback reports scan progress as structured log records. Progress
// is logged whenever another step percent of the batch has completed.
type LogProgressCallback struct {
	logger   *slog.Logger
	level    slog.Level
	step     float64
	lastStep float64
	tally    batchTally
}

// NewLogProgressCallback logs through logger, or slog.Default when nil.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level, step: 10}
}

// WithStep sets the percentage of the batch between two progress records.
func (l *LogProgressCallback) WithStep(percent float64) *LogProgressCallback {
	if percent > 0 {
		l.step = percent
	}
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.tally.reset(total)
	l.lastStep = 0
	l.logger.Log(context.Background(), l.level, "Batch scan started", "inputs", total)
}

func (l *LogProgressCallback) OnProgress(done, total int) {
	l.tally.done, l.tally.total = done, total
	pct := l.tally.percent()
	if done < total && pct-l.lastStep < l.step {
		return
	}
	l.lastStep = pct
	now := time.Now()
	l.logger.Log(context.Background(), l.level, "Batch scan progress",
		"done", done,
		"inputs", total,
		"failed", l.tally.failed,
		"percent", fmt.Sprintf("%.0f", pct),
		"per_sec", fmt.Sprintf("%.1f", l.tally.rate(now)),
		"eta", l.tally.eta(now).Round(time.Second),
	)
}

// OnError only counts the failure. Callers log the error with its source.
func (l *LogProgressCallback) OnError(int, error) {
	l.tally.failed++
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Log(context.Background(), l.level, "Batch scan finished",
		"done", l.tally.done,
		"failed", l.tally.failed,
		"elapsed", time.Since(l.tally.start).Round(time.Millisecond),
	)
}

// MultiProgressCallback forwards every report to each of its callbacks in order.
type MultiProgressCallback []ProgressCallback

func (m MultiProgressCallback) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgressCallback) OnProgress(done, total int) {
	for _, cb := range m {
		cb.OnProgress(done, total)
	}
}

func (m MultiProgressCallback) OnError(index int, err error) {
	for _, cb := range m {
		cb.OnError(index, err)
	}
}

func (m MultiProgressCallback) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}
