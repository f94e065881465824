// Package analyzer runs document detection on a live camera feed. Frames are
// never queued: while a frame is being analyzed only the most recent
// submission is kept, and older pending frames are dropped.
package analyzer

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
)

const statsLogInterval = 10 * time.Second

// ErrAlreadyRunning is returned when Run is called while a worker is active.
var ErrAlreadyRunning = errors.New("analyzer already running")

// Detector is the detection entry point the analyzer drives.
type Detector interface {
	Detect(img *image.Gray, stage detector.DebugStage) (detector.Result, error)
}

// Result is the published outcome of one analyzed frame.
type Result struct {
	// Seq is the submission number of the analyzed frame, starting at 1.
	Seq uint64 `json:"seq"`
	// Corners are normalized; nil when no document was found or analysis failed.
	Corners    *geometry.Corners `json:"corners,omitempty"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Duration   time.Duration     `json:"duration_ns"`
	AnalyzedAt time.Time         `json:"analyzed_at"`
	Err        error             `json:"-"`
}

// Found reports whether the frame contained a document.
func (r Result) Found() bool { return r.Corners != nil }

// Stats holds counters since the analyzer was created.
type Stats struct {
	Submitted   uint64        `json:"submitted"`
	Dropped     uint64        `json:"dropped"`
	Processed   uint64        `json:"processed"`
	Found       uint64        `json:"found"`
	Failed      uint64        `json:"failed"`
	AvgAnalysis time.Duration `json:"avg_analysis_ns"`
	LatestSeq   uint64        `json:"latest_seq"`
}

// Config controls subscriber delivery.
type Config struct {
	// ResultBuffer is the capacity of each subscription channel. When it is
	// full the oldest undelivered result is discarded.
	ResultBuffer int
}

// DefaultConfig returns a config with single-slot subscriptions.
func DefaultConfig() Config { return Config{ResultBuffer: 1} }

type pending struct {
	seq   uint64
	frame pipeline.Frame
	gray  *image.Gray
}

// Analyzer is a keep-latest frame analyzer. Submit is safe to call from any
// goroutine; a single Run loop performs the work.
type Analyzer struct {
	det    Detector
	cfg    Config
	logger *slog.Logger

	slot   atomic.Pointer[pending]
	wake   chan struct{}
	latest atomic.Pointer[Result]

	running atomic.Bool
	seq     atomic.Uint64

	submitted     atomic.Uint64
	dropped       atomic.Uint64
	processed     atomic.Uint64
	found         atomic.Uint64
	failed        atomic.Uint64
	analysisNanos atomic.Uint64

	mu     sync.Mutex
	subs   map[chan Result]struct{}
	closed bool
}

// New creates an analyzer around det.
func New(det Detector, cfg Config) *Analyzer {
	if cfg.ResultBuffer < 1 {
		cfg.ResultBuffer = 1
	}
	return &Analyzer{
		det:    det,
		cfg:    cfg,
		logger: slog.Default(),
		wake:   make(chan struct{}, 1),
		subs:   make(map[chan Result]struct{}),
	}
}

// Submit hands a camera frame to the analyzer and returns immediately. The
// frame's buffers must not be modified afterwards. It returns the frame's
// sequence number.
func (a *Analyzer) Submit(f pipeline.Frame) uint64 {
	return a.put(&pending{frame: f})
}

// SubmitImage is Submit for frames that are already grayscale.
func (a *Analyzer) SubmitImage(g *image.Gray) uint64 {
	return a.put(&pending{gray: g})
}

func (a *Analyzer) put(p *pending) uint64 {
	p.seq = a.seq.Add(1)
	a.submitted.Add(1)
	recordOutcome("submitted")
	if old := a.slot.Swap(p); old != nil {
		a.dropped.Add(1)
		recordOutcome("dropped")
		a.logger.Debug("Dropped stale frame", "seq", old.seq, "replaced_by", p.seq)
	}
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return p.seq
}

// Run analyzes submitted frames until ctx is cancelled. It may be called
// once; subscription channels are closed when it returns.
func (a *Analyzer) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.closeSubscribers()

	ticker := time.NewTicker(statsLogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.logStats()
		case <-a.wake:
			if p := a.slot.Swap(nil); p != nil {
				a.publish(a.analyze(p))
			}
		}
	}
}

func (a *Analyzer) analyze(p *pending) Result {
	start := time.Now()
	res := Result{Seq: p.seq}

	g := p.gray
	if g == nil {
		var err error
		if g, err = pipeline.ToGrayscale(p.frame); err != nil {
			res.Err = err
		}
	}
	if res.Err == nil {
		det, err := a.det.Detect(g, detector.StageNone)
		res.Err = err
		res.Corners = det.Corners
		res.Width, res.Height = det.Width, det.Height
	}

	res.Duration = time.Since(start)
	res.AnalyzedAt = time.Now()
	a.processed.Add(1)
	a.analysisNanos.Add(uint64(res.Duration.Nanoseconds()))
	analysisDuration.Observe(res.Duration.Seconds())
	switch {
	case res.Err != nil:
		a.failed.Add(1)
		recordOutcome("failed")
		a.logger.Warn("Frame analysis failed", "seq", p.seq, "error", res.Err)
	case res.Found():
		a.found.Add(1)
		recordOutcome("found")
	default:
		recordOutcome("empty")
	}
	return res
}

func (a *Analyzer) publish(r Result) {
	a.latest.Store(&r)

	a.mu.Lock()
	defer a.mu.Unlock()
	for ch := range a.subs {
		deliver(ch, r)
	}
}

// deliver sends r without blocking, discarding the oldest queued result when
// ch is full.
func deliver(ch chan Result, r Result) {
	for {
		select {
		case ch <- r:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Latest returns the most recently published result and whether one exists.
func (a *Analyzer) Latest() (Result, bool) {
	r := a.latest.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

// Subscribe returns a channel of published results and a function that ends
// the subscription. Slow readers only ever see the newest results.
func (a *Analyzer) Subscribe() (<-chan Result, func()) {
	ch := make(chan Result, a.cfg.ResultBuffer)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		close(ch)
		return ch, func() {}
	}
	a.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if _, ok := a.subs[ch]; ok {
				delete(a.subs, ch)
				close(ch)
			}
		})
	}
}

func (a *Analyzer) closeSubscribers() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	for ch := range a.subs {
		delete(a.subs, ch)
		close(ch)
	}
}

// Stats returns a snapshot of the analyzer counters.
func (a *Analyzer) Stats() Stats {
	s := Stats{
		Submitted: a.submitted.Load(),
		Dropped:   a.dropped.Load(),
		Processed: a.processed.Load(),
		Found:     a.found.Load(),
		Failed:    a.failed.Load(),
	}
	if s.Processed > 0 {
		s.AvgAnalysis = time.Duration(a.analysisNanos.Load() / s.Processed)
	}
	if r := a.latest.Load(); r != nil {
		s.LatestSeq = r.Seq
	}
	return s
}

func (a *Analyzer) logStats() {
	s := a.Stats()
	if s.Submitted == 0 {
		return
	}
	a.logger.Info("Analyzer stats",
		"submitted", s.Submitted,
		"dropped", s.Dropped,
		"processed", s.Processed,
		"found", s.Found,
		"failed", s.Failed,
		"avg_analysis", s.AvgAnalysis)
}
