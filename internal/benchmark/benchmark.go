// Package benchmark times the stages of the scan pipeline on real images.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/filter"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/preprocess"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// ErrNoDocument is returned for stages that need a detected document.
var ErrNoDocument = errors.New("no document detected in benchmark image")

// Timer provides simple timing utilities for benchmarking.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer with the given name.
func NewTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	NumGC           uint32 `json:"num_gc"`
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		NumGC:           m.NumGC,
	}
}

// Result holds the outcome of one benchmark.
type Result struct {
	Name       string        `json:"name"`
	Iterations int           `json:"iterations"`
	Total      time.Duration `json:"total_ns"`
	Min        time.Duration `json:"min_ns"`
	Max        time.Duration `json:"max_ns"`
	// AllocatedBytes is the average heap allocation per iteration.
	AllocatedBytes uint64 `json:"allocated_bytes"`
	Err            error  `json:"-"`
	Error          string `json:"error,omitempty"`
}

// Average returns the mean duration of one iteration.
func (r Result) Average() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Total / time.Duration(r.Iterations)
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Err)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, min: %v, max: %v, alloc: %d KB/op",
		r.Name, r.Iterations, r.Average(), r.Min, r.Max, r.AllocatedBytes/1024)
}

// Benchmark is a named operation.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add registers a benchmark.
func (s *Suite) Add(name string, fn func() error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Names lists the registered benchmarks in order.
func (s *Suite) Names() []string {
	names := make([]string, len(s.benchmarks))
	for i, b := range s.benchmarks {
		names[i] = b.Name
	}
	return names
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(ctx context.Context, name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.Name == name {
			return runBenchmark(ctx, b, iterations)
		}
	}
	err := fmt.Errorf("benchmark '%s' not found", name)
	return Result{Name: name, Err: err, Error: err.Error()}
}

// RunAll runs every benchmark in registration order.
func (s *Suite) RunAll(ctx context.Context, iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, runBenchmark(ctx, b, iterations))
	}
	return s.results
}

// Results returns the results of the last RunAll.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// PrintResults writes one line per result to w.
func (s *Suite) PrintResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Benchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
}

func runBenchmark(ctx context.Context, b Benchmark, iterations int) Result {
	res := Result{Name: b.Name}
	if iterations <= 0 {
		res.Err = fmt.Errorf("invalid iteration count: %d", iterations)
		res.Error = res.Err.Error()
		return res
	}

	// Force garbage collection before measuring
	runtime.GC()
	before := GetMemoryStats()

	for range iterations {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		t := NewTimer(b.Name)
		err := b.Func()
		d := t.Stop()
		if err != nil {
			res.Err = err
			break
		}
		res.Iterations++
		res.Total += d
		if res.Min == 0 || d < res.Min {
			res.Min = d
		}
		if d > res.Max {
			res.Max = d
		}
	}

	after := GetMemoryStats()
	if res.Iterations > 0 {
		res.AllocatedBytes = (after.TotalAllocBytes - before.TotalAllocBytes) / uint64(res.Iterations)
	}
	if res.Err != nil {
		res.Error = res.Err.Error()
	}
	return res
}

// ScanBenchmark times each stage of the scan pipeline on one image.
type ScanBenchmark struct {
	*Suite
	pl      *pipeline.Pipeline
	img     image.Image
	corners geometry.Corners
	found   bool
}

// Stage names, in the order they run during a scan.
const (
	StageGrayscale  = "grayscale"
	StagePreprocess = "preprocess"
	StageDetect     = "detect"
	StageRectify    = "rectify"
	StageFilter     = "filter"
	StageScan       = "scan"
)

// NewScanBenchmark registers one benchmark per pipeline stage for img. The
// document is detected once up front so rectification and filtering can be
// timed in isolation; without a document those stages report ErrNoDocument.
func NewScanBenchmark(pl *pipeline.Pipeline, img image.Image) (*ScanBenchmark, error) {
	if pl == nil || img == nil {
		return nil, errors.New("benchmark needs a pipeline and an image")
	}
	sb := &ScanBenchmark{Suite: NewSuite(), pl: pl, img: img}

	det, err := pl.DetectDocument(img, detector.StageNone)
	if err != nil {
		return nil, fmt.Errorf("initial detection failed: %w", err)
	}
	if det.Found() {
		b := img.Bounds()
		if sb.corners, err = det.Corners.Denormalize(b.Dx(), b.Dy()); err != nil {
			return nil, err
		}
		sb.found = true
	}

	gray := utils.ToGray(img)
	maxDim := pl.Config().Detector.MaxDimension
	aspect := pl.Config().Rectify.Aspect
	profile := pl.Config().Color

	sb.Add(StageGrayscale, func() error {
		_ = utils.ToGray(img)
		return nil
	})
	sb.Add(StagePreprocess, func() error {
		_, err := preprocess.Resize(gray, maxDim)
		return err
	})
	sb.Add(StageDetect, func() error {
		_, err := pl.DetectDocument(img, detector.StageNone)
		return err
	})
	sb.Add(StageRectify, func() error {
		if !sb.found {
			return ErrNoDocument
		}
		_, err := pl.TransformDocument(img, sb.corners, aspect)
		return err
	})

	var flat image.Image
	if sb.found {
		if flat, err = pl.TransformDocument(img, sb.corners, aspect); err != nil {
			return nil, err
		}
	}
	sb.Add(StageFilter, func() error {
		if flat == nil {
			return ErrNoDocument
		}
		_, err := filter.Apply(flat, profile)
		return err
	})
	sb.Add(StageScan, func() error {
		_, err := pl.Scan(context.Background(), img)
		return err
	})
	return sb, nil
}

// Found reports whether the benchmark image contains a document.
func (sb *ScanBenchmark) Found() bool { return sb.found }
