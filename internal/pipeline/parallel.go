package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"
)

// ParallelConfig holds configuration for parallel scanning.
type ParallelConfig struct {
	MaxWorkers       int                           // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback              // Optional progress reporting
	ErrorHandler     func(int, image.Image, error) // Optional per-image error handler
}

// DefaultParallelConfig returns sensible defaults for parallel scanning.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type scanJob struct {
	index int
	image image.Image
}

type scanOutcome struct {
	index  int
	result *ScanResult
	err    error
}

// ScanImagesParallel scans images with a worker pool. Results keep the input
// order; failed images leave a nil entry and the first failure is returned.
func (p *Pipeline) ScanImagesParallel(ctx context.Context, images []image.Image, config ParallelConfig) ([]*ScanResult, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil || p.Detector == nil || p.Rectifier == nil {
		return nil, errNotInitialized
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	workers := min(config.MaxWorkers, len(images))

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(images))
		defer config.ProgressCallback.OnComplete()
	}

	jobs := make(chan scanJob, len(images))
	results := make(chan scanOutcome, len(images))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, img := range images {
			select {
			case jobs <- scanJob{index: i, image: img}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*ScanResult, len(images))
	errs := make([]error, len(images))
	done := 0
	for r := range results {
		ordered[r.index] = r.result
		errs[r.index] = r.err
		done++
		if config.ProgressCallback == nil {
			continue
		}
		if r.err != nil {
			config.ProgressCallback.OnError(r.index, r.err)
		}
		config.ProgressCallback.OnProgress(done, len(images))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstError error
	for i, err := range errs {
		if err == nil {
			continue
		}
		ordered[i] = nil
		if firstError == nil {
			firstError = fmt.Errorf("image %d: %w", i, err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, images[i], err)
		}
	}
	return ordered, firstError
}

func (p *Pipeline) worker(ctx context.Context, jobs <-chan scanJob, results chan<- scanOutcome, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			res, err := p.Scan(ctx, job.image)
			select {
			case results <- scanOutcome{index: job.index, result: res, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// ParallelStats holds statistics about a parallel scan.
type ParallelStats struct {
	TotalImages      int           `json:"total_images"`
	Documents        int           `json:"documents"`
	Empty            int           `json:"empty"`
	FailedImages     int           `json:"failed_images"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerImage  time.Duration `json:"average_per_image_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateParallelStats summarizes the results of a parallel scan.
func CalculateParallelStats(results []*ScanResult, duration time.Duration, workerCount int) ParallelStats {
	s := ParallelStats{TotalImages: len(results), WorkerCount: workerCount, TotalDuration: duration}
	for _, r := range results {
		switch {
		case r == nil:
			s.FailedImages++
		case r.Found:
			s.Documents++
		default:
			s.Empty++
		}
	}
	if processed := s.Documents + s.Empty; processed > 0 && duration > 0 {
		s.AveragePerImage = duration / time.Duration(processed)
		s.ThroughputPerSec = float64(processed) / duration.Seconds()
	}
	return s
}
