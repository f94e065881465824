package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleProgressCallback_Lines(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "scan ", false).WithWidth(4).WithUpdateInterval(0)

	cb.OnStart(4)
	cb.OnProgress(2, 4)
	cb.OnError(2, errors.New("boom"))
	cb.OnProgress(3, 4)
	cb.OnProgress(4, 4)
	cb.OnComplete()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "scan [....] 0/4 (0%)", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "scan [##..] 2/4 (50%)"), lines[1])
	assert.Equal(t, "scan input 2 failed: boom", lines[2])
	assert.True(t, strings.HasPrefix(lines[4], "scan [####] 4/4 (100%)"), lines[4])
	assert.NotContains(t, lines[4], "eta")
	assert.Contains(t, lines[5], "scan scanned 4 inputs (1 failed) in")
	assert.NotContains(t, buf.String(), "\r")
}

func TestConsoleProgressCallback_InteractiveRedraws(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "", true).WithUpdateInterval(time.Hour)

	cb.OnStart(3)
	cb.OnProgress(1, 3) // throttled
	cb.OnProgress(3, 3)
	cb.OnComplete()

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "\r"))
	assert.NotContains(t, out, "1/3")
	assert.Contains(t, out, "3/3 (100%)")
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cb := NewLogProgressCallback(logger, slog.LevelInfo).WithStep(50)

	cb.OnStart(4)
	cb.OnProgress(1, 4) // 25%, below the step
	cb.OnError(1, errors.New("bad frame"))
	cb.OnProgress(2, 4)
	cb.OnProgress(3, 4)
	cb.OnProgress(4, 4)
	cb.OnComplete()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	msgs := make([]string, len(entries))
	for i, e := range entries {
		msgs[i] = e["msg"].(string) //nolint:forcetypeassert // slog always writes msg
	}
	assert.Equal(t, []string{"Batch scan started", "Batch scan progress", "Batch scan progress", "Batch scan finished"}, msgs)
	assert.InDelta(t, 2, entries[1]["done"], 0)
	assert.InDelta(t, 1, entries[1]["failed"], 0)
	assert.Equal(t, "100", entries[2]["percent"])
	assert.InDelta(t, 1, entries[3]["failed"], 0)
}

func TestMultiProgressCallback(t *testing.T) {
	a, b := &recordingProgress{}, &recordingProgress{}
	m := MultiProgressCallback{a, b, NoOpProgressCallback{}}

	m.OnStart(2)
	m.OnProgress(1, 2)
	m.OnError(0, errors.New("x"))
	m.OnComplete()

	for _, r := range []*recordingProgress{a, b} {
		assert.Equal(t, 2, r.started)
		assert.Equal(t, []int{1}, r.progress)
		assert.Equal(t, []int{0}, r.errors)
		assert.True(t, r.complete)
	}
}

func TestCalculateParallelStats(t *testing.T) {
	res := []*ScanResult{{Found: true}, {Found: false}, nil, {Found: true}}
	s := CalculateParallelStats(res, 3*time.Second, 4)
	assert.Equal(t, 4, s.TotalImages)
	assert.Equal(t, 2, s.Documents)
	assert.Equal(t, 1, s.Empty)
	assert.Equal(t, 1, s.FailedImages)
	assert.Equal(t, time.Second, s.AveragePerImage)
	assert.InDelta(t, 1.0, s.ThroughputPerSec, 1e-9)
}
