package search

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/TimelordUK/mview/internal/merge"
)

const batchSize = 128

// Match is one hit reported back to the consumer
type Match struct {
	View  int
	ID    merge.ContentID
	Start int
	End   int
}

// LineFunc fetches the raw bytes shown at a view position
type LineFunc func(viewPos int) (merge.ContentID, []byte, bool)

// target is one snapshotted line queued for matching
type target struct {
	view int
	id   merge.ContentID
	raw  []byte
}

// Grepper runs regex searches over the merged view and reports match
// batches on a channel. Start copies the target lines on the caller's
// goroutine before the scan goroutine runs, so the view may be rebuilt
// or reshaped while a scan is in flight. Starting a new search
// supersedes and discards any in-flight one.
type Grepper struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	line    LineFunc
	results chan []Match
}

// NewGrepper creates a searcher over a line accessor
func NewGrepper(line LineFunc) *Grepper {
	return &Grepper{
		line:    line,
		results: make(chan []Match, 8),
	}
}

// Results is the channel match batches arrive on
func (g *Grepper) Results() <-chan []Match {
	return g.results
}

// Start begins a fresh search over view positions [0, count),
// cancelling any search still running
func (g *Grepper) Start(pattern string, count int) error {
	return g.start(pattern, 0, count)
}

// SearchNewData extends the current search over positions appended
// since the last pass, without rescanning the whole view
func (g *Grepper) SearchNewData(pattern string, from, count int) error {
	return g.start(pattern, from, count)
}

func (g *Grepper) start(pattern string, from, count int) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("search %q: %w", pattern, err)
	}

	// Snapshot before spawning: the accessor reads index structures
	// only the caller's goroutine may touch
	targets := g.snapshot(from, count)

	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.mu.Unlock()

	go g.scan(ctx, re, targets)
	return nil
}

// snapshot copies the view positions [from, count) into owned buffers.
// Runs on the caller's goroutine.
func (g *Grepper) snapshot(from, count int) []target {
	var targets []target
	for v := from; v < count; v++ {
		id, raw, ok := g.line(v)
		if !ok {
			continue
		}
		targets = append(targets, target{
			view: v,
			id:   id,
			raw:  append([]byte(nil), raw...),
		})
	}
	return targets
}

// Stop cancels any in-flight search
func (g *Grepper) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

func (g *Grepper) scan(ctx context.Context, re *regexp.Regexp, targets []target) {
	var batch []Match

	flush := func() bool {
		if len(batch) == 0 {
			return true
		}
		select {
		case g.results <- batch:
			batch = nil
			return true
		case <-ctx.Done():
			return false
		}
	}

	for _, t := range targets {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if loc := re.FindIndex(t.raw); loc != nil {
			batch = append(batch, Match{View: t.view, ID: t.id, Start: loc[0], End: loc[1]})
			if len(batch) >= batchSize && !flush() {
				return
			}
		}
	}

	flush()
}
