package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/TimelordUK/mview/internal/merge"
)

// Options controls what WriteView emits
type Options struct {
	// Prefix adds a "[source:line] " tag to each line
	Prefix bool
	// Start and End bound the view range; End < 0 means to the end
	Start int
	End   int
}

// WriteView writes a range of the merged, filtered view to a file in
// view order. Lines whose identifiers have gone stale are skipped.
func WriteView(idx *merge.Index, path string, opts Options) error {
	start := opts.Start
	if start < 0 {
		start = 0
	}
	end := opts.End
	if end < 0 || end > idx.ViewCount() {
		end = idx.ViewCount()
	}
	if start > end {
		return fmt.Errorf("invalid range: %d-%d", start, end)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer out.Close()

	for v := start; v < end; v++ {
		id, ok := idx.At(v)
		if !ok {
			continue
		}
		line, err := idx.ResolveLine(id)
		if err != nil {
			continue
		}

		if opts.Prefix && line.Source != nil {
			fmt.Fprintf(out, "[%s:%d] ", filepath.Base(line.Source.Path), line.OriginalIndex+1)
		}
		if _, err := out.Write(line.Content); err != nil {
			os.Remove(path)
			return fmt.Errorf("write line %d: %w", v, err)
		}
		if _, err := out.WriteString("\n"); err != nil {
			os.Remove(path)
			return fmt.Errorf("write newline: %w", err)
		}
	}

	return out.Sync()
}
