package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/TimelordUK/mview/internal/config"
	"github.com/TimelordUK/mview/internal/export"
	"github.com/TimelordUK/mview/internal/ui"
)

func main() {
	timeFlag := flag.String("t", "", "Go to time (e.g., 14:00, 14:30:00)")
	followFlag := flag.Bool("F", false, "Follow mode: stick to the newest lines")
	exportFlag := flag.String("o", "", "Write the merged view to a file and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mview [-t time] [-F] [-o out] <file>...\n")
		fmt.Fprintf(os.Stderr, "  -t\tGo to time (e.g., 14:00, 14:30:00)\n")
		fmt.Fprintf(os.Stderr, "  -F\tFollow mode, like tail -f over the merged view\n")
		fmt.Fprintf(os.Stderr, "  -o\tMerge, write to a file, and exit\n")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	opts := ui.ModelOptions{
		Paths:    flag.Args(),
		GotoTime: *timeFlag,
		Follow:   *followFlag,
	}

	model, err := ui.NewModelWithOptions(opts, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer model.Close()

	if *exportFlag != "" {
		err := export.WriteView(model.Index(), *exportFlag, export.Options{
			Prefix: flag.NArg() > 1,
			End:    -1,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
