package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/daviddao/pairsum/pkg/model"
)

func (a *app) cmdLog(args []string) int {
	flags := flag.NewFlagSet("log", flag.ContinueOnError)
	label := flags.String("label", "", "filter by label")
	session := flags.String("session", "", "show the runs of one session")
	limit := flags.Int("limit", 50, "max runs to return")
	jsonOut := flags.Bool("json", false, "JSON output")
	_ = flags.Bool("verbose", false, "debug logging")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	var runs []model.Run
	var err error
	if *session != "" {
		runs, err = a.store.ListSessionRuns(*session)
	} else {
		runs, err = a.store.ListRuns(*label, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pq: log: %v\n", err)
		return 1
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"runs": runs, "count": len(runs)})
		return 0
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return 0
	}
	for _, r := range runs {
		printRun(r)
	}
	return 0
}

// printRun prints one line per run. A fallback is shown as
// requested->used.
func printRun(r model.Run) {
	kind := r.Used.String()
	if r.Used == model.KindBasic && r.Requested != model.KindBasic {
		kind = r.Requested.String() + "->" + kind
	}
	label := ""
	if r.Label != "" {
		label = " [" + r.Label + "]"
	}
	fmt.Printf("#%d %s frame=%d %s tick=%d.%d workers=%d sites=%d value=%s%s\n",
		r.ID, shortID(r.Session), r.Frame, kind, r.Tick.Epoch, r.Tick.Step,
		r.Workers, r.Sites, summarize(r.Value), label)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// summarize prints short values in full and long ones by their ends.
func summarize(v []float64) string {
	const maxShown = 4
	parts := make([]string, 0, maxShown+1)
	if len(v) <= maxShown {
		for _, x := range v {
			parts = append(parts, fmt.Sprintf("%.6g", x))
		}
		return "[" + strings.Join(parts, " ") + "]"
	}
	for _, x := range v[:2] {
		parts = append(parts, fmt.Sprintf("%.6g", x))
	}
	parts = append(parts, fmt.Sprintf("...(%d)", len(v)-3))
	parts = append(parts, fmt.Sprintf("%.6g", v[len(v)-1]))
	return "[" + strings.Join(parts, " ") + "]"
}
