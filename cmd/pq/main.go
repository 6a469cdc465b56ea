// Command pq is the pairsum CLI: it evaluates pair-sum quantities over a
// sequence of structure frames and keeps a log of every evaluation.
package main

import (
	"fmt"
	"os"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
		return
	case "--version", "-v", "version":
		fmt.Println("pq", version)
		return
	}

	a, err := newApp()
	if err != nil {
		fatal("%v", err)
	}
	var code int
	switch os.Args[1] {
	case "eval":
		code = a.cmdEval(os.Args[2:])
	case "log":
		code = a.cmdLog(os.Args[2:])
	case "sessions":
		code = a.cmdSessions(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "pq: unknown command %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Run 'pq --help' for usage.")
		code = 1
	}
	a.Close()
	os.Exit(code)
}

func printUsage() {
	fmt.Print(`pq: incremental pair-sum evaluation

Keeps a pair-sum quantity (Debye scattering, scalar pair sums, bond lists)
current across a sequence of structures, updating only the pairs that
changed when that is safe.

Usage:
  pq <command> [flags]

Commands:
  eval -f JOB.yaml          Evaluate every frame of a job in order
      --mode M              basic | optimized | check (default from job)
      --workers N           worker count (default from job)
      --fullsum             visit ordered pairs instead of unordered pairs
      --fixed-index         refuse incremental updates that shift indices
      --label L             label recorded with each run
  log [--label L]           Show the run log
      [--session ID] [--limit N]
  sessions                  List evaluation sessions

Environment:
  PAIRSUM_DB        SQLite database path (default: .pairsum/pairsum.db)

All commands support --json for machine-readable output.
All commands support --verbose to log at debug level.

Exit codes:
  0  success
  1  error
  2  optimized and basic evaluation disagree
`)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "pq: "+format+"\n", args...)
	os.Exit(1)
}
