package main

import (
	"flag"
	"fmt"
	"os"
)

func (a *app) cmdSessions(args []string) int {
	flags := flag.NewFlagSet("sessions", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	_ = flags.Bool("verbose", false, "debug logging")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	sessions, err := a.store.ListSessions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pq: sessions: %v\n", err)
		return 1
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"sessions": sessions, "count": len(sessions)})
		return 0
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return 0
	}
	for _, s := range sessions {
		fmt.Printf("%s  started=%s  last_seen=%s  runs=%d\n",
			s.ID, s.Started.Local().Format("2006-01-02 15:04:05"),
			s.LastSeen.Local().Format("15:04:05"), s.Runs)
	}
	return 0
}
