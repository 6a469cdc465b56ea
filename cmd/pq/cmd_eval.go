package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/uuid"

	"github.com/daviddao/pairsum/pkg/evaluator"
	"github.com/daviddao/pairsum/pkg/model"
	"github.com/daviddao/pairsum/pkg/parallel"
)

// exitInconsistent is returned when a checking evaluation finds the
// optimized and basic results disagree.
const exitInconsistent = 2

func (a *app) cmdEval(args []string) int {
	flags := flag.NewFlagSet("eval", flag.ContinueOnError)
	file := flags.String("f", "", "job file (YAML)")
	mode := flags.String("mode", "", "evaluator: basic, optimized or check")
	workers := flags.Int("workers", 0, "worker count")
	fullsum := flags.Bool("fullsum", false, "visit ordered pairs")
	fixedIndex := flags.Bool("fixed-index", false, "refuse index-shifting updates")
	label := flags.String("label", "", "label recorded with each run")
	jsonOut := flags.Bool("json", false, "JSON output")
	verbose := flags.Bool("verbose", false, "debug logging")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if *file == "" {
		fmt.Fprintln(os.Stderr, "pq: eval: -f JOB.yaml is required")
		return 1
	}

	j, err := loadJob(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pq: eval: %v\n", err)
		return 1
	}
	// explicitly set flags win over the job file
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			j.Mode = *mode
		case "workers":
			j.Workers = *workers
		case "fullsum":
			j.FullSum = *fullsum
		case "fixed-index":
			j.FixedIndex = *fixedIndex
		case "label":
			j.Label = *label
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runs, err := a.evalJob(ctx, j, a.logger(*verbose))
	if err != nil {
		fmt.Fprintf(os.Stderr, "pq: eval: %v\n", err)
		if errors.Is(err, evaluator.ErrInconsistent) {
			return exitInconsistent
		}
		return 1
	}

	if *jsonOut {
		session := ""
		if len(runs) > 0 {
			session = runs[0].Session
		}
		printJSON(map[string]interface{}{"session": session, "runs": runs, "count": len(runs)})
	} else {
		for _, r := range runs {
			printRun(r)
		}
	}
	return 0
}

// evalJob evaluates every frame of j in order within a new session and
// records one run per frame. Runs recorded before an error are kept.
func (a *app) evalJob(ctx context.Context, j *job, log *slog.Logger) ([]model.Run, error) {
	kind, err := model.ParseKind(j.Mode)
	if err != nil {
		return nil, err
	}
	pool, err := parallel.New(kind, j.Workers, j.Quantity.factory(),
		evaluator.WithLogger(log), evaluator.WithFlags(j.flags()...))
	if err != nil {
		return nil, err
	}
	pool.SetLogger(log)

	session := uuid.NewString()
	if _, err := a.store.RegisterSession(session); err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}
	log = log.With(slog.String("session", session))
	log.Info("evaluating job",
		slog.String("label", j.Label), slog.String("mode", kind.String()),
		slog.Int("workers", j.Workers), slog.Int("frames", len(j.Frames)))

	var runs []model.Run
	for i, s := range j.structures() {
		if err := pool.Update(ctx, s); err != nil {
			log.Error("frame failed", slog.Int("frame", i), slog.String("error", err.Error()))
			return runs, fmt.Errorf("frame %d: %w", i, err)
		}
		r := model.Run{
			Session:   session,
			Label:     j.Label,
			Frame:     i,
			Requested: kind,
			Used:      pool.KindUsed(),
			Tick:      pool.Ticker().Stamp(),
			Workers:   pool.Workers(),
			Sites:     s.CountSites(),
			Value:     pool.Value(),
		}
		if _, err := a.store.RecordRun(&r); err != nil {
			return runs, fmt.Errorf("record frame %d: %w", i, err)
		}
		log.Debug("frame evaluated",
			slog.Int("frame", i), slog.String("used", r.Used.String()), slog.Int("sites", r.Sites))
		runs = append(runs, r)
	}
	return runs, nil
}
