package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/juju/clock"

	"github.com/elonfeng/presence/internal/cache"
	"github.com/elonfeng/presence/internal/scheduler"
	"github.com/elonfeng/presence/pkg/alert"
	"github.com/elonfeng/presence/pkg/export"
	"github.com/elonfeng/presence/pkg/presence"
	"github.com/elonfeng/presence/pkg/query"
	"github.com/elonfeng/presence/pkg/server"
)

var errEmptyQuery = errors.New("nothing to analyze: pass a query or --name/--company")

type analyzeOptions struct {
	name       string
	company    string
	city       string
	profession string
	json       bool
	csvPath    string
	notify     bool
}

func (o analyzeOptions) inputs(args []string) query.Inputs {
	explicit := query.Inputs{
		Name:       strings.TrimSpace(o.name),
		Company:    strings.TrimSpace(o.company),
		City:       strings.TrimSpace(o.city),
		Profession: strings.ToLower(strings.TrimSpace(o.profession)),
	}
	return explicit.Merge(query.Parse(strings.Join(args, " ")))
}

func runAnalyze(ctx context.Context, out io.Writer, args []string, opts analyzeOptions) error {
	in := opts.inputs(args)
	if in.IsEmpty() {
		return errEmptyQuery
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report := a.pipeline.Analyze(ctx, in)

	if opts.csvPath != "" {
		if err := writeCSVFile(opts.csvPath, report); err != nil {
			return err
		}
		a.logger.WithField("path", opts.csvPath).Info("wrote csv export")
	}

	if opts.notify || a.cfg.Alerts.OnAnalyze {
		a.notify(ctx, report)
	}

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(out, report, a.cfg.Debug)
}

func (a *app) notify(ctx context.Context, report *presence.Report) {
	if !a.alerts.HasNotifiers() {
		a.logger.Warn("no alert destinations configured")
		return
	}
	if err := a.alerts.Broadcast(ctx, alert.FromReport(report, "")); err != nil {
		a.logger.WithField("err", err).Warn("some notifications failed")
	}
}

func writeCSVFile(path string, report *presence.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv %s: %w", path, err)
	}
	if err := export.WriteCSV(f, report); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// printReport renders the human-readable report.
func printReport(out io.Writer, r *presence.Report, debug bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "QUERY\t%s\n", r.Query)
	fmt.Fprintf(w, "GRADE\t%s (%.1f/100)\n", r.Score.Grade, r.Score.Score)
	fmt.Fprintf(w, "SITES\t%d (%d domains)\n", r.Stats.NumSites, r.Stats.UniqueDomains)
	fmt.Fprintf(w, "REVIEWS\t%d\n", r.ReviewCount)
	if r.Stats.AvgRating != nil {
		fmt.Fprintf(w, "AVG RATING\t%.2f\n", *r.Stats.AvgRating)
	}
	fmt.Fprintf(w, "AVG SENTIMENT\t%+.2f\n", r.Stats.AvgSentiment)
	if r.Stats.MostRecentDate != nil {
		fmt.Fprintf(w, "MOST RECENT\t%s\n", r.Stats.MostRecentDate.Format("2006-01-02"))
	}
	if r.Inputs.Company != "" {
		fmt.Fprintf(w, "COMPANY LINKAGE\t%.0f%%\n", r.Stats.CompanyPrevalence*100)
	}

	fmt.Fprintln(w, "\nCATEGORY\tSCORE")
	for _, c := range presence.Categories {
		fmt.Fprintf(w, "%s\t%.1f\n", c, r.Score.Breakdown[c])
	}

	if debug && len(r.Diagnostics) > 0 {
		fmt.Fprintln(w, "\nSOURCE\tRECORDS\tREVIEWS\tDURATION\tERROR")
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", d.Adapter, d.Records, d.Reviews, d.Duration.Round(time.Millisecond), d.Err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, g := range r.TipGroups() {
		fmt.Fprintf(out, "\n%s\n", g.Category)
		for _, m := range g.Messages {
			fmt.Fprintf(out, "  - %s\n", m)
		}
	}
	if failed := r.FailedAdapters(); len(failed) > 0 && !debug {
		fmt.Fprintf(out, "\n%d source(s) failed; rerun with --debug for details\n", len(failed))
	}
	return nil
}

func runServe(ctx context.Context, port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	if purger, ok := a.cache.(cache.Purger); ok {
		sched := scheduler.New(purger, a.cfg.Cache.PurgeInterval, clock.WallClock, a.logger)
		go func() { _ = sched.Run(ctx) }()
	}

	srv, err := server.New(server.Config{
		Analyzer:   a.pipeline,
		ListenAddr: fmt.Sprintf(":%d", port),
		Debug:      a.cfg.Debug,
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func runSources(out io.Writer) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND")
	for _, ad := range a.pipeline.Adapters() {
		fmt.Fprintf(w, "%s\t%s\n", ad.Name(), ad.Kind())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(a.pipeline.Adapters()) == 0 {
		fmt.Fprintln(out, "no sources enabled; set search.backend or sources.places in the config")
	}
	return nil
}
