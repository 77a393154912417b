// Command kobitar-report prints the household summary to stdout: collected,
// spent, balance, days tracked and the meal rate, followed by the recent
// activity log when the sqlite backend is in use.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"kobitar/internal/backend"
	"kobitar/internal/cli"
	"kobitar/internal/config"
	"kobitar/internal/core"
	"kobitar/internal/dashboard"
	"kobitar/internal/format"
	"kobitar/internal/log"
	"kobitar/internal/notify"
	"kobitar/internal/storage"
)

func main() {
	activityLimit := flag.Int("activity", 10, "number of recent activity entries to print (sqlite backend only)")
	showExpenses := flag.Bool("expenses", false, "print every expense row")
	flag.Parse()

	cfg, logger := cli.Bootstrap()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer result.Close()

	svc := dashboard.NewService(result.Backend).
		WithNotifier(notify.NewLogger(logger.Logger)).
		WithFormatter(cli.Formatter(logger, cfg)).
		WithMealPlan(cfg.MealPlan()).
		WithLogger(logger)

	report(ctx, os.Stdout, svc, *showExpenses)

	if cfg.DataBackend == config.BackendSQLite && *activityLimit > 0 {
		repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		defer repo.Close()
		entries, err := repo.ListActivity(ctx, *activityLimit)
		if err != nil {
			logger.Warn("Failed to list activity", log.FieldError, err)
			return
		}
		writeActivity(os.Stdout, svc.Formatter(), entries)
	}
}

// report loads both lists and prints the summary. A list that cannot be
// fetched counts as empty and is reported as a warning line.
func report(ctx context.Context, w io.Writer, svc *dashboard.Service, showExpenses bool) dashboard.Snapshot {
	snap := svc.Load(ctx)
	f := svc.Formatter()
	if snap.CollectionsErr != nil {
		fmt.Fprintf(w, "warning: collections unavailable: %v\n", snap.CollectionsErr)
	}
	if snap.ExpensesErr != nil {
		fmt.Fprintf(w, "warning: expenses unavailable: %v\n", snap.ExpensesErr)
	}
	writeSummary(w, f, snap.Summary, len(snap.Collections), len(snap.Expenses))
	if showExpenses {
		writeExpenses(w, f, snap.Expenses)
	}
	return snap
}

func writeSummary(w io.Writer, f *format.Formatter, s core.Summary, collections, expenses int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total collected\t%s\t(%d members)\n", f.Money(s.TotalCollected), collections)
	fmt.Fprintf(tw, "Total spent\t%s\t(%d expenses)\n", f.Money(s.TotalSpent), expenses)
	fmt.Fprintf(tw, "Balance\t%s\t\n", f.Money(s.Balance))
	if s.HasFirstDate {
		fmt.Fprintf(tw, "Days tracked\t%d\tsince %s\n", s.DaysTracked, f.Date(s.FirstDate.Format(time.DateOnly)))
	} else {
		fmt.Fprintf(tw, "Days tracked\t%d\t\n", s.DaysTracked)
	}
	fmt.Fprintf(tw, "Meal rate\t%s\t\n", f.Money(s.MealRate))
	tw.Flush()
}

func writeExpenses(w io.Writer, f *format.Formatter, expenses []core.ExpenseRecord) {
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tNAME\tGOODS\tAMOUNT")
	for _, e := range expenses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Date(e.Date), e.Name, e.Item, f.Money(e.Amount))
	}
	tw.Flush()
}

func writeActivity(w io.Writer, f *format.Formatter, entries []storage.ActivityEntry) {
	fmt.Fprintln(w)
	if len(entries) == 0 {
		fmt.Fprintln(w, "No recorded activity")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tEVENT\tDETAIL\tAMOUNT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.OccurredAt.Local().Format("2006-01-02 15:04"), e.Kind, activityDetail(e), f.Money(e.Amount))
	}
	tw.Flush()
}

func activityDetail(e storage.ActivityEntry) string {
	switch {
	case e.Count > 0:
		return fmt.Sprintf("%d expenses", e.Count)
	case e.Item != "":
		return e.Name + ": " + e.Item
	default:
		return e.Name
	}
}
