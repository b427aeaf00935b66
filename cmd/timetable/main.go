package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	ical "github.com/arran4/golang-ical"

	"timetable/internal/async"
	"timetable/internal/clock"
	"timetable/internal/config"
	"timetable/internal/diag"
	"timetable/internal/export"
	"timetable/internal/fetch"
	appLog "timetable/internal/log"
	"timetable/internal/query"
	"timetable/internal/schedule"
	"timetable/internal/scheduler"
	"timetable/internal/store"
	"timetable/internal/termview"
	"timetable/internal/web"
)

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	week       string
	once       bool
	exportPath string
	weeks      int
}

func main() {
	flags := parseFlags()

	if err := config.LoadDotEnv(flags.envFile); err != nil {
		appLog.Error("failed to load env file", err, "path", flags.envFile)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		if conf == nil {
			appLog.Error("failed to load config", err, "config_path", flags.configPath)
			os.Exit(1)
		}
		appLog.Warn("could not write default config; continuing with defaults", "config_path", flags.configPath, "err", err)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"api_path", conf.APIPath,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"clock_interval", conf.ClockInterval,
		"prefetch_weeks", conf.PrefetchWeeks,
		"once", flags.once,
		"export", flags.exportPath,
	)

	st := store.New()
	fetcher, err := fetch.NewFetcher(conf.APIPath, st, fetch.WithTimeout(conf.HTTPTimeout))
	if err != nil {
		appLog.Error("invalid api_path", err, "api_path", conf.APIPath)
		os.Exit(1)
	}
	clk := clock.New(nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// A bad -week is reported and ignored, like any other query value.
	week, ok := query.Param([]string{flags.week}, query.ParseWeek)
	if flags.week != "" && !ok {
		appLog.Warn("ignoring invalid -week; using current week", "week", flags.week)
	}

	switch {
	case flags.exportPath != "":
		if err := runExport(ctx, fetcher, st, conf, week, flags.weeks, flags.exportPath); err != nil {
			appLog.Error("export failed", err, "path", flags.exportPath)
			os.Exit(1)
		}
		return
	case flags.once:
		if err := runOnce(ctx, fetcher, st, clk, conf, week); err != nil {
			appLog.Error("fetch failed", err)
			os.Exit(1)
		}
		return
	}

	srv := web.NewServer(conf, st, fetcher, clk, diag.NewClient(fetcher.Client(), fetcher))

	sched := scheduler.New(conf.Location())
	if err := sched.Every("clock", conf.ClockInterval, clk.Tick); err != nil {
		appLog.Error("failed to schedule clock", err)
		os.Exit(1)
	}
	if err := sched.Cron("refresh", conf.RefreshCron, func() { srv.Refresh(ctx) }); err != nil {
		appLog.Error("failed to schedule refresh", err)
		os.Exit(1)
	}
	sched.Start()
	go srv.Refresh(ctx)

	if err := srv.ListenAndServe(ctx); err != nil {
		appLog.Error("http server stopped", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	sched.Stop(stopCtx)
	appLog.Info("timetable exiting")
}

// runOnce fetches one week, prints it with the active cell marked and exits.
func runOnce(ctx context.Context, f *fetch.Fetcher, st *store.Store, clk *clock.Clock, conf *config.Config, week int) error {
	p := async.Wrap(ctx, func(ctx context.Context) (fetch.Result, error) {
		return f.FetchWeek(ctx, week)
	})
	res, err := p.Wait(ctx)
	if err != nil {
		return err
	}

	active := schedule.LocateActive(res.Week, clk.Now())
	fmt.Println(termview.Render(res.Week, res.Grid, st, active, conf.Location()))
	fmt.Printf("current week: %d\n", st.CurrentWeek())
	return nil
}

// runExport writes an .ics file with n consecutive weeks starting at week
// (or the current week when 0). Weeks after the first follow the backend's
// numbering and wrap from 52 to 1.
func runExport(ctx context.Context, f *fetch.Fetcher, st *store.Store, conf *config.Config, week, n int, path string) error {
	first, err := f.FetchWeek(ctx, week)
	if err != nil {
		return err
	}
	cal := export.WeekCalendar(first.Week, first.Grid, st, export.Options{Name: conf.BannerTitle})

	if n > 1 {
		stamp := time.Now()
		for _, wk := range schedule.NextWeeks(first.Week.Week, n-1) {
			res, err := f.FetchWeek(ctx, wk)
			if err != nil {
				return fmt.Errorf("week %d: %w", wk, err)
			}
			export.AppendWeek(cal, res.Week, res.Grid, st, stamp)
		}
	}

	return writeCalendar(path, cal)
}

func writeCalendar(path string, cal *ical.Calendar) error {
	if err := os.WriteFile(path, []byte(cal.Serialize()), 0o644); err != nil {
		return err
	}
	appLog.Info("calendar written", "path", path, "events", len(cal.Events()))
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/timetable/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Optional .env file with TIMETABLE_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.week, "week", "", "Week number 1-52 (default: current week)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch one week, print it and exit")
	flag.StringVar(&cfg.exportPath, "export", "", "Write an .ics calendar to this path and exit")
	flag.IntVar(&cfg.weeks, "weeks", 1, "Number of consecutive weeks to export")

	flag.Parse()

	return cfg
}
