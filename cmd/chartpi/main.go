// chartpi is the interactive chart dashboard: a grid of live crypto and
// stock charts with a US market session clock.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"chartpi/internal/config"
	"chartpi/internal/dashboard"
	"chartpi/internal/domain"
	"chartpi/internal/market"
	"chartpi/internal/provider"
	"chartpi/internal/scheduler"
	"chartpi/internal/slot"
	"chartpi/internal/store"
	"chartpi/internal/tui"
	"chartpi/internal/util"
)

func main() {
	cfgPath := flag.String("config", config.Path("chartpi.yaml"), "path to the YAML config")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the dashboard and blocks until the program exits.
func run(cfgPath string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("loading .env: %v", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The TUI owns stdout, so logs go to a rotating file.
	logger, logCloser := util.NewFileLogger(cfg.Logging.Level, util.FileLogOpts{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	defer logCloser.Close()
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kv, err := store.NewSQLiteKV(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", cfg.Storage.DBPath, err)
	}
	defer kv.Close()

	st := dashboard.NewStore(ctx, kv, logger)
	if creds := (domain.Credentials{APIKey: cfg.Alpaca.APIKey, APISecret: cfg.Alpaca.APISecret}); creds.Present() && !st.Config().Credentials.Present() {
		logger.Info("seeding fallback credentials from environment")
		st.SetFallbackCredentials(creds)
	}

	providers := provider.NewSet(provider.Opts{
		BinanceURL:       cfg.Providers.BinanceURL,
		BinanceStreamURL: cfg.Providers.BinanceStreamURL,
		YahooURL:         cfg.Providers.YahooURL,
		AlpacaDataURL:    cfg.Alpaca.DataURL,
		AlpacaFeed:       cfg.Alpaca.Feed,
		Timeout:          cfg.Providers.Timeout,
		RatePerMinute:    cfg.Providers.RatePerMinute,
	}, provider.NewCache())

	sv := slot.NewSupervisor(ctx, providers, logger)
	defer sv.Close()

	// Every store event carries the whole config, so a dropped event is
	// repaired by the next one.
	subID, storeEvents := st.Subscribe(32)
	defer st.Unsubscribe(subID)
	sv.Reconcile(st.Config())
	go func() {
		for ev := range storeEvents {
			if ev.Type == dashboard.EventSettings {
				continue
			}
			sv.Reconcile(ev.Config)
			logger.Debug("reconciled charts", "event", ev.Type, "slots", sv.Len())
		}
	}()

	var calSource market.CalendarSource
	if creds := st.Config().Credentials; creds.Present() {
		calSource = market.NewAlpacaCalendarSource(creds.APIKey, creds.APISecret, cfg.Alpaca.BaseURL)
	}
	sched := scheduler.New(ctx, market.DefaultCalendar, calSource, logger)
	go func() {
		if err := sched.RefreshCalendar(ctx); err != nil {
			logger.Warn("initial calendar refresh failed", "error", err)
		}
	}()

	p := tea.NewProgram(
		tui.New(tui.Options{
			Ctx:      ctx,
			Store:    st,
			States:   sv,
			Lookup:   providers,
			Calendar: market.DefaultCalendar,
			Log:      logger,
		}),
		tea.WithAltScreen(),
	)

	if err := sched.Register(cfg.Dashboard.ClockTick, cfg.Dashboard.CalendarRefresh, func(t time.Time) {
		p.Send(tui.ClockMsg(t))
	}); err != nil {
		return fmt.Errorf("failed to schedule jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	logger.Info("starting chartpi", "config", cfgPath, "db", cfg.Storage.DBPath, "charts", len(st.Config().Charts))
	if _, err := p.Run(); err != nil {
		logger.Error("dashboard exited", "error", err)
		return err
	}
	return nil
}
