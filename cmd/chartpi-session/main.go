// chartpi-session prints the US equity market session status.
//
// Usage:
//
//	chartpi-session [-watch] [-json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chartpi/internal/config"
	"chartpi/internal/market"
	"chartpi/internal/scheduler"
	"chartpi/internal/util"
)

func main() {
	watch := flag.Bool("watch", false, "print the status every second until interrupted")
	asJSON := flag.Bool("json", false, "print the status as JSON")
	cfgPath := flag.String("config", config.Path("chartpi.yaml"), "path to the YAML config")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("loading .env: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewStderrLogger(cfg.Logging.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var src market.CalendarSource
	if cfg.Alpaca.APIKey != "" && cfg.Alpaca.APISecret != "" {
		src = market.NewAlpacaCalendarSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
	}
	if err := scheduler.New(ctx, market.DefaultCalendar, src, logger).RefreshCalendar(ctx); err != nil {
		logger.Warn("calendar refresh failed", "error", err)
	}

	show := func(now time.Time) {
		st := market.ComputeStatus(now)
		if *asJSON {
			data, _ := json.Marshal(st)
			fmt.Println(string(data))
			return
		}
		fmt.Println(formatStatus(st))
	}

	show(time.Now())
	if !*watch {
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			show(now)
		}
	}
}

func formatStatus(st market.MarketStatus) string {
	parts := []string{
		st.CurrentTimeET + " ET",
		market.SessionLabel(st.Session),
		market.NextEventLabel(st.NextEvent) + " " + market.FormatCountdown(st.CountdownMs),
	}
	if st.IsHoliday {
		parts = append(parts, "holiday: "+st.HolidayName)
	}
	if st.IsEarlyClose {
		parts = append(parts, "early close "+st.RegularCloseET)
	}
	return strings.Join(parts, "  |  ")
}
