// chartpi-export fetches bar history for one or more symbols and archives
// it as Parquet under the archive directory.
//
// Usage:
//
//	chartpi-export -symbol BTCUSDT,AAPL [-interval 1h] [-out archive]
//	chartpi-export -search apple [-asset stock]
//	chartpi-export -list [-asset crypto] [-interval 1h]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"chartpi/internal/config"
	"chartpi/internal/domain"
	"chartpi/internal/provider"
	"chartpi/internal/store"
	"chartpi/internal/util"
)

func main() {
	symbols := flag.String("symbol", "", "comma-separated symbols to export")
	asset := flag.String("asset", "", "asset class: crypto or stock (guessed from the symbol when empty)")
	interval := flag.String("interval", "1h", "bar interval")
	out := flag.String("out", "", "archive directory (default from config)")
	search := flag.String("search", "", "search symbols instead of exporting")
	list := flag.Bool("list", false, "list archived symbols")
	cfgPath := flag.String("config", config.Path("chartpi.yaml"), "path to the YAML config")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("loading .env: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level)

	iv, err := domain.ParseInterval(*interval)
	if err != nil {
		log.Fatalf("invalid -interval: %v", err)
	}
	dir := *out
	if dir == "" {
		dir = cfg.Storage.ArchiveDir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	providers := provider.NewSet(provider.Opts{
		BinanceURL:       cfg.Providers.BinanceURL,
		BinanceStreamURL: cfg.Providers.BinanceStreamURL,
		YahooURL:         cfg.Providers.YahooURL,
		AlpacaDataURL:    cfg.Alpaca.DataURL,
		AlpacaFeed:       cfg.Alpaca.Feed,
		Timeout:          cfg.Providers.Timeout,
		RatePerMinute:    cfg.Providers.RatePerMinute,
	}, nil)
	archive := store.NewParquetStore(dir)

	switch {
	case *search != "":
		ac := domain.AssetClass(strings.ToLower(*asset))
		if !ac.Valid() {
			ac = guessAssetClass(*search)
		}
		results, err := providers.Search(ctx, *search, ac)
		if err != nil {
			log.Fatalf("search failed: %v", err)
		}
		for _, r := range results {
			fmt.Printf("%-12s %-8s %-10s %s\n", r.Symbol, r.AssetClass, r.Exchange, r.Name)
		}
		return

	case *list:
		classes := []domain.AssetClass{domain.AssetCrypto, domain.AssetStock}
		if ac := domain.AssetClass(strings.ToLower(*asset)); ac.Valid() {
			classes = []domain.AssetClass{ac}
		}
		for _, ac := range classes {
			syms, err := archive.ListSymbols(ctx, ac, iv)
			if err != nil {
				log.Fatalf("list %s: %v", ac, err)
			}
			for _, s := range syms {
				fmt.Printf("%s\t%s\t%s\n", ac, iv, s)
			}
		}
		return
	}

	if *symbols == "" {
		flag.Usage()
		os.Exit(2)
	}
	creds := domain.Credentials{APIKey: cfg.Alpaca.APIKey, APISecret: cfg.Alpaca.APISecret}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, sym := range strings.Split(*symbols, ",") {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		ac := domain.AssetClass(strings.ToLower(*asset))
		if !ac.Valid() {
			ac = guessAssetClass(sym)
		}
		g.Go(func() error {
			bars, source, err := fetch(gctx, providers, creds, ac, sym, iv)
			if err != nil {
				return fmt.Errorf("%s: %w", sym, err)
			}
			if err := archive.WriteBars(gctx, ac, iv, sym, bars); err != nil {
				return fmt.Errorf("%s: write: %w", sym, err)
			}
			stored, err := archive.ReadBars(gctx, ac, iv, sym, time.Time{}, time.Time{})
			if err != nil {
				return fmt.Errorf("%s: read back: %w", sym, err)
			}
			logger.Info("exported", "symbol", sym, "asset", ac, "interval", iv,
				"source", source, "fetched", len(bars), "archived", len(stored))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("export failed: %v", err)
	}
}

// fetch loads history from the asset class's primary provider, falling
// back to Alpaca for stocks when credentials are configured.
func fetch(ctx context.Context, ps provider.Set, creds domain.Credentials, ac domain.AssetClass, symbol string, iv domain.Interval) ([]domain.Bar, string, error) {
	if ac == domain.AssetCrypto {
		bars, err := ps.Crypto.FetchHistory(ctx, symbol, iv)
		return bars, ps.Crypto.Name(), err
	}
	bars, err := ps.Primary.FetchHistory(ctx, symbol, iv)
	if err == nil && len(bars) > 0 {
		return bars, ps.Primary.Name(), nil
	}
	if !creds.Present() || ps.NewFallback == nil {
		if err == nil {
			err = fmt.Errorf("no bars returned")
		}
		return nil, ps.Primary.Name(), err
	}
	fb := ps.NewFallback(creds)
	fbBars, fbErr := fb.FetchHistory(ctx, symbol, iv)
	if fbErr != nil {
		return nil, fb.Name(), fmt.Errorf("primary: %v; fallback: %w", err, fbErr)
	}
	return fbBars, fb.Name(), nil
}

func guessAssetClass(symbol string) domain.AssetClass {
	s := strings.ToUpper(symbol)
	for _, suffix := range []string{"USDT", "BUSD", "USD"} {
		if len(s) > len(suffix) && strings.HasSuffix(s, suffix) {
			return domain.AssetCrypto
		}
	}
	return domain.AssetStock
}
