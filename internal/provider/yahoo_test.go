package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"chartpi/internal/domain"
)

const aaplChart = `{"chart":{"result":[{
	"meta":{"symbol":"AAPL","shortName":"Apple Inc.","exchangeName":"NMS",
		"regularMarketPrice":190.5,"previousClose":188.0,"chartPreviousClose":180.0},
	"timestamp":[1700000000,1700003600,1700007200],
	"indicators":{"quote":[{
		"open":[189.0,null,190.0],
		"high":[191.0,190.5,191.5],
		"low":[188.5,189.0,189.5],
		"close":[190.0,190.2,190.5],
		"volume":[1000,2000,null]
	}]}
}],"error":null}}`

const notFoundChart = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

type yahooFake struct {
	searchCalls int32
	lastQuery   atomic.Value
}

func newYahooServer(t *testing.T, f *yahooFake) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v8/finance/chart/", func(w http.ResponseWriter, r *http.Request) {
		f.lastQuery.Store(r.URL.RawQuery)
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent header")
		}
		switch strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/") {
		case "AAPL", "XYZ":
			fmt.Fprint(w, aaplChart)
		case "EMPTY":
			fmt.Fprint(w, `{"chart":{"result":[],"error":null}}`)
		case "DOWN":
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{}`)
		case "GONE":
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Bad Request","description":"No data found, symbol may be delisted"}}}`)
		case "BUSY":
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Bad Request","description":"Invalid input - interval=1m is not supported"}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, notFoundChart)
		}
	})
	mux.HandleFunc("/v1/finance/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.searchCalls, 1)
		if r.URL.Query().Get("q") == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"quotes":[
			{"symbol":"AAPL","shortname":"Apple Inc.","exchange":"NMS","quoteType":"EQUITY","isYahooFinance":true},
			{"symbol":"APLE","shortname":"Apple Hospitality REIT","exchange":"NYQ","quoteType":"EQUITY","isYahooFinance":true},
			{"symbol":"APPL.X","longname":"Apple Option","exchange":"OPR","quoteType":"OPTION","isYahooFinance":true},
			{"symbol":"AAPL.NE","shortname":"Apple CDR","exchange":"NEO","quoteType":"EQUITY","isYahooFinance":false}
		]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestYahoo(t *testing.T) (*Yahoo, *yahooFake) {
	f := &yahooFake{}
	srv := newYahooServer(t, f)
	return NewYahoo(YahooOpts{BaseURL: srv.URL}), f
}

func TestYahooFetchHistorySkipsNulls(t *testing.T) {
	y, _ := newTestYahoo(t)
	bars, err := y.FetchHistory(context.Background(), "AAPL", domain.Interval1h)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("len(bars) = %d, want 2", len(bars))
	}
	if bars[0].Time != 1700000000 || bars[1].Time != 1700007200 {
		t.Errorf("times = %d, %d; want 1700000000, 1700007200", bars[0].Time, bars[1].Time)
	}
	if bars[0].Volume != 1000 {
		t.Errorf("bars[0].Volume = %v, want 1000", bars[0].Volume)
	}
	if bars[1].Volume != 0 {
		t.Errorf("missing volume = %v, want 0", bars[1].Volume)
	}
}

func TestYahooIntervalMapping(t *testing.T) {
	y, f := newTestYahoo(t)
	cases := []struct {
		iv       domain.Interval
		wantQ    string
		wantRang string
	}{
		{domain.Interval4h, "interval=1h", "range=3mo"},
		{domain.Interval1w, "interval=1wk", "range=5y"},
		{domain.Interval1m, "interval=1m", "range=1d"},
	}
	for _, c := range cases {
		if _, err := y.FetchHistory(context.Background(), "AAPL", c.iv); err != nil {
			t.Fatalf("FetchHistory(%s): %v", c.iv, err)
		}
		q, _ := f.lastQuery.Load().(string)
		if !strings.Contains(q, c.wantQ) || !strings.Contains(q, c.wantRang) {
			t.Errorf("%s query = %q, want %s and %s", c.iv, q, c.wantQ, c.wantRang)
		}
	}
}

func TestYahooErrors(t *testing.T) {
	y, _ := newTestYahoo(t)
	cases := map[string]error{
		"NOPE":  ErrNotFound,
		"EMPTY": ErrNoData,
		"DOWN":  ErrUpstream,
		"GONE":  ErrNotFound,
		"BUSY":  ErrUpstream,
	}
	for sym, want := range cases {
		_, err := y.FetchHistory(context.Background(), sym, domain.Interval1d)
		if !errors.Is(err, want) {
			t.Errorf("FetchHistory(%s) err = %v, want %v", sym, err, want)
		}
	}

	var pe *Error
	_, err := y.FetchQuote(context.Background(), "NOPE")
	if !errors.As(err, &pe) || pe.Status != http.StatusNotFound {
		t.Errorf("FetchQuote(NOPE) = %v, want status 404", err)
	}
}

func TestYahooFetchQuote(t *testing.T) {
	y, f := newTestYahoo(t)
	q, err := y.FetchQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}
	if q.Price != 190.5 || q.Change != 2.5 {
		t.Errorf("quote = %+v, want price 190.5 change 2.5", q)
	}
	if lq, _ := f.lastQuery.Load().(string); !strings.Contains(lq, "interval=1d") {
		t.Errorf("quote query = %q, want daily interval", lq)
	}
}

func TestYahooSearchMergesAndCaches(t *testing.T) {
	y, f := newTestYahoo(t)
	got, err := y.Search(context.Background(), "apple")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	var syms []string
	for _, s := range got {
		syms = append(syms, s.Symbol)
	}
	if strings.Join(syms, ",") != "AAPL,APLE" {
		t.Errorf("Search(apple) = %v, want [AAPL APLE]", syms)
	}
	if got[0].Exchange != "NASDAQ" {
		t.Errorf("popular entry should come first, got exchange %q", got[0].Exchange)
	}

	if _, err := y.Search(context.Background(), "APPLE"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if n := atomic.LoadInt32(&f.searchCalls); n != 1 {
		t.Errorf("search calls = %d, want 1 (cached)", n)
	}
}

func TestYahooSearchFailureFallsBack(t *testing.T) {
	y, f := newTestYahoo(t)
	for i := 0; i < 2; i++ {
		got, err := y.Search(context.Background(), "broken")
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != 10 {
			t.Errorf("fallback len = %d, want 10 popular stocks", len(got))
		}
	}
	if n := atomic.LoadInt32(&f.searchCalls); n != 2 {
		t.Errorf("search calls = %d, want 2 (failures not cached)", n)
	}
}

func TestYahooValidate(t *testing.T) {
	y, _ := newTestYahoo(t)

	info, ok, err := y.Validate(context.Background(), "tsla")
	if err != nil || !ok || info.Name != "Tesla Inc." {
		t.Errorf("Validate(tsla) = %+v, %v, %v", info, ok, err)
	}

	info, ok, err = y.Validate(context.Background(), "XYZ")
	if err != nil || !ok {
		t.Fatalf("Validate(XYZ) = %v, %v", ok, err)
	}
	if info.Name != "Apple Inc." || info.Exchange != "NMS" {
		t.Errorf("info = %+v", info)
	}

	_, ok, err = y.Validate(context.Background(), "NOPE")
	if err != nil || ok {
		t.Errorf("Validate(NOPE) = %v, %v; want false, nil", ok, err)
	}

	_, _, err = y.Validate(context.Background(), "DOWN")
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("Validate(DOWN) err = %v, want ErrUpstream", err)
	}
}
