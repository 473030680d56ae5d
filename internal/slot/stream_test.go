package slot

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"chartpi/internal/domain"
	"chartpi/internal/provider"
	"chartpi/internal/util"
)

// fullKline is a complete Binance kline message as published on the
// stream, including the upper-case keys that share a letter with the
// bar fields.
const fullKline = `{"e":"kline","E":1700000125123,"s":"BTCUSDT","k":{
	"t":120000,"T":179999,"s":"BTCUSDT","i":"1m","f":100,"L":200,
	"o":"6.5","c":"7","h":"9","l":"6","v":"1000","n":100,"x":false,
	"q":"7000","V":"500","Q":"3500","B":"123456"}}`

func TestBinanceStreamMergesIntoSlot(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/btcusdt@kline_1m" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(fullKline))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	h := newHarness()
	h.crypto.bars["BTCUSDT"] = bars(60, 120)
	h.set.Stream = provider.NewBinance(provider.BinanceOpts{StreamURL: "ws" + strings.TrimPrefix(srv.URL, "http")})

	s := New(cryptoCfg("BTCUSDT"), creds, h.set, util.Discard())
	start(t, s)
	waitFor(t, "stream bar merged", func() bool {
		st := s.State()
		return len(st.Bars) == 2 && st.Bars[1].Close == 7
	})

	st := s.State()
	want := domain.Bar{Time: 120, Open: 6.5, High: 9, Low: 6, Close: 7, Volume: 1000}
	if st.Bars[1] != want {
		t.Errorf("merged bar = %+v, want %+v", st.Bars[1], want)
	}
	if st.Price != 7 {
		t.Errorf("Price = %v, want 7", st.Price)
	}
	if st.Warning != "" {
		t.Errorf("Warning = %q, want none", st.Warning)
	}
}
