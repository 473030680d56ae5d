package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"chartpi/internal/domain"
)

// klineEvent is the Binance `<symbol>@kline_<interval>` payload. Every
// documented key is declared: encoding/json falls back to case-insensitive
// matching, so an undeclared "E", "T", "L" or "V" would land on "e", "t",
// "l" or "v".
type klineEvent struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		StartTime           int64  `json:"t"`
		CloseTime           int64  `json:"T"`
		Symbol              string `json:"s"`
		Interval            string `json:"i"`
		FirstTradeID        int64  `json:"f"`
		LastTradeID         int64  `json:"L"`
		Open                string `json:"o"`
		Close               string `json:"c"`
		High                string `json:"h"`
		Low                 string `json:"l"`
		Volume              string `json:"v"`
		TradeCount          int64  `json:"n"`
		Final               bool   `json:"x"`
		QuoteVolume         string `json:"q"`
		TakerBuyVolume      string `json:"V"`
		TakerBuyQuoteVolume string `json:"Q"`
		Ignore              string `json:"B"`
	} `json:"k"`
}

// decodeKline turns a stream message into a Bar.
func decodeKline(msg []byte) (domain.Bar, error) {
	var ev klineEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return domain.Bar{}, err
	}
	if ev.Kline.StartTime == 0 {
		return domain.Bar{}, fmt.Errorf("message without kline: %.64s", msg)
	}
	k := ev.Kline
	return barFromStrings(k.StartTime/1000, k.Open, k.High, k.Low, k.Close, k.Volume)
}

// klineStream is one websocket subscription.
type klineStream struct {
	conn     *websocket.Conn
	once     sync.Once
	closing  chan struct{}
	finished chan struct{}
}

// OpenStream subscribes to live klines for symbol. The stream ends when
// ctx is done, Close is called, or the connection fails; only the last
// case reports through onError. Reconnection is left to the caller.
func (b *Binance) OpenStream(ctx context.Context, symbol string, iv domain.Interval, onBar func(domain.Bar), onError func(error)) (Stream, error) {
	url := fmt.Sprintf("%s/%s@kline_%s", b.streamURL, strings.ToLower(symbol), iv)
	conn, _, err := b.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, transportError(b.Name(), "stream", symbol, err)
	}

	s := &klineStream{
		conn:     conn,
		closing:  make(chan struct{}),
		finished: make(chan struct{}),
	}
	log := b.log.With("symbol", symbol, "interval", string(iv))
	log.Debug("kline stream connected")

	go s.readLoop(symbol, onBar, onError, b)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.closing:
		case <-s.finished:
		}
	}()
	return s, nil
}

func (s *klineStream) readLoop(symbol string, onBar func(domain.Bar), onError func(error), b *Binance) {
	defer close(s.finished)
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closing:
			default:
				s.Close()
				onError(transportError(b.Name(), "stream", symbol, err))
			}
			return
		}
		bar, err := decodeKline(msg)
		if err != nil {
			b.log.Debug("skipping stream message", "symbol", symbol, "error", err)
			continue
		}
		onBar(bar)
	}
}

// Close stops the stream. Safe to call repeatedly and concurrently.
func (s *klineStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closing)
		err = s.conn.Close()
	})
	return err
}
