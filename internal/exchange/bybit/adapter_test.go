package bybit

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"quotebridge/internal/quote"
	"quotebridge/internal/types"
)

func testTicker() *types.Ticker {
	return types.NewTicker("BTCUSDT", Name, "USDT",
		decimal.RequireFromString("0.01"), decimal.RequireFromString("0.000001"),
		decimal.RequireFromString("0.000048"), decimal.RequireFromString("5"))
}

func TestSubscriptionTopics(t *testing.T) {
	a := New(Config{WSURL: "wss://stream.bybit.com/v5/public/spot"})
	ticker := testTicker()

	cases := []struct {
		kind    types.SubscriptionKind
		channel string
	}{
		{types.KindLevel1, "orderbook.50.BTCUSDT"},
		{types.KindLevel2, "orderbook.50.BTCUSDT"},
		{types.KindOrderFlow, "publicTrade.BTCUSDT"},
	}
	for _, tc := range cases {
		sub, err := a.Subscription(ticker, tc.kind)
		if err != nil {
			t.Fatalf("%s: %v", tc.kind, err)
		}
		if sub.Channel != tc.channel {
			t.Fatalf("%s channel = %q, want %q", tc.kind, sub.Channel, tc.channel)
		}
		if sub.WireSymbol != "BTCUSDT" {
			t.Fatalf("%s wire symbol = %q", tc.kind, sub.WireSymbol)
		}

		var cmd wsCommand
		if err := json.Unmarshal(sub.Profile.Subscribe, &cmd); err != nil {
			t.Fatalf("subscribe payload: %v", err)
		}
		if cmd.Op != "subscribe" || len(cmd.Args) != 1 || cmd.Args[0] != tc.channel {
			t.Fatalf("subscribe payload = %+v", cmd)
		}
		if string(sub.Profile.Ping) != `{"op":"ping"}` {
			t.Fatalf("ping payload = %s", sub.Profile.Ping)
		}
		if sub.Profile.PingInterval <= 0 {
			t.Fatal("ping interval not set")
		}
		if sub.Profile.BuildAuth != nil {
			t.Fatal("auth configured without credentials")
		}
	}
}

func TestAuthConfiguredWithCredentials(t *testing.T) {
	a := New(Config{WSURL: "wss://x", APIKey: "key", APISecret: "secret"})
	sub, err := a.Subscription(testTicker(), types.KindLevel2)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Profile.BuildAuth == nil {
		t.Fatal("BuildAuth not set despite credentials")
	}
	payload, err := sub.Profile.BuildAuth()
	if err != nil {
		t.Fatalf("build auth: %v", err)
	}
	var cmd wsCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		t.Fatalf("auth payload: %v", err)
	}
	if cmd.Op != "auth" || len(cmd.Args) != 3 || cmd.Args[0] != "key" {
		t.Fatalf("auth payload = %+v", cmd)
	}
}

func TestParseSnapshot(t *testing.T) {
	a := New(Config{})
	raw := []byte(`{
		"topic":"orderbook.50.BTCUSDT","type":"snapshot","ts":1672304484978,
		"data":{"s":"BTCUSDT","b":[["16493.50","0.006"],["16493.00","0.100"]],"a":[["16611.00","0.029"]],"u":18521288}
	}`)

	events, err := a.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	snap, ok := events[0].(quote.BookSnapshot)
	if !ok {
		t.Fatalf("event type %T, want BookSnapshot", events[0])
	}
	if snap.Symbol != "BTCUSDT" || len(snap.Bids) != 2 || len(snap.Asks) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !snap.Bids[0].Price.Equal(decimal.RequireFromString("16493.50")) {
		t.Fatalf("bid price = %v", snap.Bids[0].Price)
	}
	if snap.Time.UnixMilli() != 1672304484978 {
		t.Fatalf("timestamp = %v", snap.Time)
	}
}

func TestParseDelta(t *testing.T) {
	a := New(Config{})
	raw := []byte(`{
		"topic":"orderbook.50.BTCUSDT","type":"delta","ts":1672304484978,
		"data":{"s":"BTCUSDT","b":[["16493.50","0"]],"a":[["16611.00","0.031"]],"u":18521289}
	}`)

	events, err := a.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	del, ok := events[0].(quote.BookDelta)
	if !ok || del.Side != types.Buy || !del.Size.IsZero() {
		t.Fatalf("first delta = %+v, want zero-size bid removal", events[0])
	}
	del, ok = events[1].(quote.BookDelta)
	if !ok || del.Side != types.Sell || !del.Size.Equal(decimal.RequireFromString("0.031")) {
		t.Fatalf("second delta = %+v", events[1])
	}
}

func TestParseTrades(t *testing.T) {
	a := New(Config{})
	raw := []byte(`{
		"topic":"publicTrade.BTCUSDT","type":"snapshot","ts":1672304486868,
		"data":[{"T":1672304486865,"s":"BTCUSDT","S":"Buy","v":"0.001","p":"16578.50"},
		        {"T":1672304486866,"s":"BTCUSDT","S":"Sell","v":"0.002","p":"16578.00"}]
	}`)

	events, err := a.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	tr := events[0].(quote.TradeEvent)
	if tr.Side != types.Buy || !tr.Price.Equal(decimal.RequireFromString("16578.50")) {
		t.Fatalf("trade 0 = %+v", tr)
	}
	tr = events[1].(quote.TradeEvent)
	if tr.Side != types.Sell || !tr.Size.Equal(decimal.RequireFromString("0.002")) {
		t.Fatalf("trade 1 = %+v", tr)
	}
}

func TestParseIgnoresControlFrames(t *testing.T) {
	a := New(Config{})
	for _, raw := range []string{
		`{"success":true,"ret_msg":"","op":"subscribe"}`,
		`{"success":true,"ret_msg":"pong","op":"ping"}`,
	} {
		events, err := a.Parse([]byte(raw))
		if err != nil {
			t.Fatalf("control frame %s: %v", raw, err)
		}
		if len(events) != 0 {
			t.Fatalf("control frame produced %d events", len(events))
		}
	}
}

func TestParseMalformedFrame(t *testing.T) {
	a := New(Config{})
	if _, err := a.Parse([]byte(`{not json`)); err == nil {
		t.Fatal("expected parse error")
	} else if kind, _ := types.KindOf(err); kind != types.ErrKindParse {
		t.Fatalf("error kind = %v, want parse", kind)
	}

	raw := []byte(`{"topic":"orderbook.50.BTCUSDT","type":"snapshot","ts":1,"data":{"s":"BTCUSDT","b":[["bad","1"]],"a":[]}}`)
	if _, err := a.Parse(raw); err == nil {
		t.Fatal("expected parse error for bad price")
	}
}
