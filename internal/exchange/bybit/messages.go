package bybit

import "encoding/json"

// Topic prefixes on the Bybit v5 public stream.
const (
	topicOrderbookPrefix = "orderbook.50."
	topicTradePrefix     = "publicTrade."
)

// wsMessage is the envelope of every frame on the public stream. Frames
// without a topic are command responses (subscribe acks, pongs).
type wsMessage struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"` // "snapshot" or "delta"
	TS      int64           `json:"ts"`   // milliseconds
	Data    json.RawMessage `json:"data"`
	Op      string          `json:"op,omitempty"`
	Success bool            `json:"success,omitempty"`
	RetMsg  string          `json:"ret_msg,omitempty"`
}

// orderbookData is the payload for orderbook topics. Levels are
// [price, size] string pairs; a zero size in a delta removes the level.
type orderbookData struct {
	Symbol string      `json:"s"`
	Bids   [][2]string `json:"b"`
	Asks   [][2]string `json:"a"`
	Seq    int64       `json:"u"`
}

// tradeData is one entry of the publicTrade payload.
type tradeData struct {
	Time   int64  `json:"T"` // milliseconds
	Symbol string `json:"s"`
	Side   string `json:"S"` // "Buy" or "Sell" (aggressor)
	Size   string `json:"v"`
	Price  string `json:"p"`
}

// wsCommand is an op message sent to the stream (subscribe, auth, ping).
type wsCommand struct {
	Op   string `json:"op"`
	Args []any  `json:"args,omitempty"`
}
