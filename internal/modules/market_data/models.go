// Package market_data turns broker quotes and ticks into cached dashboard payloads.
package market_data

import (
	"time"

	"github.com/aristath/marketpulse/internal/cache"
)

// Payload sources
const (
	SourcePoll   = "poll"
	SourceStream = "stream"
)

// optionsPrefix namespaces option chain summaries among market data symbols
const optionsPrefix = "OPTIONS:"

// OptionsSymbol returns the market data symbol holding an underlying's OI metrics
func OptionsSymbol(underlying string) string {
	return optionsPrefix + underlying
}

// Candle is a one-minute OHLCV bar
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

func (c Candle) payload() cache.Payload {
	return cache.Payload{
		"t": c.Time.Unix(),
		"o": c.Open,
		"h": c.High,
		"l": c.Low,
		"c": c.Close,
		"v": c.Volume,
	}
}

func candleFromPayload(p cache.Payload) (Candle, bool) {
	t, ok := asInt(p["t"])
	if !ok {
		return Candle{}, false
	}
	c := Candle{Time: time.Unix(t, 0).UTC()}
	c.Open, _ = asFloat(p["o"])
	c.High, _ = asFloat(p["h"])
	c.Low, _ = asFloat(p["l"])
	c.Close, ok = asFloat(p["c"])
	c.Volume, _ = asInt(p["v"])
	return c, ok
}

// PollResult summarises one poll cycle
type PollResult struct {
	Skipped    bool     `json:"skipped"`
	Reason     string   `json:"reason,omitempty"`
	Symbols    []string `json:"symbols"`
	OptionsOK  int      `json:"options_ok"`
	OptionsErr int      `json:"options_err"`
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
