// Package formulas provides the indicator math used for market data snapshots.
package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateEMA calculates the Exponential Moving Average of closes (oldest first).
//
//	EMA_today = (Price_today × multiplier) + (EMA_yesterday × (1 - multiplier))
//	where multiplier = 2 / (period + 1)
//
// With fewer closes than length the SMA of what is available is returned.
// Returns nil for no data.
func CalculateEMA(closes []float64, length int) *float64 {
	if len(closes) == 0 || length <= 0 {
		return nil
	}

	if len(closes) < length {
		sma := Mean(closes)
		return &sma
	}

	ema := talib.Ema(closes, length)
	if len(ema) > 0 && !isNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	sma := Mean(closes[len(closes)-length:])
	return &sma
}

// EMACrossover compares a fast and slow EMA.
// Returns "BULLISH" when fast > slow, "BEARISH" when fast < slow, "NEUTRAL" otherwise
// or when either cannot be computed.
func EMACrossover(closes []float64, fast, slow int) string {
	f := CalculateEMA(closes, fast)
	s := CalculateEMA(closes, slow)
	if f == nil || s == nil || len(closes) < slow {
		return "NEUTRAL"
	}
	switch {
	case *f > *s:
		return "BULLISH"
	case *f < *s:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}
