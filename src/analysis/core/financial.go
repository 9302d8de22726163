package core

import (
	"math"

	"market-relay/src/models"
)

// -----------------------------------------------------------------------------

// OHLCV is an aggregate over consecutive candles.
type OHLCV struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// ComputeOHLCV folds candles in time order: first open, max high, min low,
// last close, summed volume.
func ComputeOHLCV(candles []models.MCandle) OHLCV {
	if len(candles) == 0 {
		return OHLCV{}
	}

	out := OHLCV{
		Open:  candles[0].Open,
		Close: candles[len(candles)-1].Close,
		High:  math.Inf(-1),
		Low:   math.Inf(1),
	}
	for _, c := range candles {
		out.High = math.Max(out.High, c.High)
		out.Low = math.Min(out.Low, c.Low)
		out.Volume += c.Volume
	}
	return out
}

// -----------------------------------------------------------------------------

// CalculateChangePercent returns the change in percent. ok is false when
// previous is not positive.
func CalculateChangePercent(current, previous float64) (pct float64, ok bool) {
	if previous <= 0 {
		return 0, false
	}
	return (current - previous) / previous * 100, true
}
