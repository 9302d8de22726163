package analysis

import (
	"sort"
	"time"

	"market-relay/src/analysis/core"
	"market-relay/src/models"
)

const dayLayout = "2006-01-02"

// DailyResampler groups intraday or daily candles into trading-day bars.
type DailyResampler struct {
	Location *time.Location
}

// -----------------------------------------------------------------------------

// NewDailyResampler buckets by calendar date in loc. A nil loc keeps each
// candle's own offset.
func NewDailyResampler(loc *time.Location) *DailyResampler {
	return &DailyResampler{Location: loc}
}

// -----------------------------------------------------------------------------

// Resample returns one bar per date in ascending order. Each bar carries the
// previous bar's close and the percentage change against it. The first bar,
// and any bar whose previous close is not positive, has neither.
func (r *DailyResampler) Resample(candles []models.MCandle) []models.MDailyBar {
	if len(candles) == 0 {
		return []models.MDailyBar{}
	}

	sorted := make([]models.MCandle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	var bars []models.MDailyBar
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && r.day(sorted[i].Time) == r.day(sorted[start].Time) {
			continue
		}

		agg := core.ComputeOHLCV(sorted[start:i])
		bars = append(bars, models.MDailyBar{
			Date:   r.day(sorted[start].Time),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
		start = i
	}

	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		bars[i].PTDClose = &prev
		if pct, ok := core.CalculateChangePercent(bars[i].Close, prev); ok {
			bars[i].Change = &pct
		}
	}

	return bars
}

// -----------------------------------------------------------------------------

func (r *DailyResampler) day(t time.Time) string {
	if r.Location != nil {
		t = t.In(r.Location)
	}
	return t.Format(dayLayout)
}
