package utils

import (
	"time"

	"market-relay/src/logger"
)

// MarketStatus is the session snapshot served by the health endpoint.
type MarketStatus struct {
	Exchange string `json:"exchange"`
	Open     bool   `json:"open"`
	Local    string `json:"local_time"`
}

// MarketScheduler tracks the NSE session.
type MarketScheduler struct {
	Calendar *TradingCalendar
	Logger   *logger.Logger
	now      func() time.Time
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(l *logger.Logger) *MarketScheduler {
	ms := &MarketScheduler{
		Calendar: NewNSECalendar(),
		Logger:   l,
		now:      time.Now,
	}
	if ms.Calendar.Fallback {
		l.Warning("MarketScheduler: no holiday calendar for NSE, using weekday session hours")
	}
	return ms
}

// -----------------------------------------------------------------------------

func (ms *MarketScheduler) MarketOpen() bool {
	return ms.Calendar.IsOpenOnMinute(ms.now())
}

// -----------------------------------------------------------------------------

func (ms *MarketScheduler) Status() MarketStatus {
	now := ms.now().In(ms.Calendar.Timezone)
	return MarketStatus{
		Exchange: "NSE",
		Open:     ms.Calendar.IsOpenOnMinute(now),
		Local:    now.Format("2006-01-02 15:04:05"),
	}
}
