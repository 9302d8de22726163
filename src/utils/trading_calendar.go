package utils

import (
	"time"

	"github.com/scmhub/calendar"
)

// NSE cash session in exchange-local time.
const (
	nseMIC        = "xnse"
	sessionOpenH  = 9
	sessionOpenM  = 15
	sessionCloseH = 15
	sessionCloseM = 30
)

// TradingCalendar answers session questions for the NSE cash market.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// NewNSECalendar uses the exchange holiday calendar when the library ships
// one. Otherwise it falls back to Monday to Friday 09:15-15:30 IST.
func NewNSECalendar() *TradingCalendar {
	if cal := calendar.GetCalendar(nseMIC); cal != nil {
		return &TradingCalendar{Calendar: cal, Timezone: cal.Loc}
	}
	return &TradingCalendar{Fallback: true, Timezone: IST()}
}

// -----------------------------------------------------------------------------

// IST returns Asia/Kolkata, or a fixed +05:30 zone when tzdata is missing.
func IST() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*3600+30*60)
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	date = date.In(tc.Timezone)
	if tc.Fallback {
		wd := date.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute reports whether the cash session is open at t.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	t = t.In(tc.Timezone)
	if !tc.Fallback {
		return tc.Calendar.IsOpen(t)
	}
	if !tc.IsTradingDay(t) {
		return false
	}

	minutes := t.Hour()*60 + t.Minute()
	return minutes >= sessionOpenH*60+sessionOpenM && minutes < sessionCloseH*60+sessionCloseM
}
