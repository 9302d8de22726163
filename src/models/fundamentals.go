package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reporting periods for financial data.
const (
	PeriodAnnual    = "annual"
	PeriodQuarterly = "quarterly"
)

// Metric names persisted by the financials import.
const (
	MetricOperatingIncome = "Operating Income"
	MetricTotalRevenue    = "Total Revenue"
	MetricBasicEPS        = "Basic EPS"
	MetricMarketCap       = "Market Cap"
)

// MStockData is a constituent of the tracked index universe, keyed by ISIN.
type MStockData struct {
	ISIN        string `json:"isin_code"`
	CompanyName string `json:"company_name"`
	Industry    string `json:"industry"`
	Symbol      string `json:"symbol"`
	Series      string `json:"series"`
}

type MFinancialMetric struct {
	ID   string `json:"id"`
	Name string `json:"metric_name"`
}

// MFinancialData is one metric value for one stock at one reporting date.
type MFinancialData struct {
	ID       string              `json:"id"`
	ISIN     string              `json:"isin_code"`
	MetricID string              `json:"metric_id"`
	Value    decimal.NullDecimal `json:"value"`
	Date     time.Time           `json:"date"`
	Period   string              `json:"period"`
}

// MMetricPoint is a dated metric value as returned by the fundamentals provider.
type MMetricPoint struct {
	Metric string
	Date   time.Time
	Value  *float64
}

// MFundamentalView is the snapshot served by the fundamental-data endpoint.
type MFundamentalView struct {
	LTP          *float64 `json:"LTP"`
	PE           *float64 `json:"PE"`
	DebtToEquity *float64 `json:"Debt to Equity"`
	EPS          *float64 `json:"EPS"`
	BVPS         *float64 `json:"BVPS"`
	NetProfit    *float64 `json:"Net Profit"`
	DPS          *float64 `json:"DPS"`
	NPM          *float64 `json:"NPM"`

	// MarketCap feeds the financials import and is not served.
	MarketCap *float64 `json:"-"`
}
