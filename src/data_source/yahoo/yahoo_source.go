package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"
)

const (
	quoteSummaryPath = "/v10/finance/quoteSummary/%s"
	timeseriesPath   = "/ws/fundamentals-timeseries/v1/finance/timeseries/%s"
	summaryModules   = "summaryDetail,defaultKeyStatistics,financialData,incomeStatementHistory"
	asOfLayout       = "2006-01-02"
)

// Points kept per metric and period, newest first.
var periodDepth = map[string]int{
	models.PeriodAnnual:    4,
	models.PeriodQuarterly: 5,
}

// Timeseries type suffixes for each persisted metric.
var seriesMetrics = []struct {
	suffix string
	metric string
}{
	{"OperatingIncome", models.MetricOperatingIncome},
	{"TotalRevenue", models.MetricTotalRevenue},
	{"BasicEPS", models.MetricBasicEPS},
}

// -----------------------------------------------------------------------------

// YahooFinanceSource reads company fundamentals from the Yahoo Finance JSON API.
type YahooFinanceSource struct {
	BaseURL string
	Network interfaces.INetworkManager
	Logger  *logger.Logger
	now     func() time.Time
}

// -----------------------------------------------------------------------------

func NewYahooFinanceSource(baseURL string, netMgr interfaces.INetworkManager, log *logger.Logger) *YahooFinanceSource {
	return &YahooFinanceSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Network: netMgr,
		Logger:  log,
		now:     time.Now,
	}
}

// -----------------------------------------------------------------------------

type rawValue struct {
	Raw *float64 `json:"raw"`
}

type incomeStatement struct {
	EndDate      rawValue `json:"endDate"`
	NetIncome    rawValue `json:"netIncome"`
	TotalRevenue rawValue `json:"totalRevenue"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				PreviousClose rawValue `json:"previousClose"`
				TrailingPE    rawValue `json:"trailingPE"`
				DividendRate  rawValue `json:"dividendRate"`
				MarketCap     rawValue `json:"marketCap"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				TrailingEps rawValue `json:"trailingEps"`
				BookValue   rawValue `json:"bookValue"`
			} `json:"defaultKeyStatistics"`
			FinancialData struct {
				DebtToEquity rawValue `json:"debtToEquity"`
			} `json:"financialData"`
			IncomeStatementHistory struct {
				Statements []incomeStatement `json:"incomeStatementHistory"`
			} `json:"incomeStatementHistory"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"quoteSummary"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// -----------------------------------------------------------------------------

// Snapshot returns headline ratios. Missing fields stay nil.
func (s *YahooFinanceSource) Snapshot(ctx context.Context, ticker string) (models.MFundamentalView, error) {
	url := s.BaseURL + fmt.Sprintf(quoteSummaryPath, ticker)
	body, err := s.Network.Get(ctx, url, map[string]string{"modules": summaryModules})
	if err != nil {
		return models.MFundamentalView{}, fmt.Errorf("network error for %s: %w", ticker, err)
	}

	var resp quoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MFundamentalView{}, helpers.NewValidationError("json unmarshal failed", err)
	}
	if e := resp.QuoteSummary.Error; e != nil {
		return models.MFundamentalView{}, helpers.NewValidationError(fmt.Sprintf("yahoo api error: %s - %s", e.Code, e.Description), nil)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return models.MFundamentalView{}, helpers.NewValidationError("no result in response for "+ticker, nil)
	}

	r := resp.QuoteSummary.Result[0]
	view := models.MFundamentalView{
		LTP:          r.SummaryDetail.PreviousClose.Raw,
		PE:           r.SummaryDetail.TrailingPE.Raw,
		DebtToEquity: r.FinancialData.DebtToEquity.Raw,
		EPS:          r.DefaultKeyStatistics.TrailingEps.Raw,
		BVPS:         r.DefaultKeyStatistics.BookValue.Raw,
		DPS:          r.SummaryDetail.DividendRate.Raw,
		MarketCap:    r.SummaryDetail.MarketCap.Raw,
	}

	statements := r.IncomeStatementHistory.Statements
	sort.SliceStable(statements, func(i, j int) bool {
		return deref(statements[i].EndDate.Raw) > deref(statements[j].EndDate.Raw)
	})
	if len(statements) > 0 {
		latest := statements[0]
		view.NetProfit = latest.NetIncome.Raw
		if n, rev := latest.NetIncome.Raw, latest.TotalRevenue.Raw; n != nil && rev != nil && *n != 0 && *rev != 0 {
			npm := *n / *rev * 100
			view.NPM = &npm
		}
	}

	return view, nil
}

// -----------------------------------------------------------------------------

type timeseriesPoint struct {
	AsOfDate      string   `json:"asOfDate"`
	ReportedValue rawValue `json:"reportedValue"`
}

type timeseriesResponse struct {
	Timeseries struct {
		Result []map[string]json.RawMessage `json:"result"`
		Error  *yahooError                  `json:"error"`
	} `json:"timeseries"`
}

// -----------------------------------------------------------------------------

// Financials returns Operating Income, Total Revenue and Basic EPS, newest
// first and limited per period.
func (s *YahooFinanceSource) Financials(ctx context.Context, ticker, period string) ([]models.MMetricPoint, error) {
	depth, ok := periodDepth[period]
	if !ok {
		return nil, helpers.NewValidationError("unknown period "+period, nil)
	}

	types := make([]string, len(seriesMetrics))
	for i, m := range seriesMetrics {
		types[i] = period + m.suffix
	}

	now := s.now()
	params := map[string]string{
		"type":    strings.Join(types, ","),
		"period1": strconv.FormatInt(now.AddDate(-6, 0, 0).Unix(), 10),
		"period2": strconv.FormatInt(now.Unix(), 10),
	}

	body, err := s.Network.Get(ctx, s.BaseURL+fmt.Sprintf(timeseriesPath, ticker), params)
	if err != nil {
		return nil, fmt.Errorf("network error for %s: %w", ticker, err)
	}

	var resp timeseriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, helpers.NewValidationError("json unmarshal failed", err)
	}
	if e := resp.Timeseries.Error; e != nil {
		return nil, helpers.NewValidationError(fmt.Sprintf("yahoo api error: %s - %s", e.Code, e.Description), nil)
	}

	var points []models.MMetricPoint
	for _, m := range seriesMetrics {
		key := period + m.suffix
		series, err := findSeries(resp.Timeseries.Result, key)
		if err != nil {
			return nil, helpers.NewValidationError("bad series "+key, err)
		}
		points = append(points, s.latest(ticker, m.metric, series, depth)...)
	}

	if len(points) == 0 {
		return nil, helpers.NewValidationError("no financials in response for "+ticker, nil)
	}
	return points, nil
}

// -----------------------------------------------------------------------------

func findSeries(results []map[string]json.RawMessage, key string) ([]*timeseriesPoint, error) {
	for _, r := range results {
		raw, ok := r[key]
		if !ok {
			continue
		}
		var series []*timeseriesPoint
		if err := json.Unmarshal(raw, &series); err != nil {
			return nil, err
		}
		return series, nil
	}
	return nil, nil
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) latest(ticker, metric string, series []*timeseriesPoint, depth int) []models.MMetricPoint {
	var out []models.MMetricPoint
	for _, p := range series {
		if p == nil {
			continue
		}
		date, err := time.Parse(asOfLayout, p.AsOfDate)
		if err != nil {
			s.Logger.Warning("Skipping %s %s point with bad date %q", ticker, metric, p.AsOfDate)
			continue
		}
		out = append(out, models.MMetricPoint{Metric: metric, Date: date, Value: p.ReportedValue.Raw})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > depth {
		out = out[:depth]
	}
	return out
}

// -----------------------------------------------------------------------------

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
