package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/models"
)

// Candle intervals accepted by the historical API.
var Intervals = map[string]bool{
	"ONE_MINUTE":     true,
	"THREE_MINUTE":   true,
	"FIVE_MINUTE":    true,
	"TEN_MINUTE":     true,
	"FIFTEEN_MINUTE": true,
	"THIRTY_MINUTE":  true,
	"ONE_HOUR":       true,
	"ONE_DAY":        true,
}

const candleDateLayout = "2006-01-02 15:04"

// -----------------------------------------------------------------------------

// MarketClient calls the SmartAPI historical and quote endpoints.
type MarketClient struct {
	rest restClient
}

func NewMarketClient(cfg models.MBrokerConfig, nm interfaces.INetworkManager, sessions interfaces.ISessionProvider) *MarketClient {
	return &MarketClient{rest: restClient{cfg: cfg, network: nm, sessions: sessions}}
}

// -----------------------------------------------------------------------------

// Candles returns OHLCV rows for one token between from and to.
func (m *MarketClient) Candles(ctx context.Context, exchange, token, interval string, from, to time.Time) ([]models.MCandle, error) {
	if !Intervals[interval] {
		return nil, helpers.NewValidationError("unsupported interval "+interval, nil)
	}

	body := map[string]string{
		"exchange":    exchange,
		"symboltoken": token,
		"interval":    interval,
		"fromdate":    from.Format(candleDateLayout),
		"todate":      to.Format(candleDateLayout),
	}

	rows, err := postSecure[[][]json.RawMessage](ctx, &m.rest, candlePath, body)
	if err != nil {
		return nil, err
	}

	candles := make([]models.MCandle, 0, len(rows))
	for i, row := range rows {
		c, err := parseCandle(row)
		if err != nil {
			return nil, helpers.NewValidationError(fmt.Sprintf("bad candle row %d", i), err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// -----------------------------------------------------------------------------

// parseCandle reads [timestamp, open, high, low, close, volume].
func parseCandle(row []json.RawMessage) (models.MCandle, error) {
	var c models.MCandle
	if len(row) < 6 {
		return c, fmt.Errorf("expected 6 fields, got %d", len(row))
	}

	var ts string
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return c, fmt.Errorf("timestamp: %w", err)
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return c, fmt.Errorf("timestamp: %w", err)
	}
	c.Time = t

	prices := []*float64{&c.Open, &c.High, &c.Low, &c.Close}
	for i, p := range prices {
		if err := json.Unmarshal(row[i+1], p); err != nil {
			return c, fmt.Errorf("price %d: %w", i, err)
		}
	}

	var vol json.Number
	if err := json.Unmarshal(row[5], &vol); err != nil {
		return c, fmt.Errorf("volume: %w", err)
	}
	if c.Volume, err = strconv.ParseInt(vol.String(), 10, 64); err != nil {
		f, ferr := vol.Float64()
		if ferr != nil {
			return c, fmt.Errorf("volume: %w", err)
		}
		c.Volume = int64(f)
	}
	return c, nil
}

// -----------------------------------------------------------------------------

// Quotes returns full-mode quotes keyed by exchange, e.g. {"NSE": ["2885"]}.
func (m *MarketClient) Quotes(ctx context.Context, exchangeTokens map[string][]string) (models.MQuoteResult, error) {
	body := map[string]interface{}{
		"mode":           "FULL",
		"exchangeTokens": exchangeTokens,
	}
	return postSecure[models.MQuoteResult](ctx, &m.rest, quotePath, body)
}
