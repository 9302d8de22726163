package relay

import (
	"time"

	"market-relay/src/helpers"
	"market-relay/src/models"

	"github.com/shopspring/decimal"
)

const priceDecimals = 2

var hundred = decimal.NewFromInt(100)

// istLocation is used to render exchange timestamps in the raw feed.
var istLocation = loadIST()

func loadIST() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}

// -----------------------------------------------------------------------------

// paiseToRupees converts an integer paise amount to rupees without float error.
func paiseToRupees(paise int64) decimal.Decimal {
	return decimal.New(paise, -2)
}

// formatPrice renders paise as rupees with two decimals.
func formatPrice(paise int64) string {
	return paiseToRupees(paise).StringFixed(priceDecimals)
}

// -----------------------------------------------------------------------------

// Normalize turns a decoded frame into the client payload. It is pure and
// only fails on malformed input.
func Normalize(raw models.MRawTick, ref models.MInstrumentRef) (models.MNormalizedTick, error) {
	if raw.Token == "" {
		return models.MNormalizedTick{}, helpers.NewDecodeError("tick has empty token", nil)
	}
	if raw.Mode == models.ModeLTP {
		return models.MNormalizedTick{}, helpers.NewDecodeError("LTP frame for token "+raw.Token+" has no close price", nil)
	}
	if raw.LastTradedPricePaise < 0 || raw.ClosedPricePaise < 0 {
		return models.MNormalizedTick{}, helpers.NewDecodeError("tick has negative price for token "+raw.Token, nil)
	}

	ltp := paiseToRupees(raw.LastTradedPricePaise)
	closePrice := paiseToRupees(raw.ClosedPricePaise)
	change := ltp.Sub(closePrice)

	changePct := decimal.Zero
	if !closePrice.IsZero() {
		changePct = change.Div(closePrice).Mul(hundred)
	}

	return models.MNormalizedTick{
		Type:         ref.Class,
		Name:         ref.Name,
		Symbol:       ref.Symbol,
		LTP:          ltp.StringFixed(priceDecimals),
		ChangePct:    changePct.StringFixed(priceDecimals) + "%",
		Change:       change.StringFixed(priceDecimals),
		Volume:       raw.DayVolume,
		BuyQuantity:  raw.TotalBuyQty,
		SellQuantity: raw.TotalSellQty,
	}, nil
}

// -----------------------------------------------------------------------------

// IndexView keeps only the price fields served on the indices feed.
func IndexView(t models.MNormalizedTick) models.MIndexTick {
	return models.MIndexTick{
		Type:      t.Type,
		Name:      t.Name,
		Symbol:    t.Symbol,
		LTP:       t.LTP,
		ChangePct: t.ChangePct,
		Change:    t.Change,
	}
}

// -----------------------------------------------------------------------------

// RawView adds OHLC and the exchange time in IST to a normalized tick.
func RawView(ev models.MTickEvent) models.MRawFeedTick {
	ts := ""
	if ev.Raw.ExchangeTimestampMs > 0 {
		ts = time.UnixMilli(ev.Raw.ExchangeTimestampMs).In(istLocation).Format("2006-01-02 15:04:05")
	}
	return models.MRawFeedTick{
		MNormalizedTick: ev.Normalized,
		Token:           ev.Raw.Token,
		Open:            formatPrice(ev.Raw.OpenPaise),
		High:            formatPrice(ev.Raw.HighPaise),
		Low:             formatPrice(ev.Raw.LowPaise),
		Close:           formatPrice(ev.Raw.ClosedPricePaise),
		Timestamp:       ts,
	}
}
