package broker

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"market-relay/src/helpers"
	"market-relay/src/models"
)

// Frame sizes and field offsets of the SmartAPI binary stream. All integers
// are little-endian.
const (
	LTPPacketSize   = 51
	QuotePacketSize = 123

	offMode      = 0
	offExchange  = 1
	offToken     = 2
	tokenLen     = 25
	offSequence  = 27
	offTimestamp = 35
	offLTP       = 43
	offLastQty   = 51
	offAvgPrice  = 59
	offVolume    = 67
	offTotalBuy  = 75
	offTotalSell = 83
	offOpen      = 91
	offHigh      = 99
	offLow       = 107
	offClose     = 115
)

// Decoder parses LTP, Quote and SnapQuote frames. Depth frames are rejected.
type Decoder struct{}

// -----------------------------------------------------------------------------

func (Decoder) Decode(frame []byte) (models.MRawTick, error) {
	var t models.MRawTick

	if len(frame) < LTPPacketSize {
		return t, helpers.NewDecodeError(fmt.Sprintf("frame too short: %d bytes", len(frame)), nil)
	}

	t.Mode = int(frame[offMode])
	t.ExchangeType = int(frame[offExchange])
	t.Token = string(bytes.TrimRight(cString(frame[offToken:offToken+tokenLen]), " "))
	t.SequenceNumber = i64(frame, offSequence)
	t.ExchangeTimestampMs = i64(frame, offTimestamp)
	t.LastTradedPricePaise = i64(frame, offLTP)

	switch t.Mode {
	case models.ModeLTP:
		return t, nil
	case models.ModeQuote, models.ModeSnapQuote:
	default:
		return t, helpers.NewDecodeError(fmt.Sprintf("unsupported mode %d", t.Mode), nil)
	}

	if len(frame) < QuotePacketSize {
		return t, helpers.NewDecodeError(fmt.Sprintf("quote frame too short: %d bytes", len(frame)), nil)
	}

	t.LastTradedQty = i64(frame, offLastQty)
	t.AvgTradedPricePaise = i64(frame, offAvgPrice)
	t.DayVolume = i64(frame, offVolume)
	t.TotalBuyQty = int64(f64(frame, offTotalBuy))
	t.TotalSellQty = int64(f64(frame, offTotalSell))
	t.OpenPaise = i64(frame, offOpen)
	t.HighPaise = i64(frame, offHigh)
	t.LowPaise = i64(frame, offLow)
	t.ClosedPricePaise = i64(frame, offClose)

	return t, nil
}

// -----------------------------------------------------------------------------

func cString(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

func i64(b []byte, off int) int64 {
	return int64(binary.LittleEndian.Uint64(b[off : off+8]))
}

func f64(b []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[off : off+8]))
}
