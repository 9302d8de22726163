package models

// MRawTick is one decoded binary frame. Prices are integer paise.
type MRawTick struct {
	Mode                 int
	ExchangeType         int
	Token                string
	SequenceNumber       int64
	ExchangeTimestampMs  int64
	LastTradedPricePaise int64
	LastTradedQty        int64
	AvgTradedPricePaise  int64
	DayVolume            int64
	TotalBuyQty          int64
	TotalSellQty         int64
	OpenPaise            int64
	HighPaise            int64
	LowPaise             int64
	ClosedPricePaise     int64
}

// MNormalizedTick is the enriched tick pushed to downstream clients.
type MNormalizedTick struct {
	Type         InstrumentClass `json:"Type"`
	Name         string          `json:"Name"`
	Symbol       string          `json:"Symbol"`
	LTP          string          `json:"LTP"`
	ChangePct    string          `json:"Change %"`
	Change       string          `json:"Change"`
	Volume       int64           `json:"Volume"`
	BuyQuantity  int64           `json:"Buy Quantity"`
	SellQuantity int64           `json:"Sell Quantity"`
}

// MIndexTick is the payload of the indices-only feed.
type MIndexTick struct {
	Type      InstrumentClass `json:"Type"`
	Name      string          `json:"Name"`
	Symbol    string          `json:"Symbol"`
	LTP       string          `json:"LTP"`
	ChangePct string          `json:"Change %"`
	Change    string          `json:"Change"`
}

// MRawFeedTick adds the session OHLC and exchange time to a normalized tick.
type MRawFeedTick struct {
	MNormalizedTick
	Token     string `json:"Token"`
	Open      string `json:"Open"`
	High      string `json:"High"`
	Low       string `json:"Low"`
	Close     string `json:"Close"`
	Timestamp string `json:"Timestamp"`
}

// MTickEvent is what a feed session fans out: the decoded frame plus its normalized form.
type MTickEvent struct {
	Raw        MRawTick
	Normalized MNormalizedTick
}
