package models

import "time"

// MBrokerSession is the short-lived credential pair minted by login.
type MBrokerSession struct {
	AuthToken    string
	FeedToken    string
	RefreshToken string
	IssuedAt     time.Time
}

// MCandle is one row of the historical candle API.
type MCandle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// MDailyBar is a day-wise candle with the previous trading day's close.
type MDailyBar struct {
	Date     string   `json:"Date"`
	Open     float64  `json:"Open"`
	High     float64  `json:"High"`
	Low      float64  `json:"Low"`
	Close    float64  `json:"Close"`
	Volume   int64    `json:"Volume"`
	PTDClose *float64 `json:"PTD_Close"`
	Change   *float64 `json:"Change"`
}

// MQuote is one entry of a full-mode market quote.
type MQuote struct {
	Exchange      string  `json:"exchange"`
	TradingSymbol string  `json:"tradingSymbol"`
	SymbolToken   string  `json:"symbolToken"`
	LTP           float64 `json:"ltp"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	LastTradeQty  int64   `json:"lastTradeQty"`
	ExchFeedTime  string  `json:"exchFeedTime"`
	ExchTradeTime string  `json:"exchTradeTime"`
	NetChange     float64 `json:"netChange"`
	PercentChange float64 `json:"percentChange"`
	AvgPrice      float64 `json:"avgPrice"`
	TradeVolume   int64   `json:"tradeVolume"`
	OpenInterest  int64   `json:"opnInterest"`
	LowerCircuit  float64 `json:"lowerCircuit"`
	UpperCircuit  float64 `json:"upperCircuit"`
	TotBuyQuan    int64   `json:"totBuyQuan"`
	TotSellQuan   int64   `json:"totSellQuan"`
	WeekLow52     float64 `json:"52WeekLow"`
	WeekHigh52    float64 `json:"52WeekHigh"`
}

// MQuoteResult groups fetched quotes and the tokens the broker could not resolve.
type MQuoteResult struct {
	Fetched   []MQuote                 `json:"fetched"`
	Unfetched []map[string]interface{} `json:"unfetched"`
}

// MClientMessage is the {"message": ...} envelope. Websocket clients send it
// and the import endpoints answer with it.
type MClientMessage struct {
	Message string `json:"message"`
}
