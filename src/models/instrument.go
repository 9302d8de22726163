package models

// InstrumentClass tells stocks and indices apart in outbound ticks.
type InstrumentClass string

const (
	ClassStock InstrumentClass = "Stock"
	ClassIndex InstrumentClass = "Index"
)

// UnknownLabel is used as both name and symbol for tokens missing from reference data.
const UnknownLabel = "Unknown"

// MInstrumentRef is the static identity of one tradable token.
type MInstrumentRef struct {
	Token        string          `json:"token"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	ExchangeType int             `json:"exchange_type"`
	Class        InstrumentClass `json:"class"`
}

// UnknownInstrument returns the sentinel reference for an unrecognized token.
// Anything outside the stock universe is reported as an index.
func UnknownInstrument(token string) MInstrumentRef {
	return MInstrumentRef{
		Token:  token,
		Symbol: UnknownLabel,
		Name:   UnknownLabel,
		Class:  ClassIndex,
	}
}

// MIndexListing is one row of an NSE index constituents CSV.
type MIndexListing struct {
	CompanyName string
	Industry    string
	Symbol      string
	Series      string
	ISIN        string
}

// MScripMasterEntry is one element of the Angel One instrument master JSON.
type MScripMasterEntry struct {
	Token          string `json:"token"`
	Symbol         string `json:"symbol"`
	Name           string `json:"name"`
	Expiry         string `json:"expiry"`
	Strike         string `json:"strike"`
	LotSize        string `json:"lotsize"`
	InstrumentType string `json:"instrumenttype"`
	ExchSeg        string `json:"exch_seg"`
	TickSize       string `json:"tick_size"`
}
