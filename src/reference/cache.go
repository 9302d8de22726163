package reference

import (
	"context"
	"sort"
	"strings"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/models"
)

const equitySuffix = "-EQ"

// indexTable holds the benchmark indices streamed alongside the stock universe.
var indexTable = map[string]models.MInstrumentRef{
	"99926000": {Token: "99926000", Symbol: "Nifty 50", Name: "NIFTY", ExchangeType: models.ExchangeNSECM, Class: models.ClassIndex},
	"99926009": {Token: "99926009", Symbol: "Nifty Bank", Name: "BANKNIFTY", ExchangeType: models.ExchangeNSECM, Class: models.ClassIndex},
	"99926011": {Token: "99926011", Symbol: "NIFTY MIDCAP 100", Name: "NIFTY MIDCAP", ExchangeType: models.ExchangeNSECM, Class: models.ClassIndex},
	"99919000": {Token: "99919000", Symbol: "Sensex", Name: "SENSEX", ExchangeType: models.ExchangeBSECM, Class: models.ClassIndex},
}

// -----------------------------------------------------------------------------

// Cache maps tokens to instrument references. It is immutable once built and
// safe for concurrent readers without locking.
type Cache struct {
	stocks  map[string]models.MInstrumentRef
	ordered []models.MInstrumentRef
}

// -----------------------------------------------------------------------------

// Load fetches the index list and the instrument master and joins them.
func Load(ctx context.Context, loader interfaces.IReferenceLoader, indexListURL string) (*Cache, error) {
	listings, err := loader.IndexListing(ctx, indexListURL)
	if err != nil {
		return nil, err
	}

	master, err := loader.ScripMaster(ctx)
	if err != nil {
		return nil, err
	}

	cache := Build(listings, master)
	if len(cache.stocks) == 0 {
		return nil, helpers.NewReferenceDataError("no index constituents matched the instrument master", nil)
	}
	return cache, nil
}

// -----------------------------------------------------------------------------

// Build keeps NSE equity entries of the master whose trimmed symbol appears in
// the listing.
func Build(listings []models.MIndexListing, master []models.MScripMasterEntry) *Cache {
	companies := make(map[string]string, len(listings))
	for _, l := range listings {
		companies[l.Symbol] = l.CompanyName
	}

	c := &Cache{stocks: make(map[string]models.MInstrumentRef)}
	for _, e := range master {
		if e.ExchSeg != "NSE" || !strings.Contains(e.Symbol, equitySuffix) {
			continue
		}
		symbol := strings.Replace(e.Symbol, equitySuffix, "", 1)
		company, ok := companies[symbol]
		if !ok {
			continue
		}
		if _, dup := c.stocks[e.Token]; dup {
			continue
		}

		name := company
		if name == "" {
			name = e.Name
		}
		ref := models.MInstrumentRef{
			Token:        e.Token,
			Symbol:       symbol,
			Name:         name,
			ExchangeType: models.ExchangeNSECM,
			Class:        models.ClassStock,
		}
		c.stocks[e.Token] = ref
		c.ordered = append(c.ordered, ref)
	}

	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].Symbol < c.ordered[j].Symbol })
	return c
}

// -----------------------------------------------------------------------------

// NewCache builds a cache directly from stock references. Used by tests and tools.
func NewCache(stocks []models.MInstrumentRef) *Cache {
	c := &Cache{stocks: make(map[string]models.MInstrumentRef, len(stocks))}
	for _, s := range stocks {
		s.Class = models.ClassStock
		if s.ExchangeType == 0 {
			s.ExchangeType = models.ExchangeNSECM
		}
		c.stocks[s.Token] = s
		c.ordered = append(c.ordered, s)
	}
	return c
}

// -----------------------------------------------------------------------------

// Lookup never fails: stocks first, then the index table, then the Unknown sentinel.
func (c *Cache) Lookup(token string) models.MInstrumentRef {
	if c != nil {
		if ref, ok := c.stocks[token]; ok {
			return ref
		}
	}
	if ref, ok := indexTable[token]; ok {
		return ref
	}
	return models.UnknownInstrument(token)
}

// -----------------------------------------------------------------------------

// StockTokens returns the stock universe tokens ordered by symbol.
func (c *Cache) StockTokens() []string {
	tokens := make([]string, 0, len(c.ordered))
	for _, s := range c.ordered {
		tokens = append(tokens, s.Token)
	}
	return tokens
}

// -----------------------------------------------------------------------------

func (c *Cache) Len() int {
	return len(c.stocks)
}

// -----------------------------------------------------------------------------

// IndexTokens returns the benchmark index tokens on one exchange segment.
func IndexTokens(exchangeType int) []string {
	var out []string
	for token, ref := range indexTable {
		if ref.ExchangeType == exchangeType {
			out = append(out, token)
		}
	}
	sort.Strings(out)
	return out
}
