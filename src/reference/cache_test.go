package reference

import (
	"context"
	"errors"
	"strings"
	"testing"

	"market-relay/src/helpers"
	"market-relay/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const niftyCSV = "Company Name,Industry,Symbol,Series,ISIN Code\n" +
	"Reliance Industries Ltd.,Oil Gas & Consumable Fuels,RELIANCE,EQ,INE002A01018\n" +
	"HDFC Bank Ltd.,Financial Services,HDFCBANK,EQ,INE040A01034\n"

var master = []models.MScripMasterEntry{
	{Token: "2885", Symbol: "RELIANCE-EQ", Name: "RELIANCE", ExchSeg: "NSE"},
	{Token: "1333", Symbol: "HDFCBANK-EQ", Name: "HDFCBANK", ExchSeg: "NSE"},
	{Token: "500325", Symbol: "RELIANCE", Name: "RELIANCE", ExchSeg: "BSE"},
	{Token: "3045", Symbol: "SBIN-EQ", Name: "SBIN", ExchSeg: "NSE"},
	{Token: "99999", Symbol: "RELIANCE24DECFUT", Name: "RELIANCE", ExchSeg: "NFO"},
}

type fakeLoader struct {
	csv       string
	master    []models.MScripMasterEntry
	masterErr error
}

func (f *fakeLoader) IndexListing(ctx context.Context, url string) ([]models.MIndexListing, error) {
	l, err := ParseIndexListing(strings.NewReader(f.csv))
	if err != nil {
		return nil, helpers.NewReferenceDataError("parse", err)
	}
	return l, nil
}

func (f *fakeLoader) ScripMaster(ctx context.Context) ([]models.MScripMasterEntry, error) {
	return f.master, f.masterErr
}

func TestLoadJoinsListingAndMaster(t *testing.T) {
	cache, err := Load(context.Background(), &fakeLoader{csv: niftyCSV, master: master}, "unused")
	require.NoError(t, err)

	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, []string{"1333", "2885"}, cache.StockTokens())

	ref := cache.Lookup("2885")
	assert.Equal(t, models.ClassStock, ref.Class)
	assert.Equal(t, "RELIANCE", ref.Symbol)
	assert.Equal(t, "Reliance Industries Ltd.", ref.Name)
}

func TestLookupFallsBackToIndexThenUnknown(t *testing.T) {
	cache := NewCache(nil)

	nifty := cache.Lookup("99926000")
	assert.Equal(t, models.ClassIndex, nifty.Class)
	assert.Equal(t, "Nifty 50", nifty.Symbol)
	assert.Equal(t, "NIFTY", nifty.Name)

	sensex := cache.Lookup("99919000")
	assert.Equal(t, models.ExchangeBSECM, sensex.ExchangeType)

	unknown := cache.Lookup("424242")
	assert.Equal(t, models.ClassIndex, unknown.Class)
	assert.Equal(t, "Unknown", unknown.Symbol)
	assert.Equal(t, "Unknown", unknown.Name)
	assert.Equal(t, "424242", unknown.Token)
}

func TestLookupOnNilCache(t *testing.T) {
	var cache *Cache
	assert.Equal(t, models.ClassIndex, cache.Lookup("99926009").Class)
}

func TestLoadFailuresAreReferenceDataErrors(t *testing.T) {
	_, err := Load(context.Background(), &fakeLoader{csv: niftyCSV, masterErr: helpers.NewReferenceDataError("down", errors.New("503"))}, "")
	var refErr *helpers.ReferenceDataError
	assert.True(t, errors.As(err, &refErr))

	_, err = Load(context.Background(), &fakeLoader{csv: "", master: master}, "")
	assert.True(t, errors.As(err, &refErr))

	_, err = Load(context.Background(), &fakeLoader{csv: niftyCSV, master: nil}, "")
	assert.True(t, errors.As(err, &refErr))
}

func TestParseIndexListingHandlesBOM(t *testing.T) {
	rows, err := ParseIndexListing(strings.NewReader("\ufeff" + niftyCSV))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "INE040A01034", rows[1].ISIN)
	assert.Equal(t, "Financial Services", rows[1].Industry)
}

func TestSpecs(t *testing.T) {
	idx := IndicesSpec("indices", models.ModeQuote)
	assert.Equal(t, 4, idx.TokenCount())
	assert.True(t, idx.Contains(models.ExchangeBSECM, "99919000"))
	assert.False(t, idx.Contains(models.ExchangeNSECM, "99919000"))

	cache := NewCache([]models.MInstrumentRef{{Token: "2885", Symbol: "RELIANCE"}})
	full := cache.UniverseSpec("nifty50_full", models.ModeQuote)
	assert.Equal(t, 5, full.TokenCount())
	assert.True(t, full.Contains(models.ExchangeNSECM, "2885"))
	assert.True(t, full.Contains(models.ExchangeNSECM, "99926011"))
}
