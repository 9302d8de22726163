package reference

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/models"
)

// CSV headers of the NSE index constituents files.
const (
	colCompanyName = "Company Name"
	colIndustry    = "Industry"
	colSymbol      = "Symbol"
	colSeries      = "Series"
	colISIN        = "ISIN Code"
)

// -----------------------------------------------------------------------------

// HTTPLoader fetches reference data over the network manager.
type HTTPLoader struct {
	Network             interfaces.INetworkManager
	InstrumentMasterURL string
}

// -----------------------------------------------------------------------------

func NewHTTPLoader(nm interfaces.INetworkManager, cfg models.MReferenceConfig) *HTTPLoader {
	return &HTTPLoader{
		Network:             nm,
		InstrumentMasterURL: cfg.InstrumentMasterURL,
	}
}

// -----------------------------------------------------------------------------

func (l *HTTPLoader) IndexListing(ctx context.Context, url string) ([]models.MIndexListing, error) {
	body, err := l.Network.Get(ctx, url, nil)
	if err != nil {
		return nil, helpers.NewReferenceDataError("failed to fetch index list", err)
	}

	listings, err := ParseIndexListing(bytes.NewReader(body))
	if err != nil {
		return nil, helpers.NewReferenceDataError("failed to parse index list", err)
	}
	return listings, nil
}

// -----------------------------------------------------------------------------

func (l *HTTPLoader) ScripMaster(ctx context.Context) ([]models.MScripMasterEntry, error) {
	body, err := l.Network.Get(ctx, l.InstrumentMasterURL, nil)
	if err != nil {
		return nil, helpers.NewReferenceDataError("failed to fetch instrument master", err)
	}

	var entries []models.MScripMasterEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, helpers.NewReferenceDataError("failed to parse instrument master", err)
	}
	return entries, nil
}

// -----------------------------------------------------------------------------

// ParseIndexListing reads an NSE constituents CSV. Columns are located by
// header name; extra columns are ignored.
func ParseIndexListing(r io.Reader) ([]models.MIndexListing, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := idx[colSymbol]; !ok {
		return nil, fmt.Errorf("column %q not found", colSymbol)
	}

	field := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []models.MIndexListing
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		symbol := field(rec, colSymbol)
		if symbol == "" {
			continue
		}
		out = append(out, models.MIndexListing{
			CompanyName: field(rec, colCompanyName),
			Industry:    field(rec, colIndustry),
			Symbol:      symbol,
			Series:      field(rec, colSeries),
			ISIN:        field(rec, colISIN),
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	return out, nil
}
