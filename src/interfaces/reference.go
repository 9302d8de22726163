package interfaces

import (
	"context"

	"market-relay/src/models"
)

// -----------------------------------------------------------------------------
// IReferenceLoader fetches static instrument data from external sources.
// -----------------------------------------------------------------------------

type IReferenceLoader interface {

	// IndexListing downloads the constituents CSV at url.
	IndexListing(ctx context.Context, url string) ([]models.MIndexListing, error)

	// -----------------------------------------------------------------------------

	// ScripMaster downloads the broker instrument master.
	ScripMaster(ctx context.Context) ([]models.MScripMasterEntry, error)
}

// -----------------------------------------------------------------------------
// IFundamentalsSource provides company financials.
// -----------------------------------------------------------------------------

type IFundamentalsSource interface {

	// Snapshot returns headline ratios for one ticker.
	Snapshot(ctx context.Context, ticker string) (models.MFundamentalView, error)

	// -----------------------------------------------------------------------------

	// Financials returns dated metric values for one ticker and period.
	Financials(ctx context.Context, ticker, period string) ([]models.MMetricPoint, error)
}
