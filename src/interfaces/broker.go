package interfaces

import (
	"context"
	"time"

	"market-relay/src/models"
)

// -----------------------------------------------------------------------------
// IAuthenticator mints broker sessions from long-lived credentials.
// -----------------------------------------------------------------------------

type IAuthenticator interface {
	Authenticate(ctx context.Context) (models.MBrokerSession, error)
}

// -----------------------------------------------------------------------------
// ISessionProvider hands out the process-wide broker session.
// -----------------------------------------------------------------------------

type ISessionProvider interface {

	// Session returns the cached session, authenticating on first use.
	Session(ctx context.Context) (models.MBrokerSession, error)

	// -----------------------------------------------------------------------------

	// Invalidate drops the cached session so the next call re-authenticates.
	Invalidate()
}

// -----------------------------------------------------------------------------
// IFeedDialer opens streaming connections to the broker push feed.
// -----------------------------------------------------------------------------

type IFeedDialer interface {
	Dial(ctx context.Context, session models.MBrokerSession) (IFeedConn, error)
}

// -----------------------------------------------------------------------------
// IFeedConn is one open streaming connection.
// -----------------------------------------------------------------------------

type IFeedConn interface {

	// Send writes a control request (subscribe / unsubscribe).
	Send(req models.MStreamRequest) error

	// -----------------------------------------------------------------------------

	// ReadFrame blocks until the next binary data frame arrives.
	ReadFrame() ([]byte, error)

	// -----------------------------------------------------------------------------

	Close() error
}

// -----------------------------------------------------------------------------
// ICandleFetcher and IQuoteFetcher are the REST collaborators.
// -----------------------------------------------------------------------------

type ICandleFetcher interface {
	Candles(ctx context.Context, exchange, token, interval string, from, to time.Time) ([]models.MCandle, error)
}

type IQuoteFetcher interface {
	Quotes(ctx context.Context, exchangeTokens map[string][]string) (models.MQuoteResult, error)
}

// -----------------------------------------------------------------------------
// ITickDecoder parses one binary frame of the push feed.
// -----------------------------------------------------------------------------

type ITickDecoder interface {
	Decode(frame []byte) (models.MRawTick, error)
}

// -----------------------------------------------------------------------------
// IInstrumentLookup resolves tokens to reference data. It never fails.
// -----------------------------------------------------------------------------

type IInstrumentLookup interface {
	Lookup(token string) models.MInstrumentRef
}
