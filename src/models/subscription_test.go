package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionKeyIsCanonical(t *testing.T) {
	a := MSubscriptionSpec{Mode: ModeQuote, Segments: []MTokenGroup{
		{ExchangeType: ExchangeBSECM, Tokens: []string{"99919000"}},
		{ExchangeType: ExchangeNSECM, Tokens: []string{"2885", "1333"}},
	}}
	b := MSubscriptionSpec{CorrelationID: "x", Mode: ModeQuote, Segments: []MTokenGroup{
		{ExchangeType: ExchangeNSECM, Tokens: []string{"1333"}},
		{ExchangeType: ExchangeNSECM, Tokens: []string{"2885", "1333"}},
		{ExchangeType: ExchangeBSECM, Tokens: []string{"99919000"}},
	}}

	assert.Equal(t, "m2|1:1333,2885|3:99919000", a.Key())
	assert.Equal(t, a.Key(), b.Key())

	c := a
	c.Mode = ModeLTP
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestSubscribeRequestWireFormat(t *testing.T) {
	spec := MSubscriptionSpec{CorrelationID: "nifty50_full", Mode: ModeQuote, Segments: []MTokenGroup{
		{ExchangeType: ExchangeNSECM, Tokens: []string{"2885"}},
	}}

	b, err := json.Marshal(spec.SubscribeRequest(ActionSubscribe))
	require.NoError(t, err)
	assert.JSONEq(t, `{"correlationID":"nifty50_full","action":1,"params":{"mode":2,"tokenList":[{"exchangeType":1,"tokens":["2885"]}]}}`, string(b))
}
