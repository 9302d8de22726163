package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"market-relay/src/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandlesPostsRangeAndParsesRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, candlePath, r.URL.Path)
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "NSE", body["exchange"])
		assert.Equal(t, "1333", body["symboltoken"])
		assert.Equal(t, "ONE_DAY", body["interval"])
		assert.Equal(t, "2024-01-01 09:15", body["fromdate"])
		assert.Equal(t, "2024-01-03 15:30", body["todate"])

		w.Write([]byte(`{"status":true,"message":"SUCCESS","errorcode":"","data":[
			["2024-01-01T00:00:00+05:30",1680.5,1690,1675.25,1688,5123400],
			["2024-01-02T00:00:00+05:30",1688,1700,1681,1695.1,6001234]
		]}`))
	}))
	defer srv.Close()

	client := NewMarketClient(testBroker(srv.URL), testNetwork(), NewSessionCache(&countingAuth{}, 0))
	from := time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC)
	to := time.Date(2024, 1, 3, 15, 30, 0, 0, time.UTC)

	candles, err := client.Candles(context.Background(), "NSE", "1333", "ONE_DAY", from, to)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 1680.5, candles[0].Open)
	assert.Equal(t, 1675.25, candles[0].Low)
	assert.Equal(t, int64(6001234), candles[1].Volume)
	assert.Equal(t, "2024-01-02", candles[1].Time.Format("2006-01-02"))
}

func TestCandlesRejectsUnknownInterval(t *testing.T) {
	client := NewMarketClient(testBroker("http://127.0.0.1:1"), testNetwork(), NewSessionCache(&countingAuth{}, 0))
	_, err := client.Candles(context.Background(), "NSE", "1333", "ONE_WEEK", time.Now(), time.Now())
	require.Error(t, err)
}

func TestSecureCallReauthenticatesOnTokenError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Write([]byte(`{"status":false,"message":"Invalid Token","errorcode":"AG8001","data":null}`))
			return
		}
		w.Write([]byte(`{"status":true,"message":"SUCCESS","errorcode":"","data":{"fetched":[{"exchange":"NSE","tradingSymbol":"HDFCBANK-EQ","symbolToken":"1333","ltp":1688.5}],"unfetched":[]}}`))
	}))
	defer srv.Close()

	auth := &countingAuth{}
	client := NewMarketClient(testBroker(srv.URL), testNetwork(), NewSessionCache(auth, 0))

	res, err := client.Quotes(context.Background(), map[string][]string{"NSE": {"1333"}})
	require.NoError(t, err)
	require.Len(t, res.Fetched, 1)
	assert.Equal(t, "HDFCBANK-EQ", res.Fetched[0].TradingSymbol)
	assert.Equal(t, int32(2), auth.calls.Load())
}

func TestSecureCallSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false,"message":"Invalid exchange","errorcode":"AB4008","data":null}`))
	}))
	defer srv.Close()

	client := NewMarketClient(testBroker(srv.URL), testNetwork(), NewSessionCache(&countingAuth{}, 0))
	_, err := client.Quotes(context.Background(), map[string][]string{"XYZ": {"1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AB4008")
	assert.False(t, helpers.IsAuthError(err))
}
