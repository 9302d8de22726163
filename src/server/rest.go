package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"market-relay/src/analysis"
	"market-relay/src/models"
	"market-relay/src/utils"

	"github.com/gin-gonic/gin"
)

// Defaults of the historical-data endpoint.
const (
	defaultExchange = "NSE"
	defaultToken    = "1333"
	defaultInterval = "ONE_DAY"
)

// -----------------------------------------------------------------------------

// getHistoricalData serves day-wise bars with the previous day's close and
// the percentage change against it.
func (s *RelayServer) getHistoricalData(c *gin.Context) {
	exchange := c.DefaultQuery("exchange", defaultExchange)
	token := c.DefaultQuery("token", defaultToken)
	interval := strings.ToUpper(c.DefaultQuery("timeperiod", defaultInterval))

	to := s.now().In(utils.IST())
	from := to.AddDate(0, 0, -s.Config.Relay.HistoricalDays)

	candles, err := s.deps.Candles.Candles(c.Request.Context(), exchange, token, interval, from, to)
	if err != nil {
		s.Logger.Error("Historic API failed for %s/%s: %v", exchange, token, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch historical data"})
		return
	}

	c.JSON(http.StatusOK, analysis.NewDailyResampler(utils.IST()).Resample(candles))
}

// -----------------------------------------------------------------------------

// getMarketData returns a full-quote snapshot of the stock universe.
func (s *RelayServer) getMarketData(c *gin.Context) {
	var tokens []string
	if s.deps.Refs != nil {
		tokens = s.deps.Refs.StockTokens()
	}
	if len(tokens) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stock universe not loaded"})
		return
	}

	res, err := s.deps.Quotes.Quotes(c.Request.Context(), map[string][]string{defaultExchange: tokens})
	if err != nil {
		s.Logger.Error("Market API failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch market data"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// -----------------------------------------------------------------------------

func (s *RelayServer) getFundamentalData(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	view, err := s.deps.Fundamentals.Snapshot(c.Request.Context(), symbol)
	if err != nil {
		s.Logger.Error("Fundamentals failed for %s: %v", symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch fundamental data"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// -----------------------------------------------------------------------------

func (s *RelayServer) importStocks(c *gin.Context) {
	if _, err := s.deps.Importer.ImportStocks(c.Request.Context()); err != nil {
		s.Logger.Error("Stock import failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stock data"})
		return
	}
	c.JSON(http.StatusOK, models.MClientMessage{Message: "Stock data imported successfully"})
}

// -----------------------------------------------------------------------------

func (s *RelayServer) importFinancials(c *gin.Context) {
	period := c.Param("period")
	if period != models.PeriodAnnual && period != models.PeriodQuarterly {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown period " + period})
		return
	}

	// The import walks the whole universe, so it is not bound to the request.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	n, err := s.deps.Importer.ImportFinancials(ctx, period)
	if err != nil {
		s.Logger.Error("Financial import (%s) failed: %v", period, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.MClientMessage{
		Message: fmt.Sprintf("Financial data for %s period imported or updated successfully, total updates: %d", period, n),
	})
}
