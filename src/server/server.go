package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/metrics"
	"market-relay/src/models"
	"market-relay/src/reference"
	"market-relay/src/relay"
	"market-relay/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Importer loads the stock universe and financials into storage.
type Importer interface {
	ImportStocks(ctx context.Context) (int, error)
	ImportFinancials(ctx context.Context, period string) (int, error)
}

// Deps are the collaborators behind the HTTP surface. Nil REST collaborators
// leave their routes unregistered.
type Deps struct {
	Registry     *relay.Registry
	Refs         *reference.Cache
	Candles      interfaces.ICandleFetcher
	Quotes       interfaces.IQuoteFetcher
	Fundamentals interfaces.IFundamentalsSource
	Importer     Importer
	Scheduler    *utils.MarketScheduler
}

// -----------------------------------------------------------------------------
// RelayServer
// -----------------------------------------------------------------------------

type RelayServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	deps   Deps
	engine *gin.Engine
	http   *http.Server

	feeds   []*feedEndpoint
	clients atomic.Int64
	now     func() time.Time
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewRelayServer(cfg *models.MConfig, deps Deps, log *logger.Logger) *RelayServer {
	if strings.ToUpper(cfg.LogLevel) != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &RelayServer{
		Config: cfg,
		Logger: log,
		deps:   deps,
		engine: gin.New(),
		now:    time.Now,
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.feeds = s.buildFeeds()
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *RelayServer) setupRoutes() {
	for _, f := range s.feeds {
		s.engine.GET(f.path, s.handleFeed(f))
	}

	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.deps.Candles != nil {
		s.engine.GET("/historical-data/", s.getHistoricalData)
	}
	if s.deps.Quotes != nil {
		s.engine.GET("/market-data/", s.getMarketData)
	}
	if s.deps.Fundamentals != nil {
		s.engine.GET("/fundamental-data/", s.getFundamentalData)
	}
	if s.deps.Importer != nil {
		s.engine.GET("/stocks-data/", s.importStocks)
		s.engine.GET("/financial-data/:period/", s.importFinancials)
	}
}

// Handler exposes the router, mainly for tests.
func (s *RelayServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves until Stop is called. It returns nil on a clean shutdown.
func (s *RelayServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Logger.Info("Starting server on %s", addr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop stops accepting requests. Hijacked websocket connections are closed by
// the registry shutdown that follows.
func (s *RelayServer) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// -----------------------------------------------------------------------------

func (s *RelayServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RESTRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		s.Logger.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

func (s *RelayServer) getHealth(c *gin.Context) {
	body := gin.H{
		"status":      "ok",
		"connections": s.clients.Load(),
		"sessions":    []relay.SessionInfo{},
	}
	if s.deps.Registry != nil {
		body["sessions"] = s.deps.Registry.Sessions()
	}
	if s.deps.Scheduler != nil {
		body["market"] = s.deps.Scheduler.Status()
	}
	c.JSON(http.StatusOK, body)
}
