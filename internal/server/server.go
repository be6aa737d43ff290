// Package server exposes the HTTP API: trade submission, adjustment, request
// status and cancel.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/golighter/internal/dispatch"
	"github.com/betbot/golighter/internal/domain"
	"github.com/betbot/golighter/internal/health"
	"github.com/betbot/golighter/internal/services"
)

var log = logrus.WithField("component", "server")

// Server wires the trading service behind gin.
type Server struct {
	trading *services.TradingService
	monitor *health.Monitor
	apiKey  string
	engine  *gin.Engine
	httpSrv *http.Server
}

func New(trading *services.TradingService, monitor *health.Monitor, apiKey string) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		trading: trading,
		monitor: monitor,
		apiKey:  apiKey,
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	api.Use(s.authMiddleware())
	{
		api.POST("/trade", s.requireHealthy(), s.handleTrade)
		api.POST("/adjust", s.requireHealthy(), s.handleAdjust)
		api.GET("/requests/:requestID", s.handleRequestStatus)
		api.DELETE("/requests/:requestID", s.handleRequestCancel)
		api.POST("/accounts/:accountIndex/resume", s.handleAccountResume)
	}

	s.engine = r
	return s
}

// Start serves until ctx is done, then shuts down with the given grace period.
func (s *Server) Start(listenAddr string) error {
	s.httpSrv = &http.Server{Addr: listenAddr, Handler: s.engine}
	log.Infof("listening on %s", listenAddr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// authMiddleware checks the API key when one is configured. Accepts either
// "Authorization: Bearer <key>" or "X-API-Key: <key>".
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey == "" {
			c.Next()
			return
		}
		provided := c.GetHeader("X-API-Key")
		if provided == "" {
			provided = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}

// requireHealthy refuses new submissions while the exchange is unreachable.
func (s *Server) requireHealthy() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.monitor.Healthy() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":  "exchange unreachable",
				"detail": s.monitor.LastError(),
			})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if !s.monitor.Healthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":      status,
		"api_healthy": s.monitor.Healthy(),
	})
}

type tradeRequest struct {
	RequestID              string  `json:"request_id"`
	AccountIndex           int     `json:"account_index"`
	MarketID               *int    `json:"market_id"`
	Symbol                 string  `json:"symbol"`
	TradeType              string  `json:"trade_type" binding:"required"`
	ReferencePositionRatio float64 `json:"reference_position_ratio"`
}

func (s *Server) handleTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body: " + err.Error()})
		return
	}
	if req.MarketID == nil && strings.TrimSpace(req.Symbol) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either market_id or symbol must be provided"})
		return
	}
	intent := &domain.TradeIntent{
		RequestID:              strings.TrimSpace(req.RequestID),
		AccountIndex:           req.AccountIndex,
		Symbol:                 req.Symbol,
		TradeType:              domain.TradeType(strings.ToLower(req.TradeType)),
		ReferencePositionRatio: req.ReferencePositionRatio,
	}
	if req.MarketID != nil {
		intent.MarketID = *req.MarketID
	}
	requestID, err := s.trading.SubmitTrade(c.Request.Context(), intent)
	if err != nil {
		s.writeSubmitError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": requestID, "status": string(domain.StateQueued)})
}

type adjustRequest struct {
	RequestID      string  `json:"request_id"`
	AccountIndex   int     `json:"account_index"`
	MarketID       *int    `json:"market_id"`
	Symbol         string  `json:"symbol"`
	AdjustmentType string  `json:"adjustment_type" binding:"required"`
	Percentage     float64 `json:"percentage"`
}

func (s *Server) handleAdjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body: " + err.Error()})
		return
	}
	if req.MarketID == nil && strings.TrimSpace(req.Symbol) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either market_id or symbol must be provided"})
		return
	}
	intent := &domain.AdjustIntent{
		RequestID:    strings.TrimSpace(req.RequestID),
		AccountIndex: req.AccountIndex,
		Symbol:       req.Symbol,
		Adjustment:   domain.AdjustmentType(strings.ToLower(req.AdjustmentType)),
		Percentage:   req.Percentage,
	}
	if req.MarketID != nil {
		intent.MarketID = *req.MarketID
	}
	requestID, err := s.trading.SubmitAdjustment(c.Request.Context(), intent)
	if err != nil {
		s.writeSubmitError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": requestID, "status": string(domain.StateQueued)})
}

func (s *Server) handleRequestStatus(c *gin.Context) {
	rec, err := s.trading.RequestStatus(c.Param("requestID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleRequestCancel(c *gin.Context) {
	requestID := c.Param("requestID")
	if err := s.trading.CancelRequest(requestID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "request is not queued"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": requestID, "status": string(domain.StateCanceled)})
}

// handleAccountResume clears a tripped circuit breaker so the account trades
// again without a restart.
func (s *Server) handleAccountResume(c *gin.Context) {
	accountIndex, err := strconv.Atoi(c.Param("accountIndex"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account index"})
		return
	}
	if err := s.trading.ResumeAccount(accountIndex); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_index": accountIndex, "status": "resumed"})
}

func (s *Server) writeSubmitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dispatch.ErrDuplicateRequest):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate request id"})
	case errors.Is(err, dispatch.ErrBackpressure):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "account queue full, retry later"})
	case errors.Is(err, dispatch.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
	case errors.Is(err, services.ErrUnknownAccount), errors.Is(err, services.ErrInvalidIntent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
