// Package server exposes the HTTP and WebSocket surface of the exchange.
package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/velocex/velocex/internal/bookkeeper"
	"github.com/velocex/velocex/internal/depth"
	"github.com/velocex/velocex/internal/notify"
	"github.com/velocex/velocex/internal/orders"
	"github.com/velocex/velocex/internal/trades"
)

// Server wires the service layer to HTTP routes.
type Server struct {
	logger        *zap.Logger
	bookkeeperSvc bookkeeper.BookkeeperService
	ordersSvc     orders.OrderService
	tradeLedger   trades.TradeLedger
	depthCache    *depth.Cache
	hub           *notify.Hub
}

// NewServer creates the HTTP server.
func NewServer(
	logger *zap.Logger,
	bookkeeperSvc bookkeeper.BookkeeperService,
	ordersSvc orders.OrderService,
	tradeLedger trades.TradeLedger,
	depthCache *depth.Cache,
	hub *notify.Hub,
) *Server {
	return &Server{
		logger:        logger,
		bookkeeperSvc: bookkeeperSvc,
		ordersSvc:     ordersSvc,
		tradeLedger:   tradeLedger,
		depthCache:    depthCache,
		hub:           hub,
	}
}

// Router creates the HTTP router.
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	router.Use(ginzap.Ginzap(s.logger, "2006-01-02T15:04:05Z07:00", true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(cors.Default())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Trade notifications stream, scoped to the identified user.
	router.GET("/ws", s.userMiddleware(), s.handleWebSocket)

	api := router.Group("/api")
	{
		v1 := api.Group("/v1", s.userMiddleware())
		{
			v1.POST("/orders", s.handlePlaceOrder)
			v1.GET("/orders", s.handleGetOrders)
			v1.GET("/orders/:id", s.handleGetOrder)

			v1.GET("/accounts", s.handleGetAccount)
			v1.GET("/holdings", s.handleGetHoldings)
			v1.POST("/deposits", s.handleDeposit)

			v1.GET("/trades", s.handleGetTrades)
			v1.GET("/depth/:symbol", s.handleGetDepth)
		}
	}

	return router
}

// writeError writes a JSON error response with a mapped status.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, bookkeeper.ErrAccountNotFound),
		errors.Is(err, depth.ErrNotAvailable):
		status = http.StatusNotFound
	case errors.Is(err, bookkeeper.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// userMiddleware resolves the calling user from the X-User-ID header.
// Sessions and token auth are out of scope for this deployment; the header
// is trusted because the service sits behind the gateway.
func (s *Server) userMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
			c.Abort()
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid X-User-ID header"})
			c.Abort()
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

func userID(c *gin.Context) uuid.UUID {
	return c.MustGet("userID").(uuid.UUID)
}

// placeOrderPayload is the wire shape of an order submission. Decimal
// fields arrive as strings to avoid float rounding at the boundary.
type placeOrderPayload struct {
	CryptocurrencyID string `json:"cryptocurrency_id" binding:"required,uuid"`
	Side             string `json:"side" binding:"required,oneof=buy sell"`
	Type             string `json:"type" binding:"required,oneof=limit market"`
	Price            string `json:"price"`
	Quantity         string `json:"quantity"`
	NotionalValue    string `json:"notional_value"`
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// handlePlaceOrder accepts a limit or market order.
func (s *Server) handlePlaceOrder(c *gin.Context) {
	var payload placeOrderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := orders.PlaceOrderRequest{
		UserID:           userID(c),
		CryptocurrencyID: uuid.MustParse(payload.CryptocurrencyID),
		Side:             payload.Side,
		Type:             payload.Type,
	}
	var err error
	if req.Price, err = parseDecimal(payload.Price); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
		return
	}
	if req.Quantity, err = parseDecimal(payload.Quantity); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
		return
	}
	if req.NotionalValue, err = parseDecimal(payload.NotionalValue); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notional_value"})
		return
	}

	order, err := s.ordersSvc.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// handleGetOrders lists the caller's most recent orders.
func (s *Server) handleGetOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := s.ordersSvc.GetOrders(c.Request.Context(), userID(c), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

// handleGetOrder returns one order owned by the caller.
func (s *Server) handleGetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	order, err := s.ordersSvc.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if order.UserID != userID(c) {
		s.writeError(c, orders.ErrOrderNotFound)
		return
	}
	c.JSON(http.StatusOK, order)
}

// handleGetAccount returns the caller's fiat account.
func (s *Server) handleGetAccount(c *gin.Context) {
	account, err := s.bookkeeperSvc.GetAccount(c.Request.Context(), userID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// handleGetHoldings returns the caller's cryptocurrency holdings.
func (s *Server) handleGetHoldings(c *gin.Context) {
	holdings, err := s.bookkeeperSvc.GetHoldings(c.Request.Context(), userID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"holdings": holdings})
}

type depositPayload struct {
	Amount string `json:"amount" binding:"required"`
}

// handleDeposit credits the caller's fiat account.
func (s *Server) handleDeposit(c *gin.Context) {
	var payload depositPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil || amount.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive decimal"})
		return
	}
	account, err := s.bookkeeperSvc.Deposit(c.Request.Context(), userID(c), amount)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// handleGetTrades lists the caller's trades, newest first.
func (s *Server) handleGetTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := s.tradeLedger.ListByUser(c.Request.Context(), userID(c), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": list})
}

// handleGetDepth returns the cached ladder for one market symbol.
func (s *Server) handleGetDepth(c *gin.Context) {
	snapshot, err := s.depthCache.Snapshot(c.Param("symbol"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleWebSocket upgrades the connection and registers it with the
// notification hub under the caller's user id.
func (s *Server) handleWebSocket(c *gin.Context) {
	s.hub.ServeWS(c.Writer, c.Request, userID(c))
}
