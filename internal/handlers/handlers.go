// Package handlers exposes the wallet over a JSON HTTP API built on gin.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Krchnk/valutatrade-wallet/internal/auth"
	"github.com/Krchnk/valutatrade-wallet/internal/domain"
	"github.com/Krchnk/valutatrade-wallet/internal/rates"
	"github.com/Krchnk/valutatrade-wallet/internal/trading"
	"github.com/Krchnk/valutatrade-wallet/internal/valuation"
)

const (
	userIDKey   = "user_id"
	usernameKey = "username"
)

type Handler struct {
	auth       *auth.Service
	engine     *trading.Engine
	reporter   *valuation.Reporter
	rates      *rates.Store
	currencies *domain.Registry
	logger     logrus.FieldLogger
}

func NewHandler(authService *auth.Service, engine *trading.Engine, reporter *valuation.Reporter, rateStore *rates.Store, currencies *domain.Registry, logger logrus.FieldLogger) *Handler {
	return &Handler{
		auth:       authService,
		engine:     engine,
		reporter:   reporter,
		rates:      rateStore,
		currencies: currencies,
		logger:     logger,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tradeRequest struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

func (h *Handler) Register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("failed to bind registration request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	h.logger.WithField("username", req.Username).Info("registration attempt")
	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err, "user registration failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "User registered successfully",
		"user_id":  user.ID,
		"username": user.Username,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("failed to bind login request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err, "login failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": user.ID})
}

type walletView struct {
	Currency string           `json:"currency"`
	Balance  decimal.Decimal  `json:"balance"`
	Rate     *decimal.Decimal `json:"rate,omitempty"`
	Value    *decimal.Decimal `json:"value,omitempty"`
}

// GetPortfolio values every wallet of the caller in ?base= (USD by default).
func (h *Handler) GetPortfolio(c *gin.Context) {
	userID := c.GetInt(userIDKey)
	base := c.DefaultQuery("base", domain.USD)

	p, err := h.engine.Portfolio(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "failed to load portfolio")
		return
	}
	report, err := h.reporter.Build(p, base)
	if err != nil {
		h.fail(c, err, "failed to value portfolio")
		return
	}

	wallets := make([]walletView, 0, len(report.Lines))
	for _, line := range report.Lines {
		view := walletView{Currency: line.Currency, Balance: line.Balance}
		if line.Known {
			rate, value := line.Rate, line.Value
			view.Rate, view.Value = &rate, &value
		}
		wallets = append(wallets, view)
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"base":    report.Base,
		"total":   report.Total,
		"wallets": wallets,
		"skipped": report.Skipped,
	})
}

func (h *Handler) Deposit(c *gin.Context) {
	h.trade(c, h.engine.Deposit)
}

func (h *Handler) Buy(c *gin.Context) {
	h.trade(c, h.engine.Buy)
}

func (h *Handler) Sell(c *gin.Context) {
	h.trade(c, h.engine.Sell)
}

type tradeFunc func(ctx context.Context, userID int, code string, amount decimal.Decimal) (*domain.TradeReceipt, error)

func (h *Handler) trade(c *gin.Context, settle tradeFunc) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("failed to bind trade request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID := c.GetInt(userIDKey)
	receipt, err := settle(c.Request.Context(), userID, req.Currency, req.Amount)
	if err != nil {
		h.fail(c, err, "trade rejected")
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *Handler) GetRate(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
		return
	}

	res, err := h.rates.Lookup(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err, "failed to get exchange rate")
		return
	}

	body := gin.H{
		"from":    res.From,
		"to":      res.To,
		"rate":    res.Rate,
		"reverse": decimal.NewFromInt(1).Div(res.Rate),
		"origin":  res.Origin,
	}
	if !res.UpdatedAt.IsZero() {
		body["updated_at"] = res.UpdatedAt.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) GetCurrencies(c *gin.Context) {
	all := h.currencies.All()
	out := make([]gin.H, 0, len(all))
	for _, cur := range all {
		out = append(out, gin.H{
			"code": cur.Code,
			"name": cur.Name,
			"kind": cur.Kind.String(),
			"info": cur.DisplayInfo(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"currencies": out})
}

// AuthMiddleware accepts "Authorization: Bearer <token>" and stores the
// session's user id and name in the gin context.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			h.logger.Warn("missing or invalid Authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		session, err := h.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.logger.WithError(err).Warn("rejected session token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(userIDKey, session.UserID)
		c.Set(usernameKey, session.Username)
		c.Next()
	}
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	entry := h.logger.WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error(msg)
	} else {
		entry.Warn(msg)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrCurrencyUnknown):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuthenticationFailed), errors.Is(err, domain.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrMissingWallet):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
