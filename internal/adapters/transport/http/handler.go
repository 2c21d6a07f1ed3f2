package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/adapters/transport/http/dto"
	appsvc "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/app/auth/service"
	authErrors "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const refreshCookie = "refresh_token"

// ResetFlow is the forgot-password and reset-confirm pair.
type ResetFlow interface {
	Request(context.Context, dto.ForgotDTO) error
	Confirm(context.Context, dto.ResetDTO) error
}

type CookieConfig struct {
	Domain string
	Secure bool
}

type Handler struct {
	svc    appsvc.Service
	reset  ResetFlow
	cookie CookieConfig
	log    *zap.Logger
}

func NewHandler(svc appsvc.Service, reset ResetFlow, cookie CookieConfig, log *zap.Logger) *Handler {
	return &Handler{svc: svc, reset: reset, cookie: cookie, log: log}
}

// Mount registers the auth routes on r.
func (h *Handler) Mount(r gin.IRouter) {
	r.POST("/register", h.register)
	r.POST("/login", h.login)
	r.POST("/two-factor", h.twoFactor)
	r.POST("/refresh", h.refresh)
	r.POST("/logout", h.logout)
	r.POST("/federated-login", h.federatedLogin)
	r.GET("/user", h.user)
	r.POST("/forgot", h.forgot)
	r.POST("/reset", h.resetPassword)
}

func (h *Handler) register(c *gin.Context) {
	var body dto.RegisterDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	user, err := h.svc.Register(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	var body dto.LoginDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		h.handleError(c, authErrors.ErrInvalidCredentials)
		return
	}
	res, err := h.svc.Login(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}

	out := gin.H{"id": res.UserID.String()}
	if res.Secret != "" {
		out["secret"] = res.Secret
		out["otpauth_url"] = res.OTPAuthURL
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) twoFactor(c *gin.Context) {
	var body dto.TwoFactorDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		h.handleError(c, authErrors.ErrInvalidCredentials)
		return
	}
	pair, err := h.svc.VerifySecondFactor(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.issueTokens(c, pair)
}

func (h *Handler) refresh(c *gin.Context) {
	token, _ := c.Cookie(refreshCookie)
	pair, err := h.svc.Refresh(c.Request.Context(), token)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.issueTokens(c, pair)
}

func (h *Handler) logout(c *gin.Context) {
	token, _ := c.Cookie(refreshCookie)
	_ = h.svc.Logout(c.Request.Context(), token)

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, "", -1, "/", h.cookie.Domain, h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func (h *Handler) federatedLogin(c *gin.Context) {
	var body dto.FederatedLoginDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		h.handleError(c, authErrors.ErrUnauthorized)
		return
	}
	pair, err := h.svc.FederatedLogin(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.issueTokens(c, pair)
}

func (h *Handler) user(c *gin.Context) {
	token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	user, err := h.svc.CurrentUser(c.Request.Context(), token)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) forgot(c *gin.Context) {
	var body dto.ForgotDTO
	// a malformed body gets the same answer as any other request
	_ = c.ShouldBindJSON(&body)
	_ = h.reset.Request(c.Request.Context(), body)
	c.JSON(http.StatusOK, gin.H{"message": "Check your email"})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var body dto.ResetDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		h.handleError(c, authErrors.ErrInvalidOrExpiredToken)
		return
	}
	if err := h.reset.Confirm(c.Request.Context(), body); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

// issueTokens answers with the access token and, when the pair carries
// one, puts the refresh token in an HTTP-only cookie.
func (h *Handler) issueTokens(c *gin.Context, pair model.TokenPair) {
	if pair.RefreshToken != "" {
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(
			refreshCookie,
			pair.RefreshToken,
			int(pair.RefreshTTL/time.Second),
			"/",
			h.cookie.Domain,
			h.cookie.Secure,
			true,
		)
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": pair.AccessToken,
		"expires_in":   int(pair.AccessTTL / time.Second),
	})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case authErrors.IsPasswordMismatch(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
	case authErrors.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case authErrors.IsInvalidOrExpiredToken(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
	case authErrors.IsInvalidCredentials(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case authErrors.IsUnauthorized(err), authErrors.IsInvalidToken(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case authErrors.IsAlreadyExists(err):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
