package http

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"emberlink/internal/core/services"
	apperrors "emberlink/pkg/errors"

	"github.com/gin-gonic/gin"
)

// AuthHandler issues operator tokens for the console API. There is no
// user store; operators share one secret set in the console config, the
// token just names who is holding the session.
type AuthHandler struct {
	authService services.AuthService
	secret      string
	tokenTTL    time.Duration
}

func NewAuthHandler(authService services.AuthService, secret string, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		secret:      secret,
		tokenTTL:    tokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/login", h.Login)
	}
}

type LoginRequest struct {
	Operator string `json:"operator" binding:"required,min=1,max=50"`
	Secret   string `json:"secret" binding:"required,max=128"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req.Operator = strings.TrimSpace(req.Operator)

	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.secret)) != 1 {
		appErr := apperrors.NewUnauthorized("invalid operator secret")
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}

	token, err := h.authService.GenerateToken(req.Operator)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"operator":     req.Operator,
		"access_token": token,
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}
