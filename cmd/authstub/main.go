// Command authstub is a local stand-in for the facility-management backend's
// auth surface. It mints real (HMAC-signed) JWTs so the client's expiry
// decoding behaves exactly as against production, and it speaks the same
// refresh failure contract (action=clear_tokens, principal error codes).
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/facilityworks/sessionkit/core"
)

type stub struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	rotate     bool
	logger     *slog.Logger

	// revoked holds refresh JTIs invalidated by logout. Single-process demo
	// state, no locking concerns beyond gin's per-request goroutines.
	revoked map[string]bool
}

var demoUser = core.UserProfile{
	ID:          1,
	Username:    "commander",
	Email:       "commander@example.mil",
	Role:        "admin",
	IsSuperuser: true,
}

func main() {
	var (
		addr       = flag.String("addr", ":8000", "listen address")
		accessTTL  = flag.Duration("access-ttl", 15*time.Minute, "access token lifetime")
		refreshTTL = flag.Duration("refresh-ttl", 24*time.Hour, "refresh token lifetime")
		rotate     = flag.Bool("rotate-refresh", false, "issue a new refresh token on every renewal")
		secret     = flag.String("secret", "authstub-dev-secret", "HMAC signing secret")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s := &stub{
		secret:     []byte(*secret),
		accessTTL:  *accessTTL,
		refreshTTL: *refreshTTL,
		rotate:     *rotate,
		logger:     logger,
		revoked:    make(map[string]bool),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	auth := router.Group("/api/auth")
	{
		auth.POST("/login/", s.handleLogin)
		auth.POST("/logout/", s.handleLogout)
		auth.POST("/token/refresh/", s.handleRefresh)
	}
	router.GET("/api/auth/profile/", s.requireBearer, s.handleProfile)
	router.GET("/api/health/", s.handleHealth)

	logger.Info("authstub listening", slog.String("addr", *addr))
	if err := router.Run(*addr); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func (s *stub) mint(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *stub) parse(tokenStr string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *stub) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	access, err := s.mint(req.Email, s.accessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tokens"})
		return
	}
	refresh, err := s.mint(req.Email, s.refreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tokens"})
		return
	}

	user := demoUser
	user.Email = req.Email

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    user,
		"tokens":  gin.H{"access": access, "refresh": refresh},
	})
}

func (s *stub) handleRefresh(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	claims, err := s.parse(req.Refresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":  "invalid_token",
			"detail": "Token is invalid or expired",
			"action": "clear_tokens",
		})
		return
	}
	if s.revoked[claims.ID] {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":  "invalid_token",
			"detail": "Token has been revoked",
			"action": "clear_tokens",
		})
		return
	}

	access, err := s.mint(claims.Subject, s.accessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}

	resp := gin.H{"access": access}
	if s.rotate {
		s.revoked[claims.ID] = true
		refresh, err := s.mint(claims.Subject, s.refreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
			return
		}
		resp["refresh"] = refresh
	}

	c.JSON(http.StatusOK, resp)
}

func (s *stub) handleLogout(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	// Logout always succeeds, even with a missing or invalid token.
	if err := c.ShouldBindJSON(&req); err == nil && req.Refresh != "" {
		if claims, err := s.parse(req.Refresh); err == nil {
			s.revoked[claims.ID] = true
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logout successful", "status": "success"})
}

func (s *stub) requireBearer(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
		return
	}

	claims, err := s.parse(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	c.Set("subject", claims.Subject)
	c.Next()
}

func (s *stub) handleProfile(c *gin.Context) {
	user := demoUser
	if subject, ok := c.Get("subject"); ok {
		if email, ok := subject.(string); ok && email != "" {
			user.Email = email
		}
	}
	c.JSON(http.StatusOK, user)
}

func (s *stub) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
