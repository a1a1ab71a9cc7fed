package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/seating/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, claims.UserID)
	c.Next()
}

func (h *httpHandler) requireAdmin(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	isAdmin, err := h.roles.IsAdmin(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("role lookup failed", zap.String("user_id", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "role_lookup_failed"})
		return
	}
	if !isAdmin {
		h.logger.Info("admin access denied", zap.String("user_id", userID), zap.String("path", c.FullPath()))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

// rateLimitRSVP throttles public submissions per client IP. Limiter failures let the request through.
func (h *httpHandler) rateLimitRSVP(c *gin.Context) {
	if h.limiter == nil {
		c.Next()
		return
	}
	clientIP := c.ClientIP()
	decision, err := h.limiter.Allow(c.Request.Context(), "rsvp:"+clientIP)
	if err != nil {
		h.logger.Warn("rate limiter unavailable", zap.String("client_ip", clientIP), zap.Error(err))
		c.Next()
		return
	}
	if !decision.Allowed {
		retrySeconds := int(math.Ceil(decision.RetryAfter.Seconds()))
		if retrySeconds < 1 {
			retrySeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retrySeconds))
		h.logger.Info("rsvp submission throttled", zap.String("client_ip", clientIP))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "too_many_requests",
			"retry_after": retrySeconds,
		})
		return
	}
	c.Next()
}
