package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/rondpoint/internal/helpers"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/joshua-takyi/rondpoint/internal/services"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	userKey         = "user"
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		logger.Info("HTTP Request",
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// ErrorHandler logs errors attached with c.Error and answers with a generic
// 500 that only carries the request id.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		requestID := c.GetString(requestIDKey)
		logger.Error("Request error",
			"request_id", requestID,
			"error", err.Error(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		if c.Writer.Written() {
			return
		}
		res := models.ErrorResponse("Internal server error")
		res.RequestID = requestID
		c.JSON(http.StatusInternalServerError, res)
	}
}

// Auth rejects requests without a valid bearer token. The verified identity
// is joined with its stored user and kept under "user".
func Auth(provider helpers.IdentityProvider, users *services.UserService, logger *slog.Logger) gin.HandlerFunc {
	return authenticate(provider, users, logger, true)
}

// OptionalAuth lets anonymous requests through but still rejects a bad token.
func OptionalAuth(provider helpers.IdentityProvider, users *services.UserService, logger *slog.Logger) gin.HandlerFunc {
	return authenticate(provider, users, logger, false)
}

func authenticate(provider helpers.IdentityProvider, users *services.UserService, logger *slog.Logger, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := helpers.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse(models.ErrUnauthenticated.Error()))
				return
			}
			c.Next()
			return
		}

		identity, err := provider.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Debug("token rejected", "request_id", c.GetString(requestIDKey), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse("invalid or expired token"))
			return
		}

		user, err := users.Resolve(c.Request.Context(), identity)
		switch {
		case errors.Is(err, models.ErrForbidden):
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse(err.Error()))
			return
		case errors.Is(err, models.ErrUnauthenticated):
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse(models.ErrUnauthenticated.Error()))
			return
		case err != nil:
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(userKey, helpers.NewEnhancedClaims(identity, user, user.IsPremiumActive(time.Now())))
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse(models.ErrUnauthenticated.Error()))
			return
		}
		if !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse("admin access required"))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated caller, or nil.
func CurrentUser(c *gin.Context) *helpers.EnhancedClaims {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*helpers.EnhancedClaims)
	return claims
}

// Actor is CurrentUser in the form the services take.
func Actor(c *gin.Context) *models.Actor {
	return CurrentUser(c).Actor(c.ClientIP())
}
