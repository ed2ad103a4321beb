package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/cache"
	"github.com/rotaclub/rota/internal/config"
	apierrors "github.com/rotaclub/rota/internal/errors"
	"github.com/rotaclub/rota/internal/logging"
	"github.com/rotaclub/rota/internal/monitoring"
	"github.com/rs/zerolog/log"
)

// Context keys for storing member information
const (
	ContextKeyUserID    = "user_id"
	ContextKeyProfileID = "profile_id"
	ContextKeyRole      = "role"
	ContextKeyClaims    = "claims"
)

// Claims represents the identity provider's JWT claims. Subject is the profile id.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWT validation errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// JWTAuthenticator handles JWT token validation
type JWTAuthenticator struct {
	config *config.JWTConfig
}

// NewJWTAuthenticator creates a new JWT authenticator
func NewJWTAuthenticator(cfg *config.JWTConfig) *JWTAuthenticator {
	return &JWTAuthenticator{
		config: cfg,
	}
}

// JWTAuth creates a middleware that validates the bearer token and stores
// the member's profile id and role in the context
func (j *JWTAuthenticator) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			respondWithError(c, apierrors.ErrUnauthorizedError)
			c.Abort()
			return
		}

		claims, err := j.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				respondWithError(c, apierrors.ErrTokenExpiredError)
			} else {
				logging.LogSecurityEvent("invalid_token", "", c.ClientIP(), err.Error())
				respondWithError(c, apierrors.ErrInvalidTokenError)
			}
			c.Abort()
			return
		}

		profileID, err := uuid.Parse(claims.Subject)
		if err != nil {
			respondWithError(c, apierrors.ErrInvalidTokenError)
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.Subject)
		c.Set(ContextKeyProfileID, profileID)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyClaims, claims)

		c.Next()
	}
}

// ValidateToken parses an HS256 token and checks issuer when one is configured
func (j *JWTAuthenticator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.config.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// extractBearerToken extracts the token from a Bearer authorization header
func extractBearerToken(authHeader string) (string, error) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) || len(authHeader) == len(bearerPrefix) {
		return "", ErrInvalidToken
	}
	return authHeader[len(bearerPrefix):], nil
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, err *apierrors.APIError) {
	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(err, GetRequestIDFromContext(c), c.Request.URL.Path))
}

// RequireRole creates a middleware that checks the member has one of the roles.
// It must run after JWTAuth.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextKeyRole)
		for _, allowed := range allowedRoles {
			if role == allowed {
				c.Next()
				return
			}
		}
		logging.LogSecurityEvent("forbidden", c.GetString(ContextKeyUserID), c.ClientIP(), c.Request.URL.Path)
		respondWithError(c, apierrors.ErrForbiddenError)
		c.Abort()
	}
}

// RequireAdmin requires the configured admin role
func RequireAdmin(cfg *config.JWTConfig) gin.HandlerFunc {
	return RequireRole(cfg.AdminRole)
}

// GetProfileIDFromContext returns the authenticated member's profile id
func GetProfileIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextKeyProfileID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// GetRoleFromContext returns the authenticated member's role
func GetRoleFromContext(c *gin.Context) string {
	return c.GetString(ContextKeyRole)
}

// GetClaimsFromContext extracts the full claims from the gin context
// Returns nil if not found
func GetClaimsFromContext(c *gin.Context) *Claims {
	claims, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	return claims.(*Claims)
}

// RequestID adds a unique request ID to each request and to its context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), requestID))
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// GetRequestIDFromContext extracts the request ID from the gin context
// Returns empty string if not found
func GetRequestIDFromContext(c *gin.Context) string {
	return c.GetString("request_id")
}

// CORS configures CORS headers
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, o := range allowedOrigins {
			if o == origin || o == "*" {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Remaining")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", "43200") // 12 hours
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RateLimit counts requests per client IP in fixed one-minute windows.
// A cache that cannot count (Noop, Redis down) lets every request through.
func RateLimit(counter cache.Cache, cfg *config.RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := int64(cfg.RequestsPerMinute)
		if limit <= 0 {
			c.Next()
			return
		}

		window := time.Now().UTC().Unix() / 60
		key := fmt.Sprintf("ratelimit:%s:%d", c.ClientIP(), window)
		count, err := counter.Incr(c.Request.Context(), key, time.Minute)
		if err != nil {
			log.Debug().Err(err).Msg("Rate limit counter unavailable")
			c.Next()
			return
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > limit {
			monitoring.RecordRateLimitHit()
			c.Header("Retry-After", "60")
			respondWithError(c, apierrors.ErrRateLimitedError)
			c.Abort()
			return
		}
		c.Next()
	}
}
