package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const (
	UserContextKey = "userID"
	RoleContextKey = "role"
	RoleAdmin      = "admin"
)

// AuthConfig controls how callers are identified.
type AuthConfig struct {
	// JWTSecret verifies HMAC-signed bearer tokens. Empty disables bearer auth.
	JWTSecret []byte
	// TrustGatewayHeaders accepts X-User-ID / X-User-Role injected by the API gateway.
	TrustGatewayHeaders bool
}

// AuthMiddleware resolves the caller from a bearer token or, when trusted,
// from API gateway headers and cookies.
func AuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role := "", ""

		if token, ok := bearerToken(c); ok && len(cfg.JWTSecret) > 0 {
			claims, err := ParseAccessToken(token, cfg.JWTSecret)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "UNAUTHORIZED"})
				return
			}
			userID, _ = claims["sub"].(string)
			role, _ = claims["role"].(string)
		} else if cfg.TrustGatewayHeaders {
			userID = c.GetHeader("X-User-ID")
			role = c.GetHeader("X-User-Role")
			if userID == "" {
				if v, err := c.Cookie("user_id"); err == nil {
					userID = v
				}
			}
			if role == "" {
				if v, err := c.Cookie("user_role"); err == nil {
					role = v
				}
			}
		}

		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "UNAUTHORIZED"})
			return
		}

		c.Set(UserContextKey, userID)
		c.Set(RoleContextKey, role)
		c.Next()
	}
}

// GetUserID extracts the user ID from the Gin context.
func GetUserID(c *gin.Context) (string, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id, nil
		}
	}
	return "", errors.New("user ID not found in context")
}

// IsAdmin reports whether the authenticated caller has the admin role.
func IsAdmin(c *gin.Context) bool {
	return c.GetString(RoleContextKey) == RoleAdmin
}

// AdminOnly restricts access to admin role.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin role required", "code": "OWNERSHIP_CONFLICT"})
			return
		}
		c.Next()
	}
}

// ParseAccessToken validates an HMAC-signed JWT whose typ claim is "access".
func ParseAccessToken(tokenStr string, secret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if typ, ok := claims["typ"].(string); ok && typ != "access" {
		return nil, fmt.Errorf("invalid token type")
	}
	return claims, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}
