package middlewares

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/logger"
	"civicreport-be/models"
	"civicreport-be/services"
)

const identityKey = "identity"

// AuthMiddleware resolves the bearer credential into an identity (id + role)
// and attaches it to the request context. Requests with a missing,
// malformed, or unverifiable token are rejected with 401 before any domain
// logic runs.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided"})
			c.Abort()
			return
		}

		jwtSecret := os.Getenv("JWT_SECRET")
		if jwtSecret == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "JWT secret not configured"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			logger.Log.WithError(err).Debug("token validation failed")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			c.Abort()
			return
		}

		identity, ok := identityFromClaims(token.Claims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireRoles declares per-route role eligibility. It runs after
// AuthMiddleware and rejects callers whose role is not listed with 403.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			c.Abort()
			return
		}
		if !allowed[identity.Role] {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentIdentity returns the identity attached by AuthMiddleware.
func CurrentIdentity(c *gin.Context) (services.Identity, bool) {
	val, exists := c.Get(identityKey)
	if !exists {
		return services.Identity{}, false
	}
	identity, ok := val.(services.Identity)
	return identity, ok
}

// extractToken reads the credential from the Authorization header, falling
// back to the auth_token cookie the login handler sets.
func extractToken(c *gin.Context) string {
	authHeader := c.Request.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return authHeader[7:]
		}
		return authHeader
	}
	if cookie, err := c.Cookie("auth_token"); err == nil {
		return cookie
	}
	return ""
}

func identityFromClaims(claims jwt.Claims) (services.Identity, bool) {
	mapClaims, ok := claims.(jwt.MapClaims)
	if !ok {
		return services.Identity{}, false
	}

	userIDStr, ok := mapClaims["user_id"].(string)
	if !ok {
		return services.Identity{}, false
	}
	userID, err := primitive.ObjectIDFromHex(userIDStr)
	if err != nil {
		return services.Identity{}, false
	}

	roleStr, ok := mapClaims["role"].(string)
	if !ok || !models.ValidRole(roleStr) {
		return services.Identity{}, false
	}

	return services.Identity{ID: userID, Role: models.Role(roleStr)}, true
}
