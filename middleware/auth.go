package middleware

import (
	"context"
	"net/http"
	"strings"

	"challenge-scoring-api/models"
	"challenge-scoring-api/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	RoleID int    `json:"role_id"`
	jwt.RegisteredClaims
}

// UserLookup resolves token subjects. Tokens are issued elsewhere; the
// lookup only confirms the user was not removed since.
type UserLookup interface {
	GetUser(ctx context.Context, userID int) (*models.User, error)
}

// AuthOptions configures AuthMiddleware. Users is optional; when nil, valid
// tokens are trusted as is.
type AuthOptions struct {
	Secret string
	Users  UserLookup
}

// AuthMiddleware validates JWT token
func AuthMiddleware(opts AuthOptions) gin.HandlerFunc {
	secret := []byte(opts.Secret)
	return func(c *gin.Context) {
		// Get token from header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authorization header is required"})
			return
		}

		// Check Bearer prefix
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid authorization header format"})
			return
		}

		// Parse token
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired token"})
			return
		}
		if claims.UserID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token claims"})
			return
		}

		// Check if user still exists
		roleID := claims.RoleID
		if opts.Users != nil {
			user, err := opts.Users.GetUser(c.Request.Context(), claims.UserID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not found"})
				return
			}
			roleID = user.RoleID
		}

		// Set user info in context
		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("roleID", roleID)

		c.Next()
	}
}

// CurrentActor returns the authenticated actor set by AuthMiddleware.
func CurrentActor(c *gin.Context) (services.Actor, bool) {
	userID, ok := c.Get("userID")
	if !ok {
		return services.Actor{}, false
	}
	roleID, ok := c.Get("roleID")
	if !ok {
		return services.Actor{}, false
	}
	uid, ok1 := userID.(int)
	rid, ok2 := roleID.(int)
	if !ok1 || !ok2 {
		return services.Actor{}, false
	}
	return services.Actor{UserID: uid, RoleID: rid}, true
}

// RequireRole checks if user has specific role
func RequireRole(roleIDs ...int) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, exists := CurrentActor(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Role not found"})
			return
		}

		for _, roleID := range roleIDs {
			if actor.RoleID == roleID {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Insufficient permissions"})
	}
}
