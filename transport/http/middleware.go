package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/service"
)

const contextUserKey = "authUser"

// AuthMiddleware creates middleware that validates bearer access tokens and
// places the authenticated user in the request context.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		user, err := authService.UserFromAccessToken(c.Request.Context(), strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(contextUserKey, user)
		c.Next()
	}
}

// RequireUserType creates middleware that restricts a route group to one
// user class. It must run after AuthMiddleware.
func RequireUserType(want core.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if user.Type != want {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied for this user type"})
			return
		}
		if user.Type == core.UserTypeClient && !user.Verified {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "please verify your email first"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *core.User {
	v, exists := c.Get(contextUserKey)
	if !exists {
		return nil
	}
	user, ok := v.(*core.User)
	if !ok {
		return nil
	}
	return user
}
