package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/auth"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/response"
)

const ctxUserIDKey = "user_id"

// RequireAuth resolves the request identity and aborts with 401 unless it
// is authenticated. Handlers downstream read the user id via UserID.
func RequireAuth(resolver *auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := resolver.Resolve(c.Request)
		if identity.State != domain.IdentityAuthenticated {
			response.Unauthorized(c, "You are not logged in.")
			c.Abort()
			return
		}
		c.Set(ctxUserIDKey, identity.UserID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by RequireAuth.
func UserID(c *gin.Context) string {
	return c.GetString(ctxUserIDKey)
}
