package middleware

import (
	"net/http"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	adapter "github.com/gwatts/gin-adapter"
)

// UserIDKey holds the authenticated user's id in the Gin context.
const UserIDKey = "user_id"

// Auth validates the bearer token and stores its subject under UserIDKey.
func Auth(v *validator.Validator) gin.HandlersChain {
	mw := jwtmiddleware.New(v.ValidateToken, jwtmiddleware.WithErrorHandler(unauthorized))
	return gin.HandlersChain{adapter.Wrap(mw.CheckJWT), claimsToContext}
}

func unauthorized(w http.ResponseWriter, _ *http.Request, _ error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"code":"UNAUTHORIZED","message":"Authentication required"}`))
}

func claimsToContext(c *gin.Context) {
	claims, ok := c.Request.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}
	c.Set(UserIDKey, claims.RegisteredClaims.Subject)
	c.Next()
}

// GetUserID returns the authenticated user's id.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
