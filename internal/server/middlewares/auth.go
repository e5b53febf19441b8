package middlewares

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/sheetsync/internal/server/handlers/api"
)

// ServiceToken guards the control API with a shared bearer token. An empty
// configured token disables the check, for local development.
func ServiceToken(token string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if token == "" {
			ctx.Next()
			return
		}

		header := ctx.GetHeader("Authorization")
		bearer, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(bearer), []byte(token)) != 1 {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeAccessDenied,
				errors.New("invalid or missing service token"))
			return
		}
		ctx.Next()
	}
}
