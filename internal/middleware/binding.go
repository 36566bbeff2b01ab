package middleware

import (
	"net/http"

	"posterminal/internal/apierror"

	"github.com/gin-gonic/gin"
)

// RequireBinding answers 503 with the binding error while the terminal could
// not be bound. bindErr is nil once the process holds a valid binding.
func RequireBinding(bindErr error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bindErr != nil {
			status := apierror.HTTPStatus(bindErr)
			if status < http.StatusInternalServerError {
				status = http.StatusServiceUnavailable
			}
			c.AbortWithStatusJSON(status, apierror.FromError(bindErr))
			return
		}
		c.Next()
	}
}
