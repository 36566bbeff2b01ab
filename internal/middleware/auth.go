package middleware

import (
	"net/http"
	"strings"

	"posterminal/internal/apierror"
	"posterminal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey   = "claims"
	OperatorKey = "operator"
)

// JWTClaims are the custom claims embedded in every token.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Kind     string `json:"kind"`
	jwt.RegisteredClaims
}

// JWTAuth validates the Bearer access token on every protected route.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("authentication required"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid || claims.Kind != service.TokenKindAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("token is invalid or expired"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// LoadOperator reloads the signed-in operator on every request so permission
// changes apply without a new login.
func LoadOperator(perms service.PermissionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		uid, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("token is malformed"))
			return
		}
		op, err := perms.Load(c.Request.Context(), uid)
		if err != nil {
			c.AbortWithStatusJSON(apierror.HTTPStatus(err), apierror.FromError(err))
			return
		}
		c.Set(OperatorKey, op)
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	claims, _ := c.MustGet(ClaimsKey).(*JWTClaims)
	return claims
}

func GetOperator(c *gin.Context) *service.Operator {
	op, _ := c.MustGet(OperatorKey).(*service.Operator)
	return op
}
