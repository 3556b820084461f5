package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"shiftcheck/internal/shared/apperror"
	"shiftcheck/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ManagerAuth validates the short-lived token minted by a successful PIN
// verification and loads the manager identity into the request context.
// Endpoints behind it never see raw PINs.
func ManagerAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || tokenString == "" {
			abortUnauthorized(c, "Manager token not found")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			msg := "Invalid manager token"
			if err != nil && strings.Contains(err.Error(), "expired") {
				msg = "Manager token has expired"
			}
			abortUnauthorized(c, msg)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "Invalid token claims")
			return
		}

		managerID, ok := claims["manager_id"].(string)
		if !ok || managerID == "" {
			abortUnauthorized(c, "Manager ID not found in token")
			return
		}
		managerName, _ := claims["manager_name"].(string)
		role, _ := claims["role"].(string)

		c.Set("manager_id", managerID)
		c.Set("manager_name", managerName)
		c.Set("role", role)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	response.Error(c, http.StatusUnauthorized, apperror.CodeUnauthorized, message, nil)
	c.Abort()
}
