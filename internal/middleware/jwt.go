package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/otalab/spaces/dao/model"
	"github.com/otalab/spaces/dao/query"
	"github.com/otalab/spaces/internal/resputil"
	"github.com/otalab/spaces/internal/util"
)

func AuthProtected() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		t := strings.Split(authHeader, " ")
		if len(t) < 2 || t[0] != "Bearer" {
			resputil.HTTPError(c, http.StatusUnauthorized, "Invalid token", resputil.TokenExpired)
			c.Abort()
			return
		}

		authToken := t[1]
		token, err := util.GetTokenMgr().CheckToken(authToken)
		if err != nil {
			resputil.HTTPError(c, http.StatusUnauthorized, err.Error(), resputil.TokenExpired)
			c.Abort()
			return
		}

		// Mutating requests re-check the user row, so a revoked or demoted
		// user cannot keep writing on a stale token.
		if c.Request.Method != http.MethodGet {
			user, err := query.GetUserByID(c, token.UserID)
			if err != nil {
				resputil.HTTPError(c, http.StatusUnauthorized, "User not found", resputil.TokenExpired)
				c.Abort()
				return
			}
			if user.Role != token.RolePlatform || user.Status != model.StatusActive {
				resputil.HTTPError(c, http.StatusUnauthorized, "Platform token not match", resputil.TokenExpired)
				c.Abort()
				return
			}
		}

		util.SetJWTContext(c, token)
		c.Next()
	}
}

func AuthAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.GetToken(c)
		if token.RolePlatform != model.RoleAdmin {
			resputil.HTTPError(c, http.StatusForbidden, "Not Admin", resputil.UserNotAllowed)
			c.Abort()
			return
		}
		c.Next()
	}
}
