package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"LEMS-backend/internal/platform/api"
)

const (
	CtxUserIDKey = "user_id"
	CtxRoleKey   = "role"
)

func unauthorized(c *gin.Context, msg string) {
	api.AbortCode(c, http.StatusUnauthorized, api.CodeUnauthenticated, msg)
}

// RequireAuth: Authorization: Bearer <token> を検証して context に sub/role を詰める
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			unauthorized(c, "missing Authorization header")
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(c, "invalid Authorization header")
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			unauthorized(c, "empty token")
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			// alg 固定（none攻撃回避）
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || token == nil || !token.Valid {
			unauthorized(c, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			unauthorized(c, "invalid claims")
			return
		}

		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			unauthorized(c, "missing sub")
			return
		}

		role := ""
		if r, ok := claims["role"].(string); ok {
			role = r
		}

		c.Set(CtxUserIDKey, sub)
		c.Set(CtxRoleKey, role)
		c.Next()
	}
}

// RequireRole: 例) admin のみ許可したい時に追加
func RequireRole(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{})
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		v, ok := c.Get(CtxRoleKey)
		if !ok {
			api.AbortCode(c, http.StatusForbidden, api.CodePermissionDenied, "missing role")
			return
		}

		role, _ := v.(string)
		if _, allowed := roleSet[role]; !allowed {
			api.AbortCode(c, http.StatusForbidden, api.CodePermissionDenied, "forbidden")
			return
		}

		c.Next()
	}
}
