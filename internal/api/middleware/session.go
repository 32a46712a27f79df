package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// SessionCookie 是承载会话令牌的 Cookie 名。
const SessionCookie = "session"

// RevokedKeyPrefix 是已注销令牌在 Redis 中的键前缀。
const RevokedKeyPrefix = "librarydesk:session:revoked:"

// SessionClaims 是会话令牌的载荷：{userID, username, role}。
type SessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Session 校验会话令牌并把身份写入请求上下文。
//
// 令牌从 session Cookie 或 Authorization: Bearer 头读取；
// 缺失、过期或已注销的令牌一律重定向到登录页。
// 身份始终是显式的每请求值，不存放在任何进程级全局状态里。
func Session(jwtSecret string, rdb *redis.Client) gin.HandlerFunc {
	secret := []byte(jwtSecret)
	return func(c *gin.Context) {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			redirectToLogin(c)
			return
		}

		claims := &SessionClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			redirectToLogin(c)
			return
		}

		if rdb != nil && claims.ID != "" {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			revoked, err := rdb.Exists(ctx, RevokedKeyPrefix+claims.ID).Result()
			cancel()
			if err == nil && revoked > 0 {
				redirectToLogin(c)
				return
			}
		}

		uid, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil {
			redirectToLogin(c)
			return
		}

		c.Set("userID", uint(uid))
		c.Set("username", claims.Username)
		c.Set("role", strings.TrimSpace(strings.ToLower(claims.Role)))
		c.Set("sessionID", claims.ID)
		if claims.ExpiresAt != nil {
			c.Set("sessionExpiresAt", claims.ExpiresAt.Time)
		}
		c.Next()
	}
}

// RequireRoles 限制后续处理器只对给定角色开放。
//
// 角色不匹配时不执行处理器，重定向到仪表盘（中立页面）。
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := GetRole(c)
		if _, ok := allowed[role]; !ok {
			c.Redirect(http.StatusFound, "/dashboard")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID 返回当前请求的用户 ID（未认证时为 0）。
func GetUserID(c *gin.Context) uint {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// GetUsername 返回当前请求的用户显示名。
func GetUsername(c *gin.Context) string {
	return c.GetString("username")
}

// GetRole 返回当前请求的角色（未认证时为空字符串）。
func GetRole(c *gin.Context) string {
	return c.GetString("role")
}

func extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func redirectToLogin(c *gin.Context) {
	c.Redirect(http.StatusFound, "/login")
	c.Abort()
}
