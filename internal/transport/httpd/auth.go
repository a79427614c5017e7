package httpd

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the accepted token payload. Tokens are issued by the
// collaborating application; this daemon only verifies them.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

const ctxKeyUserID = "user_id"

// authMiddleware validates an HS256 bearer token from the
// Authorization header or, for websocket handshakes where browsers
// cannot set headers, a "token" query parameter.
func (s *Server) authMiddleware() gin.HandlerFunc {
	secret := []byte(s.cfg.JWTSecret)
	return func(c *gin.Context) {
		raw := tokenFrom(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := parseToken(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxKeyUserID, claims.UserID)
		c.Next()
	}
}

func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return tok
		}
		return ""
	}
	return c.Query("token")
}

func parseToken(secret []byte, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	if claims.UserID <= 0 {
		return nil, errors.New("token missing user_id")
	}
	return claims, nil
}

// userID returns the authenticated user from the request context.
func userID(c *gin.Context) int64 {
	v, _ := c.Get(ctxKeyUserID)
	if id, ok := v.(int64); ok {
		return id
	}
	return 0
}
