package httpd

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret []byte, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestParseToken(t *testing.T) {
	t.Parallel()
	secret := []byte("test-secret")
	raw := signToken(t, secret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: 42,
	})

	claims, err := parseToken(secret, raw)
	if err != nil {
		t.Fatalf("parseToken: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("user_id = %d, want 42", claims.UserID)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	t.Parallel()
	raw := signToken(t, []byte("right"), Claims{UserID: 1})
	if _, err := parseToken([]byte("wrong"), raw); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestParseTokenExpired(t *testing.T) {
	t.Parallel()
	secret := []byte("test-secret")
	raw := signToken(t, secret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		UserID: 1,
	})
	if _, err := parseToken(secret, raw); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestParseTokenMissingUserID(t *testing.T) {
	t.Parallel()
	secret := []byte("test-secret")
	raw := signToken(t, secret, Claims{})
	if _, err := parseToken(secret, raw); err == nil {
		t.Fatal("expected missing user_id error")
	}
}

func TestParseTokenRejectsNone(t *testing.T) {
	t.Parallel()
	// alg=none tokens must never validate, whatever the payload says.
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := parseToken([]byte("secret"), tok); err == nil {
		t.Fatal("alg=none token validated")
	}
}

func TestTokenFrom(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	mk := func(header, query string) *gin.Context {
		target := "/ws"
		if query != "" {
			target += "?token=" + query
		}
		req := httptest.NewRequest("GET", target, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = req
		return c
	}

	if got := tokenFrom(mk("Bearer abc", "")); got != "abc" {
		t.Fatalf("bearer: got %q", got)
	}
	if got := tokenFrom(mk("Basic abc", "")); got != "" {
		t.Fatalf("non-bearer scheme should be rejected, got %q", got)
	}
	if got := tokenFrom(mk("", "qtoken")); got != "qtoken" {
		t.Fatalf("query fallback: got %q", got)
	}
	if got := tokenFrom(mk("", "")); got != "" {
		t.Fatalf("empty request: got %q", got)
	}
}
