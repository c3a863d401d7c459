// Package middleware содержит HTTP middleware сервиса.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/mmeshcher/staffledger/internal/model"
	"github.com/mmeshcher/staffledger/internal/validation"
)

type contextKey string

const principalKey contextKey = "principal"

const (
	authCookieName = "auth_token"
	bearerPrefix   = "Bearer "
)

// AuthMiddleware проверяет подписанный токен участника.
// Токен имеет вид <principal>.<hex(hmac-sha256(principal))>.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет токен из заголовка Authorization или cookie и добавляет участника в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		p, ok := a.ParseToken(token)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Sign выпускает токен для участника.
func (a *AuthMiddleware) Sign(p model.Principal) string {
	return string(p) + "." + a.signature(string(p))
}

func (a *AuthMiddleware) signature(p string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(p))
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseToken проверяет подпись токена и возвращает участника.
func (a *AuthMiddleware) ParseToken(token string) (model.Principal, bool) {
	dot := strings.LastIndex(token, ".")
	if dot <= 0 {
		return "", false
	}

	p, signature := token[:dot], token[dot+1:]
	if !validation.IsValidPrincipal(p) {
		return "", false
	}

	if !hmac.Equal([]byte(signature), []byte(a.signature(p))) {
		return "", false
	}

	return model.Principal(p), true
}

// PrincipalFromContext извлекает участника из контекста запроса.
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(model.Principal)
	return p, ok
}
