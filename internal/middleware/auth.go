// Package middleware содержит HTTP middleware сервиса бронирования парковок.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

type contextKey string

const identityKey contextKey = "identity"

// Claims - утверждения токена, выданного провайдером идентификации.
type Claims struct {
	UserType   string `json:"user_type"`
	OperatorID string `json:"operator_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware проверяет bearer-токен JWT (HS256) и кладёт Identity в контекст запроса.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{
		secretKey: []byte(secret),
	}
}

// Middleware проверяет заголовок Authorization и добавляет Identity в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		id, err := a.Parse(token)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Parse проверяет подпись и срок действия токена.
func (a *AuthMiddleware) Parse(tokenString string) (model.Identity, error) {
	if len(a.secretKey) == 0 {
		return model.Identity{}, errors.New("auth secret is not configured")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return model.Identity{}, err
	}

	if claims.Subject == "" {
		return model.Identity{}, errors.New("token has no subject")
	}

	userType := claims.UserType
	if userType == "" {
		userType = model.UserTypeUser
	}

	return model.Identity{
		UserID:     claims.Subject,
		UserType:   userType,
		OperatorID: claims.OperatorID,
	}, nil
}

// Issue подписывает токен для id. Используется тестами и CLI оператора.
func (a *AuthMiddleware) Issue(id model.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserType:   id.UserType,
		OperatorID: id.OperatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
}

// WithIdentity возвращает контекст с Identity.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentityFromContext извлекает Identity из контекста запроса.
func GetIdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}
