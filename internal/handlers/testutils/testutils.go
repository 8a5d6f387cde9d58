package testutils

import (
	"context"
	"net/http"

	"tendering/internal/auth"

	"github.com/go-chi/chi/v5"
)

// WithChiURLParams подставляет параметры пути в контекст chi запроса для тестов.
func WithChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for k, v := range params {
		chiCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}

// AsUser кладёт в запрос claims, как это делает middleware после проверки токена
func AsUser(req *http.Request, userID int64, userType string) *http.Request {
	claims := &auth.Claims{UserID: userID, UserType: userType}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}
