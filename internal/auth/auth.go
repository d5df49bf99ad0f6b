package auth

import (
	"net/http"
	"strings"

	"github.com/iurnickita/shopdash/internal/token"
)

const CookieSession = "shopdashSession"

type Auth interface {
	Middleware(h http.Handler) http.Handler
}

// sessionParser проверяет токен сессии оператора
type sessionParser interface {
	GetOperator(tokenString string) (string, error)
}

type auth struct {
	sessions sessionParser
}

func NewAuth(sessions sessionParser) Auth {
	return &auth{sessions: sessions}
}

func (a *auth) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// получение оператора из сессии
		operator, err := a.getOperator(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		// передаём оператора дальше через контекст
		ctx := token.WithOperator(r.Context(), operator)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *auth) getOperator(r *http.Request) (string, error) {
	// заголовок Authorization имеет приоритет над кукой
	if header := r.Header.Get("Authorization"); header != "" {
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return "", token.ErrInvalidToken
		}
		return a.sessions.GetOperator(strings.TrimSpace(raw))
	}

	cookie, err := r.Cookie(CookieSession)
	if err != nil {
		return "", token.ErrNoSession
	}
	return a.sessions.GetOperator(cookie.Value)
}
