// Package session определяет идентичность пользователя по сессионному токену запроса.
package session

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/magabrotheeeer/sketch-logo/internal/lib/jwt"
	"github.com/magabrotheeeer/sketch-logo/internal/models"
)

// CookieName имя cookie, в которой браузер хранит сессионный токен.
const CookieName = "session_token"

const bearerPrefix = "Bearer "

// TokenParser проверяет подпись и срок действия токена.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// Resolver извлекает идентичность из заголовка Authorization или cookie.
// Не обращается к хранилищу и не имеет побочных эффектов.
type Resolver struct {
	tokens TokenParser
}

// New создает новый Resolver.
func New(tokens TokenParser) *Resolver {
	return &Resolver{tokens: tokens}
}

// Resolve возвращает идентичность запроса или models.ErrUnauthenticated.
func (s *Resolver) Resolve(r *http.Request) (models.Identity, error) {
	const op = "session.Resolve"

	token := tokenFromRequest(r)
	if token == "" {
		return models.Identity{}, fmt.Errorf("%s: %w", op, models.ErrUnauthenticated)
	}

	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w: %w", op, models.ErrUnauthenticated, err)
	}
	if strings.TrimSpace(claims.Email) == "" {
		return models.Identity{}, fmt.Errorf("%s: %w: empty email claim", op, models.ErrUnauthenticated)
	}

	return models.Identity{UserUID: claims.UserUID, Email: claims.Email}, nil
}

// tokenFromRequest отдаёт приоритет заголовку Authorization.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, bearerPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
