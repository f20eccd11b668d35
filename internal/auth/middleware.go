package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-task-go/pkg/utilities"
)

// UserLookup finds users by email; *user.UserService satisfies it.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
}

// Resolver turns a bearer token into the calling user.
type Resolver struct {
	tokens *TokenService
	users  UserLookup
}

func NewResolver(tokens *TokenService, users UserLookup) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// ResolveCaller verifies token and loads its subject. An unknown subject is
// reported as apperr.ErrInvalidToken, the same as a bad signature or expiry.
func (r *Resolver) ResolveCaller(ctx context.Context, token string) (*entity.User, error) {
	subject, err := r.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	u, err := r.users.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrInvalidToken
		}
		return nil, err
	}
	return u, nil
}

type ctxKey struct{}

// WithCaller stores the authenticated user in ctx.
func WithCaller(ctx context.Context, u *entity.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// CallerFromContext returns the user stored by Middleware.
func CallerFromContext(ctx context.Context) (*entity.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*entity.User)
	return u, ok && u != nil
}

// Middleware rejects requests without a valid "Authorization: Bearer" token
// and stores the resolved caller in the request context.
func Middleware(resolver *Resolver, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				utilities.WriteError(w, logger, apperr.ErrInvalidToken)
				return
			}
			u, err := resolver.ResolveCaller(r.Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				logger.Debugw("resolve caller failed", "err", err)
				utilities.WriteError(w, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), u)))
		})
	}
}
