// Package credentials supplies the bearer token read by every gateway call.
// The token is managed outside this module; providers only read it.
package credentials

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Provider interface {
	Token(ctx context.Context) (string, bool)
}

type ProviderFunc func(ctx context.Context) (string, bool)

func (f ProviderFunc) Token(ctx context.Context) (string, bool) {
	return f(ctx)
}

type Static string

func (s Static) Token(context.Context) (string, bool) {
	token := strings.TrimSpace(string(s))
	return token, token != ""
}

// File reads the token from disk on every call so that a login or logout
// performed by another process is picked up immediately.
type File struct {
	path   string
	logger *slog.Logger
}

func NewFile(path string, logger *slog.Logger) *File {
	return &File{path: path, logger: logger}
}

func (f *File) Token(context.Context) (string, bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Warn("failed to read token file", "error", err, "path", f.path)
		}
		return "", false
	}
	token := strings.TrimSpace(string(data))
	return token, token != ""
}

// Expiring treats a token whose exp claim has passed as absent. Tokens that
// are not JWTs are passed through untouched; signature checks are the
// backend's job.
type Expiring struct {
	next   Provider
	now    func() time.Time
	parser *jwt.Parser
}

func NewExpiring(next Provider) *Expiring {
	return &Expiring{
		next:   next,
		now:    time.Now,
		parser: jwt.NewParser(),
	}
}

func (e *Expiring) Token(ctx context.Context) (string, bool) {
	token, ok := e.next.Token(ctx)
	if !ok {
		return "", false
	}

	claims := jwt.MapClaims{}
	if _, _, err := e.parser.ParseUnverified(token, claims); err != nil {
		return token, true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return token, true
	}
	if !e.now().Before(exp.Time) {
		return "", false
	}
	return token, true
}
