package auth

import (
	"context"
	"net"
	"net/http"

	"citbif/internal/models"
)

type ctxKey string

const identityKey ctxKey = "identity"

// Identity is what resource handlers get once the middleware has run.
type Identity struct {
	Account      *models.Account
	AdminProfile *models.AdminProfile
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns nil for anonymous requests.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

func AccountFromContext(ctx context.Context) *models.Account {
	if id := FromContext(ctx); id != nil {
		return id.Account
	}
	return nil
}

func ClientMetaFromRequest(r *http.Request) ClientMeta {
	return ClientMeta{IPAddress: ClientIP(r), UserAgent: r.UserAgent()}
}

// ClientIP expects chi's RealIP middleware to have normalised RemoteAddr.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
