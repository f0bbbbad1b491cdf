package shared

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"
)

// Origin carries request-origin metadata recorded alongside audit entries.
type Origin struct {
	RequestID uuid.UUID
	IP        string
	UserAgent string
}

// OriginFromRequest extracts origin metadata from an incoming request.
func OriginFromRequest(r *http.Request) Origin {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return Origin{
		RequestID: uuid.New(),
		IP:        ip,
		UserAgent: r.UserAgent(),
	}
}

type originContextKey struct{}

// ContextWithOrigin stores origin metadata in context.
func ContextWithOrigin(ctx context.Context, origin Origin) context.Context {
	return context.WithValue(ctx, originContextKey{}, origin)
}

// OriginFromContext extracts origin metadata from context.
func OriginFromContext(ctx context.Context) Origin {
	origin, _ := ctx.Value(originContextKey{}).(Origin)
	return origin
}
