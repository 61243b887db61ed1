package ctxutil

import (
	"context"
	"strings"
)

type actorKey struct{}

// RequestActor is the authenticated principal attached by the auth middleware.
type RequestActor struct {
	ActorID     string
	TokenString string
}

func WithActor(ctx context.Context, actor *RequestActor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

func GetActor(ctx context.Context) *RequestActor {
	if ctx == nil {
		return nil
	}
	if a, ok := ctx.Value(actorKey{}).(*RequestActor); ok {
		return a
	}
	return nil
}

// ActorID returns the current actor id, or "" for anonymous requests.
func ActorID(ctx context.Context) string {
	a := GetActor(ctx)
	if a == nil {
		return ""
	}
	return strings.TrimSpace(a.ActorID)
}
