// Package requestcontext provides transport-independent context accessors for
// request-scoped values. Values are set once at the boundary (HTTP middleware
// or the bot update loop) and read by services, so every operation within one
// request observes the same "now" and the same actor. Tests inject fixed
// values the same way.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestTimeKey struct{}
	requestIDKey   struct{}
	actorKey       struct{}
)

// Role is the closed set of caller roles the core distinguishes.
type Role string

const (
	RoleOperator Role = "operator"
	RoleBuyer    Role = "buyer"
)

// Actor identifies who triggered the current operation: an operator deciding
// orders or a buyer requesting codes. The chat boundary authenticates; the
// core only reads the extracted role and id.
type Actor struct {
	ID   int64
	Role Role
}

// WithTime injects the request-scoped time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the request-scoped time, falling back to the wall clock when no
// boundary set one (background jobs, ad-hoc calls).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithRequestID injects a correlation id for logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation id, or "" when unset.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithActor injects the authenticated actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor and whether one was set.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
