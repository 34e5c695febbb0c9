// Package auditctx carries the caller of a request through service calls so
// audit records can name who did what, from where.
package auditctx

import "context"

// Actor describes the caller. AccountID and Email stay empty until a session
// has been verified.
type Actor struct {
	AccountID string
	Email     string
	IPAddress string
	UserAgent string
	RequestID string
}

// Authenticated reports whether the actor is tied to an account.
func (a Actor) Authenticated() bool {
	return a.AccountID != ""
}

type key struct{}

// WithActor returns ctx carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key{}, actor)
}

// WithAccount attaches account details to the actor already in ctx, keeping
// its network and request metadata.
func WithAccount(ctx context.Context, accountID, email string) context.Context {
	actor, _ := FromContext(ctx)
	actor.AccountID = accountID
	actor.Email = email
	return WithActor(ctx, actor)
}

// FromContext returns the actor stored in ctx.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(key{}).(Actor)
	return actor, ok
}
