package reqid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// New mints a request correlation id.
func New() string { return uuid.NewString() }

func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the correlation id carried by ctx, minting one when absent so
// log lines are always correlatable.
func From(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
		return v
	}
	return New()
}
