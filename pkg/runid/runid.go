// Package runid carries the id shared by the logs, the report and the metrics of one
// health check.
package runid

import (
	"context"

	"github.com/google/uuid"
)

type key struct{}

// New returns a random (version 4) UUID.
func New() string {
	return uuid.NewString()
}

func ToContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, key{}, id)
}

// FromContext is empty outside of a run.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(key{}).(string)
	return id
}
