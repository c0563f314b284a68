package instrument

import "context"

type correlationIDKey struct{}

// SetCorrelationID stores the correlation identifier in the context.
func SetCorrelationID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, cid)
}

// GetCorrelationID returns the correlation identifier stored in the context,
// or an empty string when none is set.
func GetCorrelationID(ctx context.Context) string {
	cid, _ := ctx.Value(correlationIDKey{}).(string)
	return cid
}
