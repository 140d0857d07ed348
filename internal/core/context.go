package core

import "context"

type contextKey string

const ctxKeyRequestMeta contextKey = "request_meta"

// RequestMeta identifies the client behind an operation for merge history.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta attaches client metadata to ctx.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, ctxKeyRequestMeta, meta)
}

// RequestMetaFrom returns the metadata attached by WithRequestMeta, or the
// zero value.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(ctxKeyRequestMeta).(RequestMeta)
	return meta
}
