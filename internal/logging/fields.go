package logging

import (
	"context"
	"log/slog"
	"sync"
)

type fieldsKey struct{}

// fields holds request-scoped attributes that handlers add for the request log.
type fields struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

// WithFields returns a context that collects attributes added with AddField.
func WithFields(ctx context.Context) context.Context {
	return context.WithValue(ctx, fieldsKey{}, &fields{})
}

// AddField attaches attr to the request log of ctx. It is a no-op when ctx
// was not created by WithFields.
func AddField(ctx context.Context, attr slog.Attr) {
	f, ok := ctx.Value(fieldsKey{}).(*fields)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attrs = append(f.attrs, attr)
}

// Fields returns the attributes added to ctx.
func Fields(ctx context.Context) []slog.Attr {
	f, ok := ctx.Value(fieldsKey{}).(*fields)
	if !ok {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]slog.Attr(nil), f.attrs...)
}
