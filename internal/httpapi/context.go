package httpapi

import (
	"context"
)

// serverBaseCtx is canceled on shutdown so long waits in handlers end early.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
// nil resets it to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts derives from req (keeping its values and deadline) and is
// additionally canceled when base ends. The cancel func must be called.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(req)
	stop := context.AfterFunc(base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
