package httpapi

import (
	"context"
	"net/http"
)

// requestContext derives the handler context: it ends with the request, at
// shutdown (BaseContext) and, for chat, after ChatTimeout.
func (h handlers) requestContext(r *http.Request, chat bool) (context.Context, context.CancelFunc) {
	ctx, cancel := joinContexts(h.opts.BaseContext, r.Context())
	if !chat || h.opts.ChatTimeout <= 0 {
		return ctx, cancel
	}
	tctx, tcancel := context.WithTimeout(ctx, h.opts.ChatTimeout)
	return tctx, func() {
		tcancel()
		cancel()
	}
}

// joinContexts returns a child of req that is also cancelled when base is
// done. The returned cancel must be called when the handler ends.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(req)
	stop := context.AfterFunc(base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
