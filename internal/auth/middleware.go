package auth

import (
	"errors"

	xhttp "github.com/majmadigital/finance-ledger/pkg/http"
	"github.com/majmadigital/finance-ledger/pkg/logger"
)

const identityKey = "auth.identity"

// Require authenticates the request and lets it through when the caller may
// perform at least one of actions.
func (g *Gate) Require(actions ...Action) xhttp.MiddlewareFunc {
	return func(next xhttp.RequestHandler) xhttp.RequestHandler {
		return func(ctx *xhttp.RequestCtx) {
			id, err := g.Authenticate(ctx, string(ctx.Request.Header.Peek("Authorization")))
			if err != nil {
				if errors.Is(err, ErrUnauthenticated) {
					xhttp.WriteError(ctx, xhttp.StatusUnauthorized, ErrUnauthenticated.Error())
					return
				}
				logger.Error("Authentication lookup failed", "error", err)
				xhttp.WriteError(ctx, xhttp.StatusInternalServerError, xhttp.StatusText(xhttp.StatusInternalServerError))
				return
			}

			for _, a := range actions {
				if g.Authorize(id, a) == nil {
					ctx.SetUserValue(identityKey, id)
					next(ctx)
					return
				}
			}
			xhttp.WriteError(ctx, xhttp.StatusForbidden, ErrForbidden.Error())
		}
	}
}

// FromRequest returns the identity stored by Require.
func FromRequest(ctx *xhttp.RequestCtx) (*Identity, bool) {
	id, ok := ctx.UserValue(identityKey).(*Identity)
	return id, ok
}

// WithIdentity stores id on the request, as Require does.
func WithIdentity(ctx *xhttp.RequestCtx, id *Identity) {
	ctx.SetUserValue(identityKey, id)
}
