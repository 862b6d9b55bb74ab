package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	xhttp "github.com/majmadigital/finance-ledger/pkg/http"
	"github.com/majmadigital/finance-ledger/pkg/logger"
)

const healthTimeout = 2 * time.Second

// Pinger is any dependency the service cannot work without.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency names a Pinger in health output.
type Dependency struct {
	Name   string
	Pinger Pinger
}

type HealthHandler struct {
	deps []Dependency
}

func RegisterHealthRoutes(e *router.Router, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

// NewHealthHandler checks deps in the order given and reports the first
// failure.
func NewHealthHandler(deps ...Dependency) *HealthHandler {
	return &HealthHandler{
		deps: deps,
	}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	// the request context is not cancellable outside a running server
	c, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	for _, dep := range h.deps {
		if err := dep.Pinger.Ping(c); err != nil {
			logger.Warn("health check failed", "dependency", dep.Name, "error", err)
			ctx.SetStatusCode(xhttp.StatusServiceUnavailable)
			ctx.Response.SetBodyString("unavailable: " + dep.Name)
			return
		}
	}
	ctx.Response.SetBodyString("success")
}
