// Package httptransport assembles the storefront's HTTP surface from the
// per-domain handlers. Handlers own their routes; this package only decides
// which middleware stack each group of routes runs behind.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	id "storefront/pkg/domain"
	"storefront/pkg/platform/httputil"
	"storefront/pkg/platform/middleware/auth"
	"storefront/pkg/platform/middleware/metadata"
	"storefront/pkg/platform/middleware/ratelimit"
	request "storefront/pkg/platform/middleware/request"
	"storefront/pkg/platform/middleware/requesttime"
)

// Routes is implemented by every domain handler.
type Routes interface {
	Register(r chi.Router)
}

// AdminRoutes is implemented by handlers that expose management endpoints.
type AdminRoutes interface {
	RegisterAdmin(r chi.Router)
}

// IdentityRoutes splits identity endpoints by the protection they need.
type IdentityRoutes interface {
	RegisterAuth(r chi.Router)
	RegisterAccount(r chi.Router)
	RegisterAdmin(r chi.Router)
}

// CatalogRoutes serves the public catalog plus product management.
type CatalogRoutes interface {
	Routes
	AdminRoutes
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps carries everything the router mounts.
type Deps struct {
	Logger         *slog.Logger
	Validator      auth.JWTValidator
	LoginLimiter   *ratelimit.Limiter
	Latency        request.LatencyObserver
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
	// TrustedProxies may set X-Forwarded-For; everyone else is keyed by
	// socket address.
	TrustedProxies []netip.Prefix

	Identity IdentityRoutes
	Catalog  CatalogRoutes
	Currency Routes
	Cart     Routes
	Checkout Routes
	Orders   Routes
	Webhooks Routes
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewRouter wires public, authenticated and admin route groups.
//
// Public: health, metrics, catalog browsing, currency rates, payment webhooks
// and the rate-limited auth endpoints. Authenticated: account, cart,
// checkout and orders; order endpoints apply the role matrix in the service.
// Admin: product and role management.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(logger))
	r.Use(request.Logger(logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.NewResolver(deps.TrustedProxies...).ClientMetadata)
	r.Use(request.Latency(deps.Latency))
	r.Use(request.Timeout(timeout))

	r.Get("/healthz", healthHandler(logger, deps.HealthChecks))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	register(r, deps.Catalog)
	register(r, deps.Currency)
	register(r, deps.Webhooks)

	if deps.Identity != nil {
		r.Group(func(r chi.Router) {
			if deps.LoginLimiter != nil {
				r.Use(deps.LoginLimiter.Middleware)
			}
			deps.Identity.RegisterAuth(r)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Validator, logger))
		if deps.Identity != nil {
			deps.Identity.RegisterAccount(r)
		}
		register(r, deps.Cart)
		register(r, deps.Checkout)
		register(r, deps.Orders)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(logger, id.RoleAdmin))
			if deps.Catalog != nil {
				deps.Catalog.RegisterAdmin(r)
			}
			if deps.Identity != nil {
				deps.Identity.RegisterAdmin(r)
			}
		})
	})

	return r
}

func register(r chi.Router, routes Routes) {
	if routes != nil {
		routes.Register(r)
	}
}

// healthHandler reports each dependency as "ok" or "unavailable". Failure
// details go to the log only; they can carry connection strings.
func healthHandler(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "health check failed", "check", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
