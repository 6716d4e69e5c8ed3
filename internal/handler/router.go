package handler

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/internal/observability/metrics"
	"github.com/aryan0dhankhar/productcatalog/internal/security"
	"github.com/aryan0dhankhar/productcatalog/internal/security/audit"
	"github.com/aryan0dhankhar/productcatalog/internal/security/middleware"
)

const (
	LoginPath  = "/api/auth/login"
	UploadPath = "/api/upload/image"

	defaultMaxBodyBytes = 1 << 20
)

// Routes holds everything the router needs
type Routes struct {
	Products      *ProductHandler
	Users         *UserHandler
	Auth          *AuthHandler
	Upload        *UploadHandler
	Health        *HealthHandler
	Invalidations *InvalidationsHandler

	Verifier       middleware.TokenVerifier
	Limiter        middleware.RateLimiter
	TrustedProxies *middleware.TrustedProxies
	LoginLimit     int
	AuditLog       *audit.Logger
	AllowedOrigins []string
	MaxBodyBytes   int64
	Logger         *slog.Logger
}

// NewRouter registers every route with its guard and wraps the mux in the
// middleware chain: request ID -> CORS -> path check -> JWT -> rate limit ->
// audit -> content type -> body limit -> metrics -> mux.
func NewRouter(rt Routes) http.Handler {
	log := rt.Logger
	if log == nil {
		log = slog.Default()
	}
	auditLog := rt.AuditLog
	if auditLog == nil {
		auditLog = audit.NewLogger(log)
	}
	maxBody := rt.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	authz := security.NewAuthorizationService(log)
	authzV2 := security.NewAuthorizationServiceV2(log)

	admin := middleware.RequireRole(domain.RoleAdmin, auditLog)
	can := func(p security.Permission) func(http.Handler) http.Handler {
		return middleware.RequirePermission(authz, p, auditLog)
	}
	ownerOr := func(action security.Action) func(http.Handler) http.Handler {
		return middleware.RequireOwnerOrAdmin(authzV2, "id", action, auditLog)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api", rt.Health.Root)
	mux.HandleFunc("GET /healthz", rt.Health.Health)
	mux.HandleFunc("GET /readyz", rt.Health.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST "+LoginPath, rt.Auth.Login)

	mux.HandleFunc("GET /api/products", rt.Products.List)
	mux.HandleFunc("GET /api/products/categories", rt.Products.Categories)
	mux.HandleFunc("GET /api/products/{slug}", rt.Products.GetBySlug)
	mux.Handle("POST /api/products", can(security.PermManageProducts)(http.HandlerFunc(rt.Products.Create)))
	mux.Handle("PUT /api/products/{id}", can(security.PermManageProducts)(http.HandlerFunc(rt.Products.Update)))
	mux.Handle("DELETE /api/products/{id}", can(security.PermManageProducts)(http.HandlerFunc(rt.Products.Delete)))

	mux.HandleFunc("POST /api/users/register", rt.Users.Register)
	mux.Handle("GET /api/users", can(security.PermListUsers)(http.HandlerFunc(rt.Users.List)))
	mux.Handle("GET /api/users/{id}", ownerOr(security.ActionRead)(http.HandlerFunc(rt.Users.Get)))
	mux.Handle("PATCH /api/users/{id}", ownerOr(security.ActionWrite)(http.HandlerFunc(rt.Users.Update)))
	mux.Handle("DELETE /api/users/{id}", admin(http.HandlerFunc(rt.Users.Delete)))
	mux.Handle("PATCH /api/users/{id}/deactivate", admin(http.HandlerFunc(rt.Users.Deactivate)))

	mux.Handle("POST "+UploadPath, can(security.PermUploadImages)(rt.Upload))

	if rt.Invalidations != nil {
		mux.Handle("GET /ws/invalidations", rt.Invalidations)
	}

	var h http.Handler = metrics.HTTPMetricsMiddleware(mux)
	h = middleware.LimitBody(maxBody, UploadPath)(h)
	h = middleware.ValidateJSONContentType(log, UploadPath)(h)
	h = middleware.AuditMiddleware(auditLog)(h)
	if rt.Limiter != nil {
		h = middleware.RateLimitMiddleware(rt.Limiter, rt.TrustedProxies, LoginPath, rt.LoginLimit, log)(h)
	}
	h = middleware.JWTMiddleware(rt.Verifier, log)(h)
	h = middleware.SanitizePath(log)(h)
	h = middleware.CORS(rt.AllowedOrigins)(h)
	return middleware.RequestID(log)(h)
}
