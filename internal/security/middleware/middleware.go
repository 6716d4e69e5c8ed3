package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/internal/observability/metrics"
	"github.com/aryan0dhankhar/productcatalog/internal/security"
	"github.com/aryan0dhankhar/productcatalog/internal/security/audit"
	"github.com/aryan0dhankhar/productcatalog/internal/security/auth"
)

type ClaimsContextKey struct{}
type authErrorContextKey struct{}

// TokenVerifier resolves a bearer token into claims
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*auth.Claims, error)
}

// RateLimiter is satisfied by the in-memory and Redis limiters
type RateLimiter interface {
	Allow(key string) bool
	AllowStrict(identifier string, maxReqs int, window time.Duration) bool
}

// JWTMiddleware attaches verified claims to the request context when a bearer
// token is present. It never rejects on its own: the Require* guards decide,
// so public routes keep working with a stale token.
func JWTMiddleware(verifier TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				ctx = context.WithValue(ctx, authErrorContextKey{}, error(domain.ErrMissingCredential))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			claims, err := verifier.VerifyToken(ctx, tokenString)
			if err != nil {
				log.Debug("token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				ctx = context.WithValue(ctx, authErrorContextKey{}, err)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx = context.WithValue(ctx, ClaimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthenticated rejects requests without valid claims
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetClaimsFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, authError(r.Context()).Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole lets through only authenticated callers holding role
func RequireRole(role domain.Role, auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuthenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims.Role != role {
				auditLog.LogDenied(r.Context(), claims.UserID, "role "+string(role)+" required for "+r.Method+" "+r.URL.Path)
				writeError(w, http.StatusForbidden, domain.ErrAdminRoleRequired.Error())
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// RequirePermission lets through only callers whose role grants perm
func RequirePermission(authz *security.AuthorizationService, perm security.Permission, auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuthenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if err := authz.ValidatePermission(claims.Role, perm); err != nil {
				auditLog.LogDenied(r.Context(), claims.UserID, err.Error())
				writeError(w, http.StatusForbidden, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// RequireOwnerOrAdmin guards per-user routes: the {param} path value must be
// the caller's own id unless the caller is an admin. It must wrap a handler
// registered on a pattern that defines param.
func RequireOwnerOrAdmin(authz *security.AuthorizationServiceV2, param string, action security.Action, auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuthenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			id := r.PathValue(param)
			err := authz.ValidateResourceAccess(claims.UserID, claims.Role, security.ResourcePermission{
				ResourceType: security.ResourceUser,
				ResourceID:   id,
				OwnerID:      id,
				Action:       action,
			})
			if err != nil {
				auditLog.LogDenied(r.Context(), claims.UserID, "not owner of user "+id)
				writeError(w, http.StatusForbidden, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// RateLimitMiddleware applies the strict login limit per client address and
// the general limit per authenticated user (or address for anonymous calls).
// Client addresses are resolved through proxies; nil trusts no forwarding
// headers.
func RateLimitMiddleware(limiter RateLimiter, proxies *TrustedProxies, loginPath string, loginLimit int, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			ip := proxies.ClientIP(r)
			if r.Method == http.MethodPost && r.URL.Path == loginPath {
				if !limiter.AllowStrict(ip, loginLimit, time.Minute) {
					log.Warn("login rate limit exceeded", slog.String("client_ip", ip))
					writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			key := "ip:" + ip
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				key = "user:" + claims.UserID
			}
			if !limiter.Allow(key) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware writes one audit line per mutating request with its outcome
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}

			ww := &metrics.StatusWriter{ResponseWriter: w, Status: http.StatusOK}
			next.ServeHTTP(ww, r)

			userID := ""
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				userID = claims.UserID
			}
			status := "success"
			if ww.Status >= 400 {
				status = "failed"
			}
			resource, resourceID := resourceOf(r.URL.Path)
			auditLog.LogAction(r.Context(), userID, strings.ToLower(r.Method), resource, resourceID, status, http.StatusText(ww.Status))
		})
	}
}

// resourceOf splits /api/<resource>/<id>/... into its resource and id
func resourceOf(path string) (string, string) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api"), "/"), "/")
	resource, id := "", ""
	if len(parts) > 0 {
		resource = parts[0]
	}
	if len(parts) > 1 {
		id = parts[1]
	}
	return resource, id
}

func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c, ok := ctx.Value(ClaimsContextKey{}).(*auth.Claims); ok {
		return c
	}
	return nil
}

// WithClaims returns a context carrying claims, as JWTMiddleware would
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey{}, claims)
}

func authError(ctx context.Context) error {
	if err, ok := ctx.Value(authErrorContextKey{}).(error); ok {
		var de *domain.Error
		if errors.As(err, &de) {
			return de
		}
	}
	return domain.ErrMissingCredential
}

// TrustedProxies holds the networks whose X-Forwarded-For entries are believed
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies accepts single addresses and CIDR ranges
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	tp := &TrustedProxies{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			prefix, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
			}
			tp.prefixes = append(tp.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		tp.prefixes = append(tp.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return tp, nil
}

func (tp *TrustedProxies) trusts(addr netip.Addr) bool {
	if tp == nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range tp.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the caller address. X-Forwarded-For is only consulted when
// the direct peer is a trusted proxy; it is then walked from the nearest hop
// outward and the first untrusted address wins.
func (tp *TrustedProxies) ClientIP(r *http.Request) string {
	client := remoteHost(r)
	peer, err := netip.ParseAddr(client)
	if err != nil || !tp.trusts(peer) {
		return client
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		client = hop.Unmap().String()
		if !tp.trusts(hop) {
			break
		}
	}
	return client
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
