package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/target/clinic-portal/internal/audit"
	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/ports"
	"github.com/target/clinic-portal/internal/service"
	"github.com/target/clinic-portal/internal/session"
)

// SessionCookieName names the browser cookie carrying the session ID.
const SessionCookieName = "session_id"

var errMissingSession = errors.New("session middleware is not installed")

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					WriteError(w, ErrorParams{
						Code:    http.StatusInternalServerError,
						ErrCode: "internal",
						Err:     errors.New("An error occurred. Please try again."),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ClientAddr returns a middleware that records the caller's address for audit events.
// X-Forwarded-For is honored only when trustProxy is set.
func ClientAddr(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := r.RemoteAddr
			if host, _, err := net.SplitHostPort(addr); err == nil {
				addr = host
			}
			if trustProxy {
				if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
					first, _, _ := strings.Cut(fwd, ",")
					addr = strings.TrimSpace(first)
				}
			}
			next.ServeHTTP(w, r.WithContext(audit.WithRemoteAddr(r.Context(), addr)))
		})
	}
}

// SessionManager loads and persists server-side session records.
type SessionManager interface {
	Load(ctx context.Context, id string) (*session.Store, error)
	Persist(ctx context.Context, st *session.Store) error
}

// CookieConfig controls the attributes of the session cookie.
type CookieConfig struct {
	Domain string
	// Secure forces the Secure attribute; otherwise it follows the request scheme.
	Secure bool
}

// Sessions returns a middleware that attaches the caller's session to the
// request context. Callers without a valid session cookie get a fresh,
// unauthenticated store. Changes made while handling the request are persisted
// before the response is written.
func Sessions(mgr SessionManager, cookies CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := loadSession(r, mgr, logger)
			ctx := SetSessionInContext(r.Context(), st)
			r = r.WithContext(ctx)

			pw := &persistingWriter{ResponseWriter: w, persist: func() {
				current, ok := GetSessionFromContext(ctx)
				if !ok {
					return
				}
				if err := mgr.Persist(context.WithoutCancel(ctx), current); err != nil {
					logger.ErrorContext(ctx, "persist session failed", "session_id", current.ID(), "error", err)
					return
				}
				if current != st {
					// The handler installed a new session and set its cookie.
					return
				}
				syncSessionCookie(w, r, cookies, current)
			}}
			next.ServeHTTP(pw, r)
			pw.flush()
		})
	}
}

func loadSession(r *http.Request, mgr SessionManager, logger *slog.Logger) *session.Store {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return session.New(uuid.NewString())
	}
	st, err := mgr.Load(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, domainauth.ErrSessionNotFound) && !errors.Is(err, service.ErrSessionExpired) {
			logger.WarnContext(r.Context(), "load session failed", "error", err)
		}
		return session.New(uuid.NewString())
	}
	return st
}

// syncSessionCookie points the browser at st while it holds credentials and
// drops a stale cookie once it holds none.
func syncSessionCookie(w http.ResponseWriter, r *http.Request, cookies CookieConfig, st *session.Store) {
	had := ""
	if c, err := r.Cookie(SessionCookieName); err == nil {
		had = c.Value
	}
	live := st.AccessToken() != "" || st.RefreshCookie() != ""
	switch {
	case live && had != st.ID():
		setSessionCookie(w, r, cookies, st.ID())
	case !live && had != "":
		clearSessionCookie(w, r, cookies)
	}
}

// persistingWriter runs persist once, right before the first byte of the
// response goes out.
type persistingWriter struct {
	http.ResponseWriter
	persist func()
	once    sync.Once
}

func (w *persistingWriter) flush() { w.once.Do(w.persist) }

func (w *persistingWriter) WriteHeader(status int) {
	w.flush()
	w.ResponseWriter.WriteHeader(status)
}

func (w *persistingWriter) Write(b []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(b)
}

// Guard runs the route guard for one request.
type Guard interface {
	Check(ctx context.Context, sess ports.SessionState, client string) (service.GuardDecision, error)
}

// RequireAuth returns a middleware that lets a request through only when the
// route guard authenticates its session. The guard refreshes a missing or
// expiring token first. Browser requests that fail are redirected to
// loginPath; API requests get a 401 JSON response.
func RequireAuth(guard Guard, loginPath string, cookies CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, ok := GetSessionFromContext(r.Context())
			if !ok {
				WriteError(w, ErrorParams{
					Code:    http.StatusInternalServerError,
					ErrCode: "internal",
					Err:     errMissingSession,
				})
				return
			}

			browser := IsBrowserRequest(r)
			d, err := guard.Check(r.Context(), st, clientKind(browser))
			if err != nil {
				WriteError(w, ErrorParams{Code: 499, ErrCode: "canceled", Err: err})
				return
			}
			if d.Allowed() {
				next.ServeHTTP(w, r)
				return
			}

			clearSessionCookie(w, r, cookies)
			if browser {
				redirectToLogin(w, r, loginPath)
				return
			}
			WriteError(w, ErrorParams{
				Code:       http.StatusUnauthorized,
				ErrCode:    "authentication_required",
				Err:        errors.New("Your session has ended. Please log in again."),
				RedirectTo: loginURL(r, loginPath),
			})
		})
	}
}

// RequireRole returns a middleware that requires one of roles. It must run
// after RequireAuth.
func RequireRole(roles ...domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, ok := GetSessionFromContext(r.Context())
			if !ok || !slices.Contains(roles, st.Role()) {
				if IsBrowserRequest(r) {
					http.Error(w, "Access Denied: You don't have permission to access this resource", http.StatusForbidden)
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKind(browser bool) string {
	if browser {
		return "browser"
	}
	return "api"
}

// browserRequestKey is an unexported context key type for browser request detection.
type browserRequestKey struct{}

// BrowserDetection returns a middleware that detects browser requests vs API requests.
func BrowserDetection() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), browserRequestKey{}, isBrowserRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsBrowserRequest returns true if the current request is a page navigation.
func IsBrowserRequest(r *http.Request) bool {
	if val, ok := r.Context().Value(browserRequestKey{}).(bool); ok {
		return val
	}
	return isBrowserRequest(r)
}

// isBrowserRequest treats /api/ routes and XHR calls as API requests, and
// anything else that accepts HTML as a navigation.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return false
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	return strings.Contains(accept, "text/html")
}

// redirectToLogin redirects to loginPath with the current URL as redirect_uri.
func redirectToLogin(w http.ResponseWriter, r *http.Request, loginPath string) {
	http.Redirect(w, r, loginURL(r, loginPath), http.StatusSeeOther)
}

// loginURL is loginPath carrying r's path as the post-login destination.
func loginURL(r *http.Request, loginPath string) string {
	if loginPath == "" {
		loginPath = "/login"
	}
	q := url.Values{}
	q.Set("redirect_uri", safeRedirectPath(r.URL.RequestURI()))
	return loginPath + "?" + q.Encode()
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return candidate
}

// setSessionCookie writes the session cookie. It carries no Max-Age, so the
// browser drops it when the session ends; the server record has its own TTL.
func setSessionCookie(w http.ResponseWriter, r *http.Request, cookies CookieConfig, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		Domain:   cookies.Domain,
		HttpOnly: true,
		Secure:   isSecure(r, cookies),
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie, mirroring the attributes used to set it.
func clearSessionCookie(w http.ResponseWriter, r *http.Request, cookies CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cookies.Domain,
		HttpOnly: true,
		Secure:   isSecure(r, cookies),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

func isSecure(r *http.Request, cookies CookieConfig) bool {
	return cookies.Secure || r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
