package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"citbif/internal/activity"
	"citbif/internal/metrics"
	"citbif/internal/models"
)

const (
	msgNoToken       = "Access denied. No token provided."
	msgInvalidToken  = "Invalid or expired token."
	msgUserNotFound  = "Invalid token. User not found."
	msgAuthRequired  = "Authentication required."
	msgInsufficient  = "Access denied. Insufficient permissions."
	msgAdminOnly     = "Access denied. Admin privileges required."
	msgNoProfile     = "Admin profile not found."
	msgLocked        = "Admin account is locked. Try again later."
	msgMissingPerm   = "Access denied. Missing permission: "
	msgSuperAdmin    = "Access denied. Super admin privileges required."
	bearerScheme     = "Bearer"
	headerAuthorizer = "Authorization"
)

// Authenticator turns bearer tokens into an Identity on the request
// context and provides the role, admin and permission gates.
type Authenticator struct {
	tokens   *Service
	accounts AccountResolver
	activity *activity.Recorder
	metrics  *metrics.Metrics
	lg       *zap.SugaredLogger

	// exposeErrors attaches validation detail to 401 bodies outside production.
	exposeErrors bool
	now          func() time.Time
}

func NewAuthenticator(tokens *Service, accounts AccountResolver, rec *activity.Recorder, m *metrics.Metrics, lg *zap.SugaredLogger, exposeErrors bool) *Authenticator {
	return &Authenticator{
		tokens:       tokens,
		accounts:     accounts,
		activity:     rec,
		metrics:      m,
		lg:           lg.Named("authn"),
		exposeErrors: exposeErrors,
		now:          time.Now,
	}
}

type rejection struct {
	status  int
	outcome string
	body    map[string]any
}

func (a *Authenticator) reject(w http.ResponseWriter, rj *rejection) {
	a.metrics.AuthOutcome(rj.outcome)
	writeJSON(w, rj.status, rj.body)
}

func failBody(msg string) map[string]any {
	return map[string]any{"success": false, "message": msg}
}

// BearerToken accepts exactly "Bearer <token>".
func BearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != bearerScheme || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func (a *Authenticator) resolve(r *http.Request) (*Identity, *rejection) {
	raw, ok := BearerToken(r.Header.Get(headerAuthorizer))
	if !ok {
		return nil, &rejection{http.StatusUnauthorized, metrics.OutcomeNoToken, failBody(msgNoToken)}
	}

	res := a.tokens.ValidateAccessToken(raw)
	if !res.Valid {
		body := failBody(msgInvalidToken)
		if a.exposeErrors && res.Err != nil {
			body["error"] = res.Err.Error()
		}
		return nil, &rejection{http.StatusUnauthorized, metrics.OutcomeInvalidToken, body}
	}

	ctx := r.Context()
	account, err := a.accounts.FindAccountByID(ctx, res.Claims.Subject)
	if err != nil {
		a.lg.Warnw("account lookup failed", "subject", res.Claims.Subject, "error", err)
	}
	if account == nil {
		return nil, &rejection{http.StatusUnauthorized, metrics.OutcomeUnknownUser, failBody(msgUserNotFound)}
	}

	id := &Identity{Account: account}
	if account.IsAdmin() {
		profile, err := a.accounts.FindAdminProfileByAccountID(ctx, account.ID)
		if err != nil {
			a.lg.Warnw("admin profile lookup failed", "account_id", account.ID, "error", err)
		}
		id.AdminProfile = profile
	}

	a.activity.Go(ctx, activity.Entry{
		AccountID:   account.ID,
		Type:        activity.TypeTokenVerified,
		Description: "Token verified for " + r.Method + " " + r.URL.Path,
		IPAddress:   ClientIP(r),
		UserAgent:   r.UserAgent(),
	})
	return id, nil
}

// JWTAuth rejects requests without a valid token for an existing account.
func (a *Authenticator) JWTAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, rj := a.resolve(r)
		if rj != nil {
			a.reject(w, rj)
			return
		}
		a.metrics.AuthOutcome(metrics.OutcomeOK)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Optional attaches an identity when the caller presents a usable
// token and otherwise lets the request through anonymously.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, rj := a.resolve(r)
		if rj != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (a *Authenticator) Authorize(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := AccountFromContext(r.Context())
			if account == nil {
				a.reject(w, &rejection{http.StatusUnauthorized, metrics.OutcomeNoToken, failBody(msgAuthRequired)})
				return
			}
			for _, role := range roles {
				if account.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			body := failBody(msgInsufficient)
			body["requiredRoles"] = roles
			body["currentRole"] = account.Role
			a.reject(w, &rejection{http.StatusForbidden, metrics.OutcomeForbidden, body})
		})
	}
}

// RequireAdmin passes admins whose profile exists, is not locked and
// holds every listed permission.
func (a *Authenticator) RequireAdmin(perms ...models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil || id.Account == nil {
				a.reject(w, &rejection{http.StatusUnauthorized, metrics.OutcomeNoToken, failBody(msgAuthRequired)})
				return
			}
			if !id.Account.IsAdmin() {
				a.reject(w, &rejection{http.StatusForbidden, metrics.OutcomeForbidden, failBody(msgAdminOnly)})
				return
			}
			if id.AdminProfile == nil {
				profile, err := a.accounts.FindAdminProfileByAccountID(r.Context(), id.Account.ID)
				if err != nil {
					a.lg.Warnw("admin profile lookup failed", "account_id", id.Account.ID, "error", err)
				}
				if profile == nil {
					a.reject(w, &rejection{http.StatusForbidden, metrics.OutcomeForbidden, failBody(msgNoProfile)})
					return
				}
				id.AdminProfile = profile
			}
			if p := id.AdminProfile; p.LockedAt(a.now()) {
				body := failBody(msgLocked)
				body["lockedUntil"] = p.LockedUntil
				a.reject(w, &rejection{http.StatusLocked, metrics.OutcomeLocked, body})
				return
			}
			for _, perm := range perms {
				if !id.AdminProfile.HasPermission(perm) {
					body := failBody(msgMissingPerm + string(perm))
					body["requiredPermission"] = perm
					a.reject(w, &rejection{http.StatusForbidden, metrics.OutcomeForbidden, body})
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireSuperAdmin must run after RequireAdmin.
func (a *Authenticator) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := FromContext(r.Context())
		if id == nil || !id.AdminProfile.IsSuperAdmin() {
			a.reject(w, &rejection{http.StatusForbidden, metrics.OutcomeForbidden, failBody(msgSuperAdmin)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
