package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"citbif/internal/activity"
	"citbif/internal/auth"
	"citbif/internal/metrics"
	"citbif/internal/models"
	"citbif/internal/store"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

type signupReq struct {
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Password string      `json:"password"`
	FullName string      `json:"fullName"`
	Role     models.Role `json:"role"`
}

func (r *signupReq) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.TrimSpace(r.Username)
	if r.Role == "" {
		r.Role = models.RoleIndividual
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Username, validation.Required, validation.Length(3, 30), validation.Match(usernamePattern)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(&r.FullName, validation.Length(0, 200)),
		// admins are created by promotion only
		validation.Field(&r.Role, validation.In(models.RoleIndividual, models.RoleEnterprise)),
	)
}

func Signup(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupReq
		if !decode(w, r, &req) {
			return
		}
		ctx := r.Context()
		taken, err := d.Accounts.AccountExists(ctx, req.Email, req.Username)
		if err != nil {
			internalError(w, d.Log, "signup lookup failed", err)
			return
		}
		if taken {
			fail(w, http.StatusConflict, "User with this email or username already exists.")
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			internalError(w, d.Log, "signup hash failed", err)
			return
		}
		account := &models.Account{
			ID:           uuid.NewString(),
			Email:        req.Email,
			Username:     req.Username,
			FullName:     strings.TrimSpace(req.FullName),
			PasswordHash: hash,
			Role:         req.Role,
		}
		if err := d.Accounts.CreateAccount(ctx, account); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				fail(w, http.StatusConflict, "User with this email or username already exists.")
				return
			}
			internalError(w, d.Log, "signup create failed", err)
			return
		}
		pair, err := d.Tokens.IssueTokenPair(ctx, account, nil, auth.ClientMetaFromRequest(r))
		if err != nil {
			internalError(w, d.Log, "signup token issue failed", err)
			return
		}
		d.record(r, account.ID, activity.TypeSignup, "Account created", map[string]any{"role": account.Role})
		ok(w, http.StatusCreated, "User registered successfully", map[string]any{
			"user":   account,
			"tokens": pair,
		})
	}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *loginReq) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func Login(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if !decode(w, r, &req) {
			return
		}
		ctx := r.Context()
		account, err := d.Accounts.FindAccountByEmail(ctx, req.Email)
		if err != nil {
			internalError(w, d.Log, "login lookup failed", err)
			return
		}
		if account == nil {
			fail(w, http.StatusUnauthorized, "Invalid credentials.")
			return
		}

		var profile *models.AdminProfile
		if account.IsAdmin() {
			profile, err = d.Accounts.FindAdminProfileByAccountID(ctx, account.ID)
			if err != nil {
				internalError(w, d.Log, "login admin profile lookup failed", err)
				return
			}
		}
		now := d.now()
		if profile != nil && profile.LockedAt(now) {
			d.Metrics.AuthOutcome(metrics.OutcomeLocked)
			failWith(w, http.StatusLocked, "Account is locked due to too many failed login attempts. Try again later.",
				map[string]any{"lockedUntil": profile.LockedUntil})
			return
		}

		if err := auth.CheckPassword(account.PasswordHash, req.Password); err != nil {
			if !errors.Is(err, auth.ErrPasswordMismatch) {
				internalError(w, d.Log, "login password check failed", err)
				return
			}
			meta := map[string]any{}
			if profile != nil {
				updated, err := d.Accounts.UpdateAdminProfile(ctx, account.ID,
					func(p *models.AdminProfile) { p.RegisterFailedLogin(now) }, store.LockColumns...)
				if err != nil {
					d.Log.Warnw("failed-login bookkeeping not saved", "account_id", account.ID, "error", err)
				} else if updated != nil {
					meta["failedLoginAttempts"] = updated.FailedLoginAttempts
					meta["locked"] = updated.IsLocked
				}
			}
			d.record(r, account.ID, activity.TypeLoginFailed, "Invalid password", meta)
			fail(w, http.StatusUnauthorized, "Invalid credentials.")
			return
		}

		if profile != nil {
			updated, err := d.Accounts.UpdateAdminProfile(ctx, account.ID,
				func(p *models.AdminProfile) { p.RegisterSuccessfulLogin(now) }, store.LoginColumns...)
			switch {
			case err != nil:
				d.Log.Warnw("login bookkeeping not saved", "account_id", account.ID, "error", err)
			case updated != nil:
				profile = updated
			}
		}
		pair, err := d.Tokens.IssueTokenPair(ctx, account, profile, auth.ClientMetaFromRequest(r))
		if err != nil {
			internalError(w, d.Log, "login token issue failed", err)
			return
		}
		d.record(r, account.ID, activity.TypeLogin, "Logged in", nil)
		if profile != nil {
			d.adminAction(r, &auth.Identity{Account: account, AdminProfile: profile}, "login", "Admin logged in", nil)
		}

		data := map[string]any{"user": account, "tokens": pair}
		if profile != nil {
			data["adminProfile"] = profile
		}
		ok(w, http.StatusOK, "Login successful", data)
	}
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *refreshReq) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.RefreshToken, validation.Required))
}

func Refresh(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshReq
		if !decode(w, r, &req) {
			return
		}
		pair, account, err := d.Tokens.Refresh(r.Context(), req.RefreshToken, auth.ClientMetaFromRequest(r))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrSessionWrite):
				internalError(w, d.Log, "refresh token issue failed", err)
				return
			case errors.Is(err, auth.ErrAccountLookup), errors.Is(err, auth.ErrSessionLookup):
				internalError(w, d.Log, "refresh lookup failed", err)
				return
			}
			d.Metrics.AuthOutcome(metrics.OutcomeInvalidToken)
			fail(w, http.StatusUnauthorized, "Invalid or expired refresh token.")
			return
		}
		d.record(r, account.ID, activity.TypeTokenRefreshed, "Refresh token rotated", nil)
		ok(w, http.StatusOK, "Token refreshed", map[string]any{"tokens": pair})
	}
}

type logoutReq struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *logoutReq) Validate() error { return nil }

// Logout revokes the presented refresh token when it belongs to the
// caller. Access tokens stay valid until they expire.
func Logout(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req logoutReq
		if !decode(w, r, &req) {
			return
		}
		account := auth.AccountFromContext(r.Context())
		revoked := false
		if req.RefreshToken != "" {
			res := d.Tokens.ValidateRefreshToken(r.Context(), req.RefreshToken)
			if res.Valid && res.Claims.AccountID == account.ID {
				var err error
				if revoked, err = d.Tokens.RevokeRefreshToken(r.Context(), res.TokenID); err != nil {
					internalError(w, d.Log, "logout revoke failed", err)
					return
				}
			}
		}
		d.record(r, account.ID, activity.TypeLogout, "Logged out", map[string]any{"sessionRevoked": revoked})
		ok(w, http.StatusOK, "Logged out successfully", nil)
	}
}

func LogoutAll(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := auth.AccountFromContext(r.Context())
		revoked, err := d.Tokens.RevokeAllSessions(r.Context(), account.ID)
		if err != nil {
			internalError(w, d.Log, "logout-all failed", err)
			return
		}
		d.record(r, account.ID, activity.TypeLogoutAll, "Logged out of all sessions", nil)
		ok(w, http.StatusOK, "Logged out from all devices", map[string]any{"revoked": revoked})
	}
}

func Me(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := auth.FromContext(r.Context())
		data := map[string]any{"user": id.Account}
		if id.AdminProfile != nil {
			data["adminProfile"] = id.AdminProfile
		}
		ok(w, http.StatusOK, "", data)
	}
}

// Whoami runs behind optional auth and never fails.
func Whoami(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := auth.AccountFromContext(r.Context())
		if account == nil {
			ok(w, http.StatusOK, "", map[string]any{"authenticated": false})
			return
		}
		ok(w, http.StatusOK, "", map[string]any{"authenticated": true, "user": account})
	}
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r *changePasswordReq) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword,
			validation.Required,
			validation.Length(8, 128),
			validation.NotIn(r.CurrentPassword).Error("must differ from the current password"),
		),
	)
}

// ChangePassword revokes every session of the account and hands back a
// fresh token pair for the caller.
func ChangePassword(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordReq
		if !decode(w, r, &req) {
			return
		}
		ctx := r.Context()
		id := auth.FromContext(ctx)
		if err := auth.CheckPassword(id.Account.PasswordHash, req.CurrentPassword); err != nil {
			if errors.Is(err, auth.ErrPasswordMismatch) {
				fail(w, http.StatusBadRequest, "Current password is incorrect.")
				return
			}
			internalError(w, d.Log, "change password check failed", err)
			return
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			internalError(w, d.Log, "change password hash failed", err)
			return
		}
		if err := d.Accounts.UpdatePasswordHash(ctx, id.Account.ID, hash); err != nil {
			internalError(w, d.Log, "change password update failed", err)
			return
		}
		id.Account.PasswordHash = hash
		if _, err := d.Tokens.RevokeAllSessions(ctx, id.Account.ID); err != nil {
			internalError(w, d.Log, "change password revoke failed", err)
			return
		}
		pair, err := d.Tokens.IssueTokenPair(ctx, id.Account, id.AdminProfile, auth.ClientMetaFromRequest(r))
		if err != nil {
			internalError(w, d.Log, "change password token issue failed", err)
			return
		}
		d.record(r, id.Account.ID, activity.TypePasswordChanged, "Password changed", nil)
		ok(w, http.StatusOK, "Password changed successfully", map[string]any{"tokens": pair})
	}
}

// MyActivity lists the caller's own activity records, newest first.
func MyActivity(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit := pageParams(r)
		account := auth.AccountFromContext(r.Context())
		recs, total, err := d.Activity.ListActivity(r.Context(), store.ActivityFilter{
			AccountID: account.ID,
			Type:      r.URL.Query().Get("type"),
			Offset:    (page - 1) * limit,
			Limit:     limit,
		})
		if err != nil {
			internalError(w, d.Log, "list own activity failed", err)
			return
		}
		okPage(w, recs, NewPagination(page, limit, total))
	}
}
