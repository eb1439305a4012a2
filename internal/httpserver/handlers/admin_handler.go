package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"

	"citbif/internal/auth"
	"citbif/internal/models"
	"citbif/internal/store"
)

// AdminMyActivity returns the caller's recent-activity list.
func AdminMyActivity(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := auth.FromContext(r.Context())
		items, err := d.Accounts.ListAdminActivity(r.Context(), id.AdminProfile.ID)
		if err != nil {
			internalError(w, d.Log, "list admin activity failed", err)
			return
		}
		if items == nil {
			items = []models.AdminActivity{}
		}
		ok(w, http.StatusOK, "", items)
	}
}

// ListActivity pages through every account's activity, optionally
// filtered by ?accountId= and ?type=.
func ListActivity(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit := pageParams(r)
		q := r.URL.Query()
		recs, total, err := d.Activity.ListActivity(r.Context(), store.ActivityFilter{
			AccountID: q.Get("accountId"),
			Type:      q.Get("type"),
			Offset:    (page - 1) * limit,
			Limit:     limit,
		})
		if err != nil {
			internalError(w, d.Log, "list activity failed", err)
			return
		}
		okPage(w, recs, NewPagination(page, limit, total))
	}
}

func RevokeAccountSessions(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targetID := chi.URLParam(r, "id")
		target, err := d.Accounts.FindAccountByID(r.Context(), targetID)
		if err != nil {
			internalError(w, d.Log, "revoke sessions lookup failed", err)
			return
		}
		if target == nil {
			fail(w, http.StatusNotFound, "User not found.")
			return
		}
		revoked, err := d.Tokens.RevokeAllSessions(r.Context(), target.ID)
		if err != nil {
			internalError(w, d.Log, "revoke sessions failed", err)
			return
		}
		d.adminAction(r, auth.FromContext(r.Context()), "revoke_sessions",
			"Revoked all sessions of "+target.Email, map[string]any{"targetAccountId": target.ID})
		ok(w, http.StatusOK, "Sessions revoked", map[string]any{"revoked": revoked})
	}
}

func CleanupSessions(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Tokens.CleanupExpiredSessions(r.Context())
		if err != nil {
			internalError(w, d.Log, "session cleanup failed", err)
			return
		}
		d.adminAction(r, auth.FromContext(r.Context()), "cleanup_sessions",
			"Removed expired sessions", map[string]any{"removed": n})
		ok(w, http.StatusOK, "Expired sessions removed", map[string]any{"removed": n})
	}
}

type promoteReq struct {
	AccountID  string            `json:"accountId"`
	AdminLevel models.AdminLevel `json:"adminLevel"`
}

func (r *promoteReq) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AccountID, validation.Required),
		validation.Field(&r.AdminLevel, validation.Required,
			validation.In(models.LevelSuperAdmin, models.LevelAdmin, models.LevelModerator)),
	)
}

// PromoteAdmin turns an existing account into an admin of the requested
// level with that level's default permissions.
func PromoteAdmin(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req promoteReq
		if !decode(w, r, &req) {
			return
		}
		ctx := r.Context()
		target, err := d.Accounts.FindAccountByID(ctx, req.AccountID)
		if err != nil {
			internalError(w, d.Log, "promote lookup failed", err)
			return
		}
		if target == nil {
			fail(w, http.StatusNotFound, "User not found.")
			return
		}
		existing, err := d.Accounts.FindAdminProfileByAccountID(ctx, target.ID)
		if err != nil {
			internalError(w, d.Log, "promote profile lookup failed", err)
			return
		}
		if existing != nil {
			fail(w, http.StatusConflict, "User is already an admin.")
			return
		}
		profile := models.NewAdminProfile(target.ID, req.AdminLevel)
		if err := d.Accounts.PromoteToAdmin(ctx, target, profile); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				fail(w, http.StatusConflict, "User is already an admin.")
				return
			}
			internalError(w, d.Log, "promote failed", err)
			return
		}
		d.adminAction(r, auth.FromContext(ctx), "promote_admin",
			"Promoted "+target.Email+" to "+string(req.AdminLevel),
			map[string]any{"targetAccountId": target.ID, "adminLevel": req.AdminLevel})
		ok(w, http.StatusCreated, "Admin created", map[string]any{"user": target, "adminProfile": profile})
	}
}

// targetProfile loads the admin profile for the {id} account in the path,
// writing the 404 itself when there is none.
func targetProfile(d *Deps, w http.ResponseWriter, r *http.Request) (*models.AdminProfile, bool) {
	p, err := d.Accounts.FindAdminProfileByAccountID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		internalError(w, d.Log, "admin profile lookup failed", err)
		return nil, false
	}
	if p == nil {
		fail(w, http.StatusNotFound, "Admin profile not found.")
		return nil, false
	}
	return p, true
}

type levelReq struct {
	AdminLevel models.AdminLevel `json:"adminLevel"`
}

func (r *levelReq) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AdminLevel, validation.Required,
			validation.In(models.LevelSuperAdmin, models.LevelAdmin, models.LevelModerator)),
	)
}

// ChangeAdminLevel resets the target's permissions to the new level's
// defaults.
func ChangeAdminLevel(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req levelReq
		if !decode(w, r, &req) {
			return
		}
		caller := auth.FromContext(r.Context())
		if chi.URLParam(r, "id") == caller.Account.ID {
			fail(w, http.StatusBadRequest, "You cannot change your own admin level.")
			return
		}
		var from models.AdminLevel
		profile, err := d.Accounts.UpdateAdminProfile(r.Context(), chi.URLParam(r, "id"), func(p *models.AdminProfile) {
			from = p.Level
			p.ChangeLevel(req.AdminLevel)
		}, store.LevelColumns...)
		if err != nil {
			internalError(w, d.Log, "change level failed", err)
			return
		}
		if profile == nil {
			fail(w, http.StatusNotFound, "Admin profile not found.")
			return
		}
		d.adminAction(r, caller, "change_admin_level",
			"Changed admin level from "+string(from)+" to "+string(req.AdminLevel),
			map[string]any{"targetAccountId": profile.AccountID, "from": from, "to": req.AdminLevel})
		ok(w, http.StatusOK, "Admin level updated", profile)
	}
}

type permissionsReq struct {
	Permissions map[string]bool `json:"permissions"`
}

func (r *permissionsReq) Validate() error {
	if len(r.Permissions) == 0 {
		return validation.Errors{"permissions": errors.New("cannot be blank")}
	}
	errs := validation.Errors{}
	for name := range r.Permissions {
		if _, known := models.ParsePermission(name); !known {
			errs["permissions."+name] = errors.New("unknown permission")
		}
	}
	return errs.Filter()
}

// UpdateAdminPermissions sets individual flags. Only a super admin may
// edit another super admin.
func UpdateAdminPermissions(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req permissionsReq
		if !decode(w, r, &req) {
			return
		}
		caller := auth.FromContext(r.Context())
		if chi.URLParam(r, "id") == caller.Account.ID {
			fail(w, http.StatusBadRequest, "You cannot change your own permissions.")
			return
		}
		target, found := targetProfile(d, w, r)
		if !found {
			return
		}
		if target.IsSuperAdmin() && !caller.AdminProfile.IsSuperAdmin() {
			fail(w, http.StatusForbidden, "Access denied. Only a super admin can modify a super admin.")
			return
		}
		applied := make([]string, 0, len(req.Permissions))
		profile, err := d.Accounts.UpdateAdminProfile(r.Context(), target.AccountID, func(p *models.AdminProfile) {
			applied = applied[:0]
			for name, granted := range req.Permissions {
				perm, _ := models.ParsePermission(name)
				if p.Permissions.Set(perm, granted) {
					applied = append(applied, name)
				}
			}
		}, store.PermissionColumns...)
		if err != nil {
			internalError(w, d.Log, "update permissions failed", err)
			return
		}
		if profile == nil {
			fail(w, http.StatusNotFound, "Admin profile not found.")
			return
		}
		sort.Strings(applied)
		d.adminAction(r, caller, "update_permissions", "Updated admin permissions",
			map[string]any{"targetAccountId": profile.AccountID, "permissions": applied})
		ok(w, http.StatusOK, "Permissions updated", profile)
	}
}

func UnlockAdmin(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := d.Accounts.UpdateAdminProfile(r.Context(), chi.URLParam(r, "id"),
			(*models.AdminProfile).Unlock, store.LockColumns...)
		if err != nil {
			internalError(w, d.Log, "unlock failed", err)
			return
		}
		if profile == nil {
			fail(w, http.StatusNotFound, "Admin profile not found.")
			return
		}
		d.adminAction(r, auth.FromContext(r.Context()), "unlock_admin", "Unlocked admin account",
			map[string]any{"targetAccountId": profile.AccountID})
		ok(w, http.StatusOK, "Admin unlocked", profile)
	}
}
