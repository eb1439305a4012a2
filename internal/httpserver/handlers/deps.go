package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"citbif/internal/activity"
	"citbif/internal/auth"
	"citbif/internal/metrics"
	"citbif/internal/models"
	"citbif/internal/store"
)

// AccountStore is the part of the credential store the handlers use.
type AccountStore interface {
	auth.AccountResolver
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	AccountExists(ctx context.Context, email, username string) (bool, error)
	CreateAccount(ctx context.Context, a *models.Account) error
	UpdatePasswordHash(ctx context.Context, accountID, hash string) error
	PromoteToAdmin(ctx context.Context, account *models.Account, profile *models.AdminProfile) error
	UpdateAdminProfile(ctx context.Context, accountID string, mutate func(*models.AdminProfile), columns ...string) (*models.AdminProfile, error)
	AppendAdminActivity(ctx context.Context, a *models.AdminActivity) error
	ListAdminActivity(ctx context.Context, profileID string) ([]models.AdminActivity, error)
}

type ActivityLister interface {
	ListActivity(ctx context.Context, f store.ActivityFilter) ([]models.ActivityRecord, int64, error)
}

type Deps struct {
	Accounts AccountStore
	Activity ActivityLister
	Tokens   *auth.Service
	Recorder *activity.Recorder
	Metrics  *metrics.Metrics
	Log      *zap.SugaredLogger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) record(r *http.Request, accountID, typ, desc string, meta map[string]any) {
	d.Recorder.Go(r.Context(), activity.Entry{
		AccountID:   accountID,
		Type:        typ,
		Description: desc,
		IPAddress:   auth.ClientIP(r),
		UserAgent:   r.UserAgent(),
		Metadata:    meta,
	})
}

// adminAction writes to the acting admin's recent-activity list and the
// activity log. Neither failure reaches the caller.
func (d *Deps) adminAction(r *http.Request, id *auth.Identity, action, desc string, meta map[string]any) {
	if id.AdminProfile != nil {
		err := d.Accounts.AppendAdminActivity(r.Context(), &models.AdminActivity{
			ID:             uuid.NewString(),
			AdminProfileID: id.AdminProfile.ID,
			Action:         action,
			Description:    desc,
			IPAddress:      auth.ClientIP(r),
			CreatedAt:      d.now(),
		})
		if err != nil {
			d.Log.Warnw("admin activity not saved", "admin_profile_id", id.AdminProfile.ID, "action", action, "error", err)
		}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["action"] = action
	d.record(r, id.Account.ID, activity.TypeAdminAction, desc, meta)
}
