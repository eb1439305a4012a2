// Package activity records a best-effort audit trail of authenticated
// actions. Nothing in this package can fail the request it instruments.
package activity

import (
	"context"
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"citbif/internal/models"
)

const (
	TypeTokenVerified   = "token_verified"
	TypeSignup          = "signup"
	TypeLogin           = "login"
	TypeLoginFailed     = "login_failed"
	TypeLogout          = "logout"
	TypeLogoutAll       = "logout_all"
	TypeTokenRefreshed  = "token_refreshed"
	TypePasswordChanged = "password_changed"
	TypeAdminAction     = "admin_action"

	writeTimeout = 5 * time.Second
)

// Sink persists one record.
type Sink interface {
	Record(ctx context.Context, rec *models.ActivityRecord) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec *models.ActivityRecord) error

func (f SinkFunc) Record(ctx context.Context, rec *models.ActivityRecord) error {
	if f == nil {
		return nil
	}
	return f(ctx, rec)
}

type AccountResolver interface {
	FindAccountByID(ctx context.Context, id string) (*models.Account, error)
}

// Entry is what callers hand to the recorder.
type Entry struct {
	AccountID   string
	Type        string
	Description string
	IPAddress   string
	UserAgent   string
	Metadata    map[string]any
}

type Recorder struct {
	accounts AccountResolver
	sinks    []Sink
	lg       *zap.SugaredLogger
	now      func() time.Time
	wg       sync.WaitGroup

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewRecorder(accounts AccountResolver, lg *zap.SugaredLogger, sinks ...Sink) *Recorder {
	return &Recorder{
		accounts: accounts,
		sinks:    sinks,
		lg:       lg.Named("activity"),
		now:      time.Now,
		entropy:  ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Record resolves the acting account and writes e to every sink. A sink
// failure is logged and the remaining sinks still run.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.lg.Errorw("activity recorder panic", "panic", fmt.Sprint(p), "type", e.Type)
		}
	}()

	acc, err := r.accounts.FindAccountByID(ctx, e.AccountID)
	if err != nil {
		r.lg.Warnw("activity account lookup failed", "account_id", e.AccountID, "type", e.Type, "error", err)
		return
	}
	if acc == nil {
		r.lg.Warnw("activity for unknown account dropped", "account_id", e.AccountID, "type", e.Type)
		return
	}

	now := r.now()
	rec := &models.ActivityRecord{
		ID:          r.newID(now),
		AccountID:   acc.ID,
		Type:        e.Type,
		Description: e.Description,
		IPAddress:   e.IPAddress,
		UserAgent:   e.UserAgent,
		Metadata:    models.NewJSONB(e.Metadata),
		CreatedAt:   now,
	}
	for _, s := range r.sinks {
		if err := s.Record(ctx, rec); err != nil {
			r.lg.Warnw("activity write failed", "account_id", rec.AccountID, "type", rec.Type, "error", err)
		}
	}
}

// Go records e in the background on a context detached from the request.
func (r *Recorder) Go(ctx context.Context, e Entry) {
	if r == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		r.Record(wctx, e)
	}()
}

// Wait blocks until every record started with Go has finished.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

func (r *Recorder) newID(now time.Time) string {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), r.entropy).String()
}
