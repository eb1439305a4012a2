package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPermissionsByLevel(t *testing.T) {
	super := DefaultPermissions(LevelSuperAdmin)
	assert.Len(t, super.Granted(), len(AllPermissions))

	admin := DefaultPermissions(LevelAdmin)
	assert.True(t, admin.Has(PermManageUsers))
	assert.False(t, admin.Has(PermManageSettings))
	assert.False(t, admin.Has(PermManageAdmins))

	mod := DefaultPermissions(LevelModerator)
	assert.ElementsMatch(t,
		[]Permission{PermManageStartups, PermManageEvents, PermManageDocuments, PermViewReports},
		mod.Granted())

	assert.Empty(t, DefaultPermissions("janitor").Granted())
}

func TestNewAdminProfileAndChangeLevel(t *testing.T) {
	p := NewAdminProfile("acc-1", LevelModerator)
	require.NotEmpty(t, p.ID)
	assert.Equal(t, "acc-1", p.AccountID)
	assert.False(t, p.Permissions.Has(PermManageUsers))

	p.Permissions.Set(PermExportData, true)
	p.ChangeLevel(LevelAdmin)
	assert.Equal(t, LevelAdmin, p.Level)
	assert.Equal(t, DefaultPermissions(LevelAdmin), p.Permissions)
}

func TestHasPermission(t *testing.T) {
	super := NewAdminProfile("a", LevelSuperAdmin)
	super.Permissions = Permissions{}
	assert.True(t, super.HasPermission(PermManageSettings))
	assert.True(t, super.HasPermissionNamed("canLaunchRockets"))

	mod := NewAdminProfile("b", LevelModerator)
	assert.True(t, mod.HasPermissionNamed("canViewReports"))
	assert.False(t, mod.HasPermissionNamed("canManageSettings"))
	assert.False(t, mod.HasPermissionNamed("canLaunchRockets"))
	assert.False(t, mod.HasPermissionNamed("canviewreports"))

	var none *AdminProfile
	assert.False(t, none.HasPermission(PermViewReports))
}

func TestPermissionsSetUnknown(t *testing.T) {
	var p Permissions
	assert.False(t, p.Set("canFly", true))
	assert.True(t, p.Set(PermManageEvents, true))
	assert.True(t, p.Has(PermManageEvents))
}

func TestFailedLoginLocksAfterFive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewAdminProfile("a", LevelAdmin)

	for i := 0; i < MaxFailedLogins-1; i++ {
		p.RegisterFailedLogin(now)
		assert.False(t, p.IsLocked)
	}
	p.RegisterFailedLogin(now)

	assert.True(t, p.IsLocked)
	require.NotNil(t, p.LockedUntil)
	assert.Equal(t, now.Add(30*time.Minute), *p.LockedUntil)
	assert.True(t, p.LockedAt(now.Add(29*time.Minute)))
	assert.False(t, p.LockedAt(now.Add(30*time.Minute)))

	p.RegisterSuccessfulLogin(now.Add(time.Hour))
	assert.Equal(t, 0, p.FailedLoginAttempts)
	assert.False(t, p.IsLocked)
	assert.Nil(t, p.LockedUntil)
	assert.Equal(t, 1, p.LoginCount)
	require.NotNil(t, p.LastLoginAt)
}

func TestFailedLoginAfterLockExpiryStartsOver(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewAdminProfile("a", LevelAdmin)
	for i := 0; i < MaxFailedLogins; i++ {
		p.RegisterFailedLogin(now)
	}
	later := now.Add(LockDuration + time.Minute)
	p.RegisterFailedLogin(later)

	assert.Equal(t, 1, p.FailedLoginAttempts)
	assert.False(t, p.IsLocked)
}

func TestJSONB(t *testing.T) {
	j := NewJSONB(map[string]any{"path": "/api/auth/me"})
	assert.Equal(t, "/api/auth/me", j.Map()["path"])

	out, err := json.Marshal(struct {
		M JSONB `json:"m"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"m":{}}`, string(out))

	var scanned JSONB
	require.NoError(t, scanned.Scan(nil))
	assert.Equal(t, "{}", string(scanned))
	assert.Error(t, scanned.Scan(42))
}
