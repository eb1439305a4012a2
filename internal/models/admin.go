package models

import (
	"time"

	"github.com/google/uuid"
)

type AdminLevel string

const (
	LevelSuperAdmin AdminLevel = "super_admin"
	LevelAdmin      AdminLevel = "admin"
	LevelModerator  AdminLevel = "moderator"
)

func (l AdminLevel) Valid() bool {
	switch l {
	case LevelSuperAdmin, LevelAdmin, LevelModerator:
		return true
	}
	return false
}

const (
	MaxFailedLogins     = 5
	LockDuration        = 30 * time.Minute
	RecentActivityLimit = 50
)

type AdminProfile struct {
	ID                  string      `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID           string      `gorm:"type:uuid;uniqueIndex;not null" json:"accountId"`
	Level               AdminLevel  `gorm:"type:varchar(20);not null" json:"adminLevel"`
	Permissions         Permissions `gorm:"embedded;embeddedPrefix:perm_" json:"permissions"`
	IsLocked            bool        `gorm:"not null" json:"isLocked"`
	LockedUntil         *time.Time  `json:"lockedUntil,omitempty"`
	FailedLoginAttempts int         `gorm:"not null" json:"failedLoginAttempts"`
	LastLoginAt         *time.Time  `json:"lastLoginAt,omitempty"`
	LoginCount          int         `gorm:"not null" json:"loginCount"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

// NewAdminProfile creates the profile for an account being promoted to
// admin, with the default permissions of its level.
func NewAdminProfile(accountID string, level AdminLevel) *AdminProfile {
	return &AdminProfile{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Level:       level,
		Permissions: DefaultPermissions(level),
	}
}

// ChangeLevel moves the profile to level and resets permissions to that
// level's defaults.
func (a *AdminProfile) ChangeLevel(level AdminLevel) {
	a.Level = level
	a.Permissions = DefaultPermissions(level)
}

func (a *AdminProfile) IsSuperAdmin() bool {
	return a != nil && a.Level == LevelSuperAdmin
}

// HasPermission is always true for super admins.
func (a *AdminProfile) HasPermission(p Permission) bool {
	if a == nil {
		return false
	}
	if a.Level == LevelSuperAdmin {
		return true
	}
	return a.Permissions.Has(p)
}

// HasPermissionNamed resolves a free-form name. Unknown names are only
// granted to super admins.
func (a *AdminProfile) HasPermissionNamed(name string) bool {
	if a.IsSuperAdmin() {
		return true
	}
	p, ok := ParsePermission(name)
	if !ok {
		return false
	}
	return a.HasPermission(p)
}

// LockedAt reports whether the lock is still in force at now.
func (a *AdminProfile) LockedAt(now time.Time) bool {
	return a.IsLocked && a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

func (a *AdminProfile) RegisterFailedLogin(now time.Time) {
	if a.IsLocked && !a.LockedAt(now) {
		a.Unlock()
	}
	a.FailedLoginAttempts++
	if a.FailedLoginAttempts >= MaxFailedLogins {
		until := now.Add(LockDuration)
		a.IsLocked = true
		a.LockedUntil = &until
	}
}

func (a *AdminProfile) RegisterSuccessfulLogin(now time.Time) {
	a.Unlock()
	a.LastLoginAt = &now
	a.LoginCount++
}

func (a *AdminProfile) Unlock() {
	a.FailedLoginAttempts = 0
	a.IsLocked = false
	a.LockedUntil = nil
}

// AdminActivity is one entry of an admin's recent-activity list. The store
// keeps at most RecentActivityLimit rows per profile.
type AdminActivity struct {
	ID             string        `gorm:"type:uuid;primaryKey" json:"id"`
	AdminProfileID string        `gorm:"type:uuid;index;not null" json:"-"`
	Action         string        `gorm:"size:64;not null" json:"action"`
	Description    string        `json:"description"`
	IPAddress      string        `gorm:"size:64" json:"ipAddress,omitempty"`
	CreatedAt      time.Time     `gorm:"index" json:"timestamp"`
	AdminProfile   *AdminProfile `gorm:"foreignKey:AdminProfileID;constraint:OnDelete:CASCADE" json:"-"`
}
