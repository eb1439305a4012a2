package models

// Permission names a single admin capability. The set is closed: route
// gates reference the constants, and free-form names from requests go
// through ParsePermission.
type Permission string

const (
	PermManageUsers     Permission = "canManageUsers"
	PermManageStartups  Permission = "canManageStartups"
	PermManageMentors   Permission = "canManageMentors"
	PermManageInvestors Permission = "canManageInvestors"
	PermManageEvents    Permission = "canManageEvents"
	PermManageDocuments Permission = "canManageDocuments"
	PermViewReports     Permission = "canViewReports"
	PermExportData      Permission = "canExportData"
	PermManageSettings  Permission = "canManageSettings"
	PermManageAdmins    Permission = "canManageAdmins"
)

var AllPermissions = []Permission{
	PermManageUsers,
	PermManageStartups,
	PermManageMentors,
	PermManageInvestors,
	PermManageEvents,
	PermManageDocuments,
	PermViewReports,
	PermExportData,
	PermManageSettings,
	PermManageAdmins,
}

func ParsePermission(name string) (Permission, bool) {
	for _, p := range AllPermissions {
		if string(p) == name {
			return p, true
		}
	}
	return "", false
}

// Permissions is stored as ten boolean columns on admin_profiles.
type Permissions struct {
	ManageUsers     bool `gorm:"not null" json:"canManageUsers"`
	ManageStartups  bool `gorm:"not null" json:"canManageStartups"`
	ManageMentors   bool `gorm:"not null" json:"canManageMentors"`
	ManageInvestors bool `gorm:"not null" json:"canManageInvestors"`
	ManageEvents    bool `gorm:"not null" json:"canManageEvents"`
	ManageDocuments bool `gorm:"not null" json:"canManageDocuments"`
	ViewReports     bool `gorm:"not null" json:"canViewReports"`
	ExportData      bool `gorm:"not null" json:"canExportData"`
	ManageSettings  bool `gorm:"not null" json:"canManageSettings"`
	ManageAdmins    bool `gorm:"not null" json:"canManageAdmins"`
}

func (p *Permissions) flag(perm Permission) *bool {
	switch perm {
	case PermManageUsers:
		return &p.ManageUsers
	case PermManageStartups:
		return &p.ManageStartups
	case PermManageMentors:
		return &p.ManageMentors
	case PermManageInvestors:
		return &p.ManageInvestors
	case PermManageEvents:
		return &p.ManageEvents
	case PermManageDocuments:
		return &p.ManageDocuments
	case PermViewReports:
		return &p.ViewReports
	case PermExportData:
		return &p.ExportData
	case PermManageSettings:
		return &p.ManageSettings
	case PermManageAdmins:
		return &p.ManageAdmins
	}
	return nil
}

// Has returns the stored flag; unknown permissions are not granted.
func (p Permissions) Has(perm Permission) bool {
	f := p.flag(perm)
	return f != nil && *f
}

// Set reports false when perm is not a known permission.
func (p *Permissions) Set(perm Permission, granted bool) bool {
	f := p.flag(perm)
	if f == nil {
		return false
	}
	*f = granted
	return true
}

func (p Permissions) Granted() []Permission {
	out := make([]Permission, 0, len(AllPermissions))
	for _, perm := range AllPermissions {
		if p.Has(perm) {
			out = append(out, perm)
		}
	}
	return out
}

func permissionsOf(perms ...Permission) Permissions {
	var p Permissions
	for _, perm := range perms {
		p.Set(perm, true)
	}
	return p
}

// DefaultPermissions returns the permission set a profile gets at
// creation and whenever its level changes.
func DefaultPermissions(level AdminLevel) Permissions {
	switch level {
	case LevelSuperAdmin:
		return permissionsOf(AllPermissions...)
	case LevelAdmin:
		return permissionsOf(
			PermManageUsers,
			PermManageStartups,
			PermManageMentors,
			PermManageInvestors,
			PermManageEvents,
			PermManageDocuments,
			PermViewReports,
			PermExportData,
		)
	case LevelModerator:
		return permissionsOf(
			PermManageStartups,
			PermManageEvents,
			PermManageDocuments,
			PermViewReports,
		)
	}
	return Permissions{}
}
