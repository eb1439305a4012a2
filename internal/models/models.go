package models

import "time"

type Role string

const (
	RoleIndividual Role = "individual"
	RoleEnterprise Role = "enterprise"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleIndividual, RoleEnterprise, RoleAdmin:
		return true
	}
	return false
}

type Account struct {
	ID              string        `gorm:"type:uuid;primaryKey" json:"id"`
	Email           string        `gorm:"uniqueIndex;not null" json:"email"`
	Username        string        `gorm:"uniqueIndex;not null" json:"username"`
	FullName        string        `json:"fullName"`
	PasswordHash    string        `gorm:"not null" json:"-"`
	Role            Role          `gorm:"type:varchar(20);not null;index" json:"role"`
	ProfileComplete bool          `gorm:"not null" json:"profileComplete"`
	EmailVerified   bool          `gorm:"not null" json:"emailVerified"`
	AdminProfile    *AdminProfile `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	Sessions        []Session     `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

func (a *Account) IsAdmin() bool { return a != nil && a.Role == RoleAdmin }

// Session backs one refresh token. The token itself is never stored.
type Session struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID string    `gorm:"type:uuid;index;not null" json:"accountId"`
	TokenID   string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expiresAt"`
	IPAddress *string   `gorm:"size:64" json:"ipAddress,omitempty"`
	UserAgent *string   `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ActivityRecord struct {
	ID          string    `gorm:"size:26;primaryKey" json:"id"`
	AccountID   string    `gorm:"type:uuid;index;not null" json:"accountId"`
	Type        string    `gorm:"size:64;index;not null" json:"type"`
	Description string    `json:"description"`
	IPAddress   string    `gorm:"size:64" json:"ipAddress,omitempty"`
	UserAgent   string    `json:"userAgent,omitempty"`
	Metadata    JSONB     `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	Account     *Account  `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}
