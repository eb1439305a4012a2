package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"citbif/internal/models"
)

func (s *Store) FindAccountByID(ctx context.Context, id string) (*models.Account, error) {
	var a models.Account
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find account %s: %w", id, err)
	}
	return &a, nil
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).First(&a, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return &a, nil
}

// AccountExists reports whether the email or the username is taken.
func (s *Store) AccountExists(ctx context.Context, email, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("email = ? OR username = ?", strings.ToLower(email), username).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check account exists: %w", err)
	}
	return count > 0, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, accountID, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("password_hash", hash)
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *Store) FindAdminProfileByAccountID(ctx context.Context, accountID string) (*models.AdminProfile, error) {
	var p models.AdminProfile
	if err := s.db.WithContext(ctx).First(&p, "account_id = ?", accountID).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find admin profile for %s: %w", accountID, err)
	}
	return &p, nil
}

// PromoteToAdmin switches the account's role and creates its profile in
// one transaction.
func (s *Store) PromoteToAdmin(ctx context.Context, account *models.Account, profile *models.AdminProfile) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(account).Update("role", models.RoleAdmin).Error; err != nil {
			return fmt.Errorf("promote account: %w", err)
		}
		if err := tx.Create(profile).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicate
			}
			return fmt.Errorf("create admin profile: %w", err)
		}
		account.Role = models.RoleAdmin
		return nil
	})
}

// Column sets for UpdateAdminProfile. Each caller writes only the columns
// its mutation owns so concurrent edits of other columns survive.
var (
	LoginColumns = []string{"failed_login_attempts", "is_locked", "locked_until", "last_login_at", "login_count"}
	LockColumns  = []string{"failed_login_attempts", "is_locked", "locked_until"}
	LevelColumns = append([]string{"level"}, PermissionColumns...)

	PermissionColumns = []string{
		"perm_manage_users",
		"perm_manage_startups",
		"perm_manage_mentors",
		"perm_manage_investors",
		"perm_manage_events",
		"perm_manage_documents",
		"perm_view_reports",
		"perm_export_data",
		"perm_manage_settings",
		"perm_manage_admins",
	}
)

// UpdateAdminProfile locks the account's admin profile row, applies mutate
// and writes back the listed columns in the same transaction. It returns
// (nil, nil) when the account has no profile.
func (s *Store) UpdateAdminProfile(ctx context.Context, accountID string, mutate func(*models.AdminProfile), columns ...string) (*models.AdminProfile, error) {
	if len(columns) == 0 {
		return nil, errors.New("update admin profile: no columns")
	}
	var p models.AdminProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "account_id = ?", accountID).Error
		if err != nil {
			return err
		}
		mutate(&p)
		return tx.Model(&p).Select(columns).Updates(&p).Error
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("update admin profile for %s: %w", accountID, err)
	}
	return &p, nil
}

// AppendAdminActivity inserts the entry and prunes the profile's list to
// the newest models.RecentActivityLimit rows.
func (s *Store) AppendAdminActivity(ctx context.Context, a *models.AdminActivity) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(a).Error; err != nil {
			return fmt.Errorf("append admin activity: %w", err)
		}
		keep := tx.Model(&models.AdminActivity{}).
			Select("id").
			Where("admin_profile_id = ?", a.AdminProfileID).
			Order("created_at DESC").
			Limit(models.RecentActivityLimit)
		err := tx.Where("admin_profile_id = ? AND id NOT IN (?)", a.AdminProfileID, keep).
			Delete(&models.AdminActivity{}).Error
		if err != nil {
			return fmt.Errorf("prune admin activity: %w", err)
		}
		return nil
	})
}

func (s *Store) ListAdminActivity(ctx context.Context, profileID string) ([]models.AdminActivity, error) {
	var out []models.AdminActivity
	err := s.db.WithContext(ctx).
		Where("admin_profile_id = ?", profileID).
		Order("created_at DESC").
		Limit(models.RecentActivityLimit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list admin activity: %w", err)
	}
	return out, nil
}
