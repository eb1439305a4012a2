package store

import (
	"context"
	"fmt"
	"time"

	"citbif/internal/models"
)

func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindActiveSession returns the session for tokenID if it has not expired
// at now.
func (s *Store) FindActiveSession(ctx context.Context, tokenID string, now time.Time) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).
		Where("token_id = ? AND expires_at > ?", tokenID, now).
		First(&sess).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, tokenID string) (bool, error) {
	res := s.db.WithContext(ctx).Where("token_id = ?", tokenID).Delete(&models.Session{})
	if res.Error != nil {
		return false, fmt.Errorf("delete session: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) DeleteAccountSessions(ctx context.Context, accountID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete account sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
