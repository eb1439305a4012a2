package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"citbif/internal/models"
)

type ActivityFilter struct {
	AccountID string
	Type      string
	Offset    int
	Limit     int
}

func (s *Store) CreateActivity(ctx context.Context, rec *models.ActivityRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// ListActivity returns one page of records, newest first, and the total
// number of records matching the filter.
func (s *Store) ListActivity(ctx context.Context, f ActivityFilter) ([]models.ActivityRecord, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.ActivityRecord{})
	if f.AccountID != "" {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}
	var out []models.ActivityRecord
	err := q.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	return out, total, nil
}
