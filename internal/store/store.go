// Package store holds the gorm-backed credential, session and activity
// stores. Lookups on the authentication path return (nil, nil) when the
// row does not exist.
package store

import (
	"errors"

	"gorm.io/gorm"
)

var ErrDuplicate = errors.New("record already exists")

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB { return s.db }

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
