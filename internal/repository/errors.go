// Package repository is the relational store gateway: typed queries over
// users, follows, posts, actions, images and chats.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"murmur/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// storeErr maps storage faults to tagged errors. Unique violations become
// COLLISION, everything else STORE_ERROR.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if isUniqueViolation(err) {
		return models.NewCollisionError(op + ": already exists")
	}
	return models.NewStoreError(fmt.Errorf("%s: %w", op, err))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// notFoundOr converts a missing record into NOT_FOUND and wraps the rest.
func notFoundOr(op, resource string, id interface{}, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return storeErr(op, err)
}

// paginate applies offset page*n and limit n.
func paginate(page, n int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 0 {
			page = 0
		}
		return db.Offset(page * n).Limit(n)
	}
}
