package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
)

// Contact is the slice of a user row that supplier redemption needs.
type Contact struct {
	ID       uuid.UUID
	Email    string
	IsActive bool
}

// Repository reads the users table, which the identity service owns.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindContact loads id, email and active flag for one user. A missing user yields
// gorm.ErrRecordNotFound.
func (r *Repository) FindContact(ctx context.Context, id uuid.UUID) (*Contact, error) {
	var contact Contact
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id", "email", "is_active").
		Where("id = ?", id).
		Take(&contact).Error
	if err != nil {
		return nil, err
	}
	return &contact, nil
}
