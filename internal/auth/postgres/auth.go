package auth

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/rakhadavedra/sow-analysis/internal"
	"github.com/rakhadavedra/sow-analysis/internal/auth"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	var creds auth.Credentials
	query := `SELECT id, email, password_hash, is_active FROM users WHERE email = ? AND deleted_at IS NULL`

	row := r.db.WithContext(ctx).Raw(query, email).Row()
	if err := row.Scan(&creds.UserID, &creds.Email, &creds.PasswordHash, &creds.IsActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}
	return &creds, nil
}

func (r *Repository) GetSessionUser(ctx context.Context, userID int64) (*internal.SessionUser, error) {
	var user internal.SessionUser
	query := `SELECT id, email, full_name FROM users WHERE id = ? AND is_active = true AND deleted_at IS NULL`

	row := r.db.WithContext(ctx).Raw(query, userID).Row()
	if err := row.Scan(&user.ID, &user.Email, &user.FullName); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}
	return &user, nil
}
