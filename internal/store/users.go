package store

import (
	"context"

	"github.com/lmor152/omnibooker-v2/internal/booking"
	"github.com/lmor152/omnibooker-v2/internal/db"
)

func (s *Store) CreateUser(ctx context.Context, email, passwordBcrypt, fullName string) (booking.User, error) {
	var u booking.User
	err := s.db.QueryRow(ctx, `
INSERT INTO users(email, password_bcrypt, full_name)
VALUES ($1,$2,NULLIF($3,''))
RETURNING id, email, COALESCE(full_name,''), is_active, created_at`,
		email, passwordBcrypt, fullName,
	).Scan(&u.ID, &u.Email, &u.FullName, &u.Active, &u.CreatedAt)
	return u, db.WrapNotFound(err)
}

func (s *Store) GetUser(ctx context.Context, id int64) (booking.User, error) {
	var u booking.User
	err := s.db.QueryRow(ctx, `
SELECT id, email, COALESCE(full_name,''), is_active, created_at
FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Email, &u.FullName, &u.Active, &u.CreatedAt)
	return u, db.WrapNotFound(err)
}

// GetUserAuth returns the user id and bcrypt hash for a login check.
func (s *Store) GetUserAuth(ctx context.Context, email string) (int64, string, error) {
	var id int64
	var hash string
	err := s.db.QueryRow(ctx, `SELECT id, COALESCE(password_bcrypt,'') FROM users WHERE email=$1 AND is_active`, email).
		Scan(&id, &hash)
	return id, hash, db.WrapNotFound(err)
}
