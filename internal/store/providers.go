package store

import (
	"context"

	"github.com/lmor152/omnibooker-v2/internal/booking"
	"github.com/lmor152/omnibooker-v2/internal/db"
)

func (s *Store) CreateProvider(ctx context.Context, p *booking.Provider) error {
	sealed, err := s.sealCredentials(p.Credentials)
	if err != nil {
		return err
	}
	err = s.db.QueryRow(ctx, `
INSERT INTO providers(user_id, name, type, credentials)
VALUES ($1,$2,$3,$4)
RETURNING id, created_at`,
		p.UserID, p.Name, p.Type, sealed,
	).Scan(&p.ID, &p.CreatedAt)
	return db.WrapNotFound(err)
}

func (s *Store) UpdateProvider(ctx context.Context, p *booking.Provider) error {
	sealed, err := s.sealCredentials(p.Credentials)
	if err != nil {
		return err
	}
	n, err := s.db.Exec(ctx, `
UPDATE providers SET name=$2, type=$3, credentials=$4
WHERE id=$1 AND user_id=$5`,
		p.ID, p.Name, p.Type, sealed, p.UserID)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *Store) GetProviderForUser(ctx context.Context, id, userID int64) (booking.Provider, error) {
	var p booking.Provider
	var sealed string
	err := s.db.QueryRow(ctx, `
SELECT id, user_id, name, type, credentials, created_at
FROM providers WHERE id=$1 AND user_id=$2`, id, userID).
		Scan(&p.ID, &p.UserID, &p.Name, &p.Type, &sealed, &p.CreatedAt)
	if err != nil {
		return booking.Provider{}, db.WrapNotFound(err)
	}
	if p.Credentials, err = s.openCredentials(sealed); err != nil {
		return booking.Provider{}, err
	}
	return p, nil
}

func (s *Store) ListProvidersByUser(ctx context.Context, userID int64) ([]booking.Provider, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, user_id, name, type, credentials, created_at
FROM providers WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Provider
	for rows.Next() {
		var p booking.Provider
		var sealed string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Type, &sealed, &p.CreatedAt); err != nil {
			return nil, err
		}
		if p.Credentials, err = s.openCredentials(sealed); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeleteProvider(ctx context.Context, id, userID int64) error {
	n, err := s.db.Exec(ctx, `DELETE FROM providers WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}
