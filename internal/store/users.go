package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"moodlog/internal/crypto"
	"moodlog/internal/models"
)

const userColumns = `id, email, email_blind_index, password_hash, name, is_admin, is_active, created_at, updated_at, last_login_at`

// UserStore persists accounts. Emails are encrypted at rest with an HMAC
// blind index for login lookup.
type UserStore struct {
	db     *sqlx.DB
	cipher *crypto.Cipher
}

func NewUserStore(db *sqlx.DB, cipher *crypto.Cipher) *UserStore {
	return &UserStore{db: db, cipher: cipher}
}

// Create inserts a user; ErrConflict when the email is already registered.
func (s *UserStore) Create(ctx context.Context, email, passwordHash string, name *string) (*models.User, error) {
	encEmail, err := s.cipher.Encrypt(email)
	if err != nil {
		return nil, err
	}
	var u models.User
	err = s.db.QueryRowxContext(ctx, `
		INSERT INTO users (email, email_blind_index, password_hash, name)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, encEmail, s.cipher.BlindIndex(email), passwordHash, name).StructScan(&u)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.decode(&u)
}

// ByEmail looks a user up through the blind index.
func (s *UserStore) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowxContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE email_blind_index = $1`,
		s.cipher.BlindIndex(email)).StructScan(&u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return s.decode(&u)
}

func (s *UserStore) ByID(ctx context.Context, id int) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowxContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1`, id).StructScan(&u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return s.decode(&u)
}

// List returns users newest first for the admin console.
func (s *UserStore) List(ctx context.Context, limit, offset int) ([]models.User, int, error) {
	var total int
	if err := s.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryxContext(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.StructScan(&u); err != nil {
			return nil, 0, err
		}
		decoded, err := s.decode(&u)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *decoded)
	}
	return out, total, rows.Err()
}

// ListActiveIDs feeds the monthly insight batch job.
func (s *UserStore) ListActiveIDs(ctx context.Context) ([]int, error) {
	var ids []int
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM users WHERE is_active ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

// IsAdmin answers the admin-route gate; an unknown id is simply not admin.
func (s *UserStore) IsAdmin(ctx context.Context, id int) (bool, error) {
	var isAdmin bool
	err := s.db.QueryRowxContext(ctx, `SELECT is_admin FROM users WHERE id = $1 AND is_active`, id).Scan(&isAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return isAdmin, nil
}

// Counts returns total and active user counts for the admin dashboard.
func (s *UserStore) Counts(ctx context.Context) (total, active int, err error) {
	err = s.db.QueryRowxContext(ctx, `
		SELECT COUNT(*), COALESCE(COUNT(*) FILTER (WHERE is_active), 0) FROM users`).Scan(&total, &active)
	return total, active, err
}

// UpdateParams carries the admin-editable fields; nil means unchanged.
type UpdateParams struct {
	Name         *string
	IsActive     *bool
	IsAdmin      *bool
	PasswordHash *string
}

func (s *UserStore) Update(ctx context.Context, id int, p UpdateParams) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowxContext(ctx, `
		UPDATE users SET
			name = COALESCE($2, name),
			is_active = COALESCE($3, is_active),
			is_admin = COALESCE($4, is_admin),
			password_hash = COALESCE($5, password_hash),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, p.Name, p.IsActive, p.IsAdmin, p.PasswordHash).StructScan(&u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.decode(&u)
}

func (s *UserStore) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) TouchLogin(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

// Delete removes the account; entries, insights and usage rows cascade.
func (s *UserStore) Delete(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) decode(u *models.User) (*models.User, error) {
	email, err := s.cipher.Decrypt(u.Email)
	if err != nil {
		return nil, fmt.Errorf("decrypt email: %w", err)
	}
	u.Email = email
	return u, nil
}
