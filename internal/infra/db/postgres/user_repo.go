package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/bloodreport-ai/internal/domain/users"
)

const userColumns = `id, username, email, mobile_number, hashed_password, full_name, is_active, created_at, updated_at`

type UserRepository struct{ db *sql.DB }

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	const q = `
INSERT INTO users (username, email, mobile_number, hashed_password, full_name, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id;`
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, q,
		u.Username, u.Email, nullIfEmpty(u.MobileNumber), u.HashedPassword, u.FullName, u.IsActive, u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1 LIMIT 1;`, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1 LIMIT 1;`, username)
}

// FindByIdentifier prefers a username match, then email, then mobile number.
func (r *UserRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
WHERE username=$1 OR LOWER(email)=LOWER($1) OR mobile_number=$1
ORDER BY CASE WHEN username=$1 THEN 0 WHEN LOWER(email)=LOWER($1) THEN 1 ELSE 2 END, id
LIMIT 1;`
	return r.getOne(ctx, q, identifier)
}

// Exists checks every new value against all three identifier columns.
func (r *UserRepository) Exists(ctx context.Context, username, email, mobile string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users
WHERE username IN ($1,$2,$3)
   OR LOWER(email) IN (LOWER($1),LOWER($2),LOWER($3))
   OR mobile_number IN ($1,$2,$3));`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, username, email, mobile).Scan(&ok); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return ok, nil
}

func (r *UserRepository) getOne(ctx context.Context, q string, args ...any) (*domain.User, error) {
	var (
		u      domain.User
		mobile sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&u.ID, &u.Username, &u.Email, &mobile, &u.HashedPassword, &u.FullName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.MobileNumber = mobile.String
	return &u, nil
}
