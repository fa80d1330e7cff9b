package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	domain "github.com/bryanwahyu/bloodreport-ai/internal/domain/users"
)

const userColumns = `id, username, email, mobile_number, hashed_password, full_name, is_active, created_at, updated_at`

// errDuplicateEntry is MySQL's ER_DUP_ENTRY
const errDuplicateEntry = 1062

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	const q = `
INSERT INTO users (username, email, mobile_number, hashed_password, full_name, is_active, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?);`
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, q,
		u.Username, u.Email, nullIfEmpty(u.MobileNumber), u.HashedPassword, u.FullName, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var me *mysqldrv.MySQLError
		if errors.As(err, &me) && me.Number == errDuplicateEntry {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=? LIMIT 1;`, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username=? LIMIT 1;`, username)
}

// FindByIdentifier prefers a username match, then email, then mobile number.
func (r *UserRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
WHERE username=? OR LOWER(email)=LOWER(?) OR mobile_number=?
ORDER BY CASE WHEN username=? THEN 0 WHEN LOWER(email)=LOWER(?) THEN 1 ELSE 2 END, id
LIMIT 1;`
	return r.getOne(ctx, q, identifier, identifier, identifier, identifier, identifier)
}

// Exists checks every new value against all three identifier columns, so a
// username can never shadow someone else's email or mobile number.
func (r *UserRepository) Exists(ctx context.Context, username, email, mobile string) (bool, error) {
	const q = `SELECT COUNT(*) FROM users
WHERE username IN (?,?,?)
   OR LOWER(email) IN (LOWER(?),LOWER(?),LOWER(?))
   OR mobile_number IN (?,?,?);`
	vals := []any{username, email, mobile}
	args := append(append(append([]any{}, vals...), vals...), vals...)
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return n > 0, nil
}

func (r *UserRepository) getOne(ctx context.Context, q string, args ...any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return u, err
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u      domain.User
		mobile sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &mobile, &u.HashedPassword, &u.FullName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.MobileNumber = mobile.String
	return &u, nil
}
