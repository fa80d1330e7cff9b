package users

import "context"

// Repository port for user accounts
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// FindByIdentifier matches username, email or mobile number.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	Exists(ctx context.Context, username, email, mobile string) (bool, error)
}
