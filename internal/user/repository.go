package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdateProfile applies only the non-nil fields.
	UpdateProfile(ctx context.Context, id uuid.UUID, name, specialization *string) (*User, error)

	ListDoctors(ctx context.Context) ([]User, error)
}
