package domain

import (
	"context"
	"errors"
)

// Identity is what the identity provider tells us about a signed-in user.
type Identity struct {
	ClerkID string
	Email   string
	Name    string
}

type CreateTestUserRequest struct {
	Email string
}

type Service interface {
	// EnsureFromIdentity creates the user on first login and returns the
	// stored row unchanged on every later call.
	EnsureFromIdentity(context.Context, Identity) (User, error)
	// CreateTestUser inserts a user for the signed-in subject.
	CreateTestUser(context.Context, CreateTestUserRequest) (User, error)
	Current(context.Context) (User, error)
	GetByClerkID(context.Context, string) (User, error)
	MarkOnboarded(context.Context) (User, error)
	DeleteCurrent(context.Context) error
}

const TestUserName = "Test User"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidClerkID  = errors.New("invalid_clerk_id")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidName     = errors.New("invalid_name")
	ErrUserExists      = errors.New("user_exists")
	ErrNotFound        = errors.New("user_not_found")
)
