package user

import "context"

// Repository defines the profile and preference reads the dispatcher needs.
type Repository interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	GetOptIn(ctx context.Context, userID string) (*OptIn, error)
	// GetAuthEmail resolves the auth system's primary email for a user,
	// used as a fallback when the profile carries no email.
	GetAuthEmail(ctx context.Context, userID string) (string, error)
}
