package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/valora-identity/internal/domain"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write would violate a uniqueness rule.
	ErrConflict = errors.New("record conflicts with an existing one")
)

// OrganizationRepository exposes organization persistence and membership edits.
type OrganizationRepository interface {
	CreateOrganization(ctx context.Context, org domain.Organization) (domain.Organization, error)
	GetOrganization(ctx context.Context, orgID domain.ID) (domain.Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (domain.Organization, error)
	RenameOrganization(ctx context.Context, orgID domain.ID, name string) (domain.Organization, error)
	DeleteOrganization(ctx context.Context, orgID domain.ID) error
	AddMember(ctx context.Context, orgID, userID domain.ID) error
	RemoveMember(ctx context.Context, orgID, userID domain.ID) error
}

// UserRepository exposes persistence for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUser(ctx context.Context, userID domain.ID) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsersByIDs(ctx context.Context, userIDs []domain.ID) ([]domain.User, error)
	ListUsersByOrganization(ctx context.Context, orgID domain.ID) ([]domain.User, error)
	UpdateUserProfile(ctx context.Context, user domain.User) (domain.User, error)
	SetUserPassword(ctx context.Context, userID domain.ID, digest string) error
	SetUserOrganization(ctx context.Context, userID domain.ID, orgID *domain.ID) error
	DeleteUser(ctx context.Context, userID domain.ID) error
}

// TxFunc runs against a Store bound to one transaction.
type TxFunc func(ctx context.Context, tx Store) error

// Store groups both repositories and runs multi-step mutations atomically.
type Store interface {
	OrganizationRepository
	UserRepository

	// InTx runs fn inside a transaction. Any error returned by fn rolls back
	// every write made through tx. Nested calls join the outer transaction.
	InTx(ctx context.Context, fn TxFunc) error
}

// RevocationStore tracks access tokens revoked before their expiry.
type RevocationStore interface {
	// Revoke denylists tokenID for ttl. A non-positive ttl is a no-op.
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
