package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/adapter/cache"
	"github.com/smallbiznis/valora-identity/internal/domain"
	"github.com/smallbiznis/valora-identity/internal/jwt"
	"github.com/smallbiznis/valora-identity/internal/password"
	"github.com/smallbiznis/valora-identity/internal/repository/inmem"
	"github.com/smallbiznis/valora-identity/internal/service"
)

const testSecret = "service-test-secret-0123456789abcdef"

type fixture struct {
	store         *inmem.Store
	revocations   *cache.MemoryRevocationStore
	generator     *jwt.Generator
	auth          *service.AuthService
	organizations *service.OrganizationService
	users         *service.UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	generator, err := jwt.NewGenerator([]byte(testSecret), "valora-identity")
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	store := inmem.NewStore()
	revocations := cache.NewMemoryRevocationStore()
	logger := zap.NewNop()

	return &fixture{
		store:         store,
		revocations:   revocations,
		generator:     generator,
		auth:          service.NewAuthService(store, revocations, generator, logger),
		organizations: service.NewOrganizationService(store, node, logger),
		users:         service.NewUserService(store, node, logger),
	}
}

func (f *fixture) seedOrganization(t *testing.T, id domain.ID, name string) domain.Organization {
	t.Helper()
	org, err := f.store.CreateOrganization(context.Background(), domain.Organization{
		ID:            id,
		Name:          name,
		EntityType:    domain.OrganizationEntityType,
		DataRetention: domain.DefaultDataRetentionDays,
		Active:        true,
	})
	require.NoError(t, err)
	return org
}

// seedUser creates a member of orgID with the given password.
func (f *fixture) seedUser(t *testing.T, id, orgID domain.ID, email, secret string) domain.User {
	t.Helper()
	ctx := context.Background()

	digest, err := password.Hash(secret)
	require.NoError(t, err)

	user, err := f.store.CreateUser(ctx, domain.User{
		ID:             id,
		Email:          email,
		PasswordHash:   digest,
		FirstName:      "First" + id.String(),
		LastName:       "Last" + id.String(),
		Status:         domain.UserStatus{Active: true},
		OrganizationID: &orgID,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.AddMember(ctx, orgID, id))
	return user
}

func (f *fixture) identity(userID, orgID domain.ID) service.Identity {
	return service.Identity{UserID: userID, OrganizationID: orgID, TokenID: "jti-" + userID.String(), ExpiresAt: time.Now().Add(time.Hour)}
}

// failOn makes the named store operation fail and records every operation.
func (f *fixture) failOn(op string) (*[]string, error) {
	boom := errors.New("injected failure")
	var ops []string
	f.store.WithHook(func(name string) error {
		ops = append(ops, name)
		if name == op {
			return boom
		}
		return nil
	})
	return &ops, boom
}

func (f *fixture) recordOps() *[]string {
	ops, _ := f.failOn("")
	return ops
}

func requireServiceError(t *testing.T, err error, kind service.ErrorKind, status int, message string) {
	t.Helper()
	svcErr, ok := service.AsError(err)
	require.True(t, ok, "expected *service.Error, got %v", err)
	require.Equal(t, kind, svcErr.Kind)
	require.Equal(t, status, svcErr.Status())
	require.Equal(t, message, svcErr.Message)
}
