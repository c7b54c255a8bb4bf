package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/domain"
	pw "github.com/smallbiznis/valora-identity/internal/password"
	"github.com/smallbiznis/valora-identity/internal/repository"
)

// UserService manages user records and keeps organization membership in sync.
type UserService struct {
	instrument
	store     repository.Store
	snowflake *snowflake.Node
}

// NewUserService wires dependencies.
func NewUserService(store repository.Store, node *snowflake.Node, logger *zap.Logger) *UserService {
	return &UserService{
		instrument: newInstrument(logger),
		store:      store,
		snowflake:  node,
	}
}

// Create registers a user in the named organization and appends it to the member list.
func (s *UserService) Create(ctx context.Context, caller Identity, req CreateUserRequest) (*UserSummary, error) {
	ctx, span := s.startSpan(ctx, "UserService.Create")
	defer span.End()

	email, orgName := req.Email, req.OrganizationName
	if email == "" || req.Password == "" || orgName == "" {
		return nil, newError(KindValidation, msgUserFieldsRequired)
	}

	org, err := s.store.GetOrganizationByName(ctx, orgName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, msgOrganizationNotFound)
		}
		return nil, s.internal(span, "create user", err)
	}

	existing, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing.BelongsTo(org.ID):
		return nil, newError(KindConflict, msgUserExistsInOrg)
	case err == nil:
		return nil, newError(KindConflict, msgUserExists)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, s.internal(span, "create user", err)
	}

	digest, err := pw.Hash(req.Password)
	if err != nil {
		return nil, s.internal(span, "create user", err)
	}

	var created domain.User
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		user, err := tx.CreateUser(ctx, domain.User{
			ID:             s.snowflake.Generate(),
			Email:          email,
			PasswordHash:   digest,
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			Status:         domain.UserStatus{Active: true, EmailVerified: false},
			OrganizationID: &org.ID,
		})
		if err != nil {
			return err
		}
		if err := tx.AddMember(ctx, org.ID, user.ID); err != nil {
			return err
		}
		created = user
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, newError(KindConflict, msgUserExists)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, msgOrganizationNotFound)
		}
		return nil, s.internal(span, "create user", err)
	}

	s.audit("user.created", "org_id", org.ID, "user_id", created.ID, "created_by", caller.UserID)
	summary := newUserSummary(created)
	return &summary, nil
}

// Get returns a user of the caller's organization.
func (s *UserService) Get(ctx context.Context, caller Identity, rawID string) (*UserView, error) {
	ctx, span := s.startSpan(ctx, "UserService.Get")
	defer span.End()

	userID, err := domain.ParseID(rawID)
	if err != nil {
		return nil, newError(KindValidation, msgInvalidUserID)
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, s.userLookupError(span, "get user", err)
	}

	if !user.BelongsTo(caller.OrganizationID) {
		return nil, newError(KindAuthorization, msgUserForbidden)
	}

	view := newUserView(user)
	return &view, nil
}

// Update edits the caller's own profile. Empty fields keep the stored value.
func (s *UserService) Update(ctx context.Context, caller Identity, rawID string, req UpdateUserRequest) (*UserSummary, error) {
	ctx, span := s.startSpan(ctx, "UserService.Update")
	defer span.End()

	if rawID != caller.UserID.String() {
		return nil, newError(KindAuthorization, msgUpdateOwnProfile)
	}

	user, err := s.store.GetUser(ctx, caller.UserID)
	if err != nil {
		return nil, s.userLookupError(span, "update user", err)
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Email != "" {
		user.Email = req.Email
	}

	updated, err := s.store.UpdateUserProfile(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, newError(KindConflict, msgUserExists)
		}
		return nil, s.userLookupError(span, "update user", err)
	}

	summary := newUserSummary(updated)
	return &summary, nil
}

// Delete removes the caller's own record and pulls it from its organization's member list.
func (s *UserService) Delete(ctx context.Context, caller Identity, rawID string) error {
	ctx, span := s.startSpan(ctx, "UserService.Delete")
	defer span.End()

	if rawID != caller.UserID.String() {
		return newError(KindAuthorization, msgDeleteOwnProfile)
	}

	user, err := s.store.GetUser(ctx, caller.UserID)
	if err != nil {
		return s.userLookupError(span, "delete user", err)
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.DeleteUser(ctx, user.ID); err != nil {
			return err
		}
		if user.OrganizationID == nil {
			return nil
		}
		// A dangling back-reference leaves nothing to pull.
		if err := tx.RemoveMember(ctx, *user.OrganizationID, user.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return s.userLookupError(span, "delete user", err)
	}

	s.audit("user.deleted", "user_id", user.ID, "org_id", user.OrganizationID)
	return nil
}

func (s *UserService) userLookupError(span trace.Span, op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return newError(KindNotFound, msgUserNotFound)
	}
	return s.internal(span, op, err)
}
