package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/domain"
	"github.com/smallbiznis/valora-identity/internal/metrics"
	"github.com/smallbiznis/valora-identity/internal/repository"
)

// OrganizationService manages organizations and their cascades.
type OrganizationService struct {
	instrument
	store     repository.Store
	snowflake *snowflake.Node
}

// NewOrganizationService wires dependencies.
func NewOrganizationService(store repository.Store, node *snowflake.Node, logger *zap.Logger) *OrganizationService {
	return &OrganizationService{
		instrument: newInstrument(logger),
		store:      store,
		snowflake:  node,
	}
}

// Create makes a new active organization with the caller as its only member
// and moves the caller out of their previous organization.
func (s *OrganizationService) Create(ctx context.Context, caller Identity, req OrganizationRequest) (*OrganizationSummary, error) {
	ctx, span := s.startSpan(ctx, "OrganizationService.Create")
	defer span.End()

	name := req.Name
	if name == "" {
		return nil, newError(KindValidation, msgOrganizationNameRequired)
	}

	if _, err := s.store.GetOrganizationByName(ctx, name); err == nil {
		return nil, newError(KindConflict, msgOrganizationNameTaken)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, s.internal(span, "create organization", err)
	}

	creator, err := s.store.GetUser(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, msgCreatingUserNotFound)
		}
		return nil, s.internal(span, "create organization", err)
	}

	var created domain.Organization
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		org, err := tx.CreateOrganization(ctx, domain.Organization{
			ID:            s.snowflake.Generate(),
			Name:          name,
			EntityType:    domain.OrganizationEntityType,
			DataRetention: domain.DefaultDataRetentionDays,
			Active:        true,
			MemberIDs:     []domain.ID{creator.ID},
		})
		if err != nil {
			return err
		}

		if previous := creator.OrganizationID; previous != nil && *previous != org.ID {
			if err := tx.RemoveMember(ctx, *previous, creator.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}

		if err := tx.SetUserOrganization(ctx, creator.ID, &org.ID); err != nil {
			return err
		}
		created = org
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, newError(KindConflict, msgOrganizationNameTaken)
		}
		return nil, s.internal(span, "create organization", err)
	}

	s.audit("organization.created", "org_id", created.ID, "user_id", creator.ID)
	return &OrganizationSummary{ID: created.ID, Name: created.Name}, nil
}

// Get returns the caller's organization with members expanded.
func (s *OrganizationService) Get(ctx context.Context, caller Identity, rawID string) (*OrganizationView, error) {
	ctx, span := s.startSpan(ctx, "OrganizationService.Get")
	defer span.End()

	orgID, err := authorizeOrganization(caller, rawID)
	if err != nil {
		return nil, err
	}

	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, s.organizationLookupError(span, "get organization", err)
	}

	// Members whose records are gone are skipped.
	members, err := s.store.ListUsersByIDs(ctx, org.MemberIDs)
	if err != nil {
		return nil, s.internal(span, "get organization", err)
	}

	view := newOrganizationView(org, members)
	return &view, nil
}

// Update renames the caller's organization. An empty name keeps the current one.
func (s *OrganizationService) Update(ctx context.Context, caller Identity, rawID string, req OrganizationRequest) (*OrganizationSummary, error) {
	ctx, span := s.startSpan(ctx, "OrganizationService.Update")
	defer span.End()

	orgID, err := authorizeOrganization(caller, rawID)
	if err != nil {
		return nil, err
	}

	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, s.organizationLookupError(span, "update organization", err)
	}

	name := req.Name
	if name == "" || name == org.Name {
		return &OrganizationSummary{ID: org.ID, Name: org.Name}, nil
	}

	updated, err := s.store.RenameOrganization(ctx, org.ID, name)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, newError(KindConflict, msgOrganizationNameTaken)
		}
		return nil, s.organizationLookupError(span, "update organization", err)
	}

	s.audit("organization.updated", "org_id", updated.ID, "user_id", caller.UserID)
	return &OrganizationSummary{ID: updated.ID, Name: updated.Name}, nil
}

// Delete removes the caller's organization together with every user whose
// back-reference points at it.
func (s *OrganizationService) Delete(ctx context.Context, caller Identity, rawID string) error {
	ctx, span := s.startSpan(ctx, "OrganizationService.Delete")
	defer span.End()

	orgID, err := authorizeOrganization(caller, rawID)
	if err != nil {
		return err
	}

	if _, err := s.store.GetOrganization(ctx, orgID); err != nil {
		return s.organizationLookupError(span, "delete organization", err)
	}

	var deleted int
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		users, err := tx.ListUsersByOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		for _, user := range users {
			if err := tx.DeleteUser(ctx, user.ID); err != nil {
				return err
			}
			deleted++
		}
		return tx.DeleteOrganization(ctx, orgID)
	})
	if err != nil {
		return s.organizationLookupError(span, "delete organization", err)
	}

	metrics.CascadeDeletedUsersTotal.Add(float64(deleted))
	s.audit("organization.deleted", "org_id", orgID, "user_id", caller.UserID, "deleted_users", deleted)
	return nil
}

func (s *OrganizationService) organizationLookupError(span trace.Span, op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return newError(KindNotFound, msgOrganizationNotFound)
	}
	return s.internal(span, op, err)
}

// authorizeOrganization compares the raw path id with the caller's organization
// before parsing, so any mismatch, malformed ids included, is forbidden.
func authorizeOrganization(caller Identity, rawID string) (domain.ID, error) {
	if rawID != caller.OrganizationID.String() {
		return 0, newError(KindAuthorization, msgOrganizationForbidden)
	}
	orgID, err := domain.ParseID(rawID)
	if err != nil {
		return 0, newError(KindAuthorization, msgOrganizationForbidden)
	}
	return orgID, nil
}
