package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/config"
	"github.com/smallbiznis/valora-identity/internal/domain"
	"github.com/smallbiznis/valora-identity/internal/password"
	"github.com/smallbiznis/valora-identity/internal/repository"
)

// EnsureAdmin seeds the bootstrap organization and its admin user on start.
// Nothing happens unless all bootstrap settings are configured.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, store repository.Store, node *snowflake.Node, logger *zap.Logger) {
	if !cfg.BootstrapEnabled() {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return Run(ctx, cfg, store, node, logger)
		},
	})
}

// Run ensures the organization and admin exist and are linked to each other.
// An existing admin keeps its password.
func Run(ctx context.Context, cfg config.Config, store repository.Store, node *snowflake.Node, logger *zap.Logger) error {
	orgName, email := cfg.BootstrapOrgName, cfg.AdminEmail
	if orgName == "" || email == "" || cfg.AdminPassword == "" {
		return fmt.Errorf("admin bootstrap missing required config")
	}

	var (
		orgID   domain.ID
		userID  domain.ID
		created bool
	)
	err := store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		org, err := ensureOrganization(ctx, tx, node, orgName)
		if err != nil {
			return err
		}
		orgID = org.ID

		user, err := tx.GetUserByEmail(ctx, email)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			hashed, err := password.Hash(cfg.AdminPassword)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			user, err = tx.CreateUser(ctx, domain.User{
				ID:             node.Generate(),
				Email:          email,
				PasswordHash:   hashed,
				FirstName:      "Admin",
				Status:         domain.UserStatus{Active: true},
				OrganizationID: &org.ID,
			})
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			created = true
		case err != nil:
			return fmt.Errorf("lookup admin: %w", err)
		case !user.BelongsTo(org.ID):
			if previous := user.OrganizationID; previous != nil {
				if err := tx.RemoveMember(ctx, *previous, user.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("detach admin: %w", err)
				}
			}
			if err := tx.SetUserOrganization(ctx, user.ID, &org.ID); err != nil {
				return fmt.Errorf("attach admin: %w", err)
			}
		}
		userID = user.ID

		if err := tx.AddMember(ctx, org.ID, user.ID); err != nil {
			return fmt.Errorf("add admin member: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin ensured",
			zap.String("org_id", orgID.String()),
			zap.String("user_id", userID.String()),
			zap.Bool("created", created),
		)
	}
	return nil
}

func ensureOrganization(ctx context.Context, tx repository.Store, node *snowflake.Node, name string) (domain.Organization, error) {
	org, err := tx.GetOrganizationByName(ctx, name)
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Organization{}, fmt.Errorf("lookup organization: %w", err)
	}
	org, err = tx.CreateOrganization(ctx, domain.Organization{
		ID:            node.Generate(),
		Name:          name,
		EntityType:    domain.OrganizationEntityType,
		DataRetention: domain.DefaultDataRetentionDays,
		Active:        true,
	})
	if err != nil {
		return domain.Organization{}, fmt.Errorf("create organization: %w", err)
	}
	return org, nil
}
