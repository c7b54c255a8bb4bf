// Package inmem provides an in-memory repository.Store. It enforces the same
// uniqueness rules as the Postgres store and supports transactions by working on
// a snapshot that replaces the live state only when the transaction succeeds.
package inmem

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/smallbiznis/valora-identity/internal/domain"
	"github.com/smallbiznis/valora-identity/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Hook is called with the operation name before every store operation.
// Returning an error fails that operation.
type Hook func(op string) error

type state struct {
	orgs  map[domain.ID]domain.Organization
	users map[domain.ID]domain.User
}

func (st *state) clone() *state {
	next := &state{
		orgs:  make(map[domain.ID]domain.Organization, len(st.orgs)),
		users: make(map[domain.ID]domain.User, len(st.users)),
	}
	for id, org := range st.orgs {
		next.orgs[id] = copyOrganization(org)
	}
	for id, user := range st.users {
		next.users[id] = copyUser(user)
	}
	return next
}

type shared struct {
	mu    sync.Mutex
	state *state
	hook  Hook
}

// Store implements repository.Store in memory.
type Store struct {
	shared *shared
	// tx is non-nil for a Store bound to a running transaction.
	tx *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{shared: &shared{
		state: &state{
			orgs:  make(map[domain.ID]domain.Organization),
			users: make(map[domain.ID]domain.User),
		},
	}}
}

// WithHook installs fn as the operation hook. Used by tests to record
// operation order or inject failures.
func (s *Store) WithHook(fn Hook) *Store {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	s.shared.hook = fn
	return s
}

func (s *Store) InTx(ctx context.Context, fn repository.TxFunc) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()

	snapshot := s.shared.state.clone()
	if err := fn(ctx, &Store{shared: s.shared, tx: snapshot}); err != nil {
		return err
	}
	s.shared.state = snapshot
	return nil
}

// run executes op against the live state, or the transaction snapshot when bound to one.
func (s *Store) run(op string, fn func(st *state) error) error {
	if s.tx == nil {
		s.shared.mu.Lock()
		defer s.shared.mu.Unlock()
	}
	if hook := s.shared.hook; hook != nil {
		if err := hook(op); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	st := s.tx
	if st == nil {
		st = s.shared.state
	}
	return fn(st)
}

func (s *Store) CreateOrganization(ctx context.Context, org domain.Organization) (domain.Organization, error) {
	var created domain.Organization
	err := s.run("organizations.create", func(st *state) error {
		if _, ok := st.orgs[org.ID]; ok {
			return fmt.Errorf("create organization: %w", repository.ErrConflict)
		}
		for _, existing := range st.orgs {
			if existing.Name == org.Name {
				return fmt.Errorf("create organization: %w", repository.ErrConflict)
			}
		}
		now := time.Now().UTC()
		org.CreatedAt, org.UpdatedAt = now, now
		st.orgs[org.ID] = copyOrganization(org)
		created = copyOrganization(org)
		return nil
	})
	return created, err
}

func (s *Store) GetOrganization(ctx context.Context, orgID domain.ID) (domain.Organization, error) {
	var found domain.Organization
	err := s.run("organizations.get", func(st *state) error {
		org, ok := st.orgs[orgID]
		if !ok {
			return fmt.Errorf("get organization: %w", repository.ErrNotFound)
		}
		found = copyOrganization(org)
		return nil
	})
	return found, err
}

func (s *Store) GetOrganizationByName(ctx context.Context, name string) (domain.Organization, error) {
	var found domain.Organization
	err := s.run("organizations.get_by_name", func(st *state) error {
		for _, org := range st.orgs {
			if org.Name == name {
				found = copyOrganization(org)
				return nil
			}
		}
		return fmt.Errorf("get organization by name: %w", repository.ErrNotFound)
	})
	return found, err
}

func (s *Store) RenameOrganization(ctx context.Context, orgID domain.ID, name string) (domain.Organization, error) {
	var renamed domain.Organization
	err := s.run("organizations.rename", func(st *state) error {
		org, ok := st.orgs[orgID]
		if !ok {
			return fmt.Errorf("rename organization: %w", repository.ErrNotFound)
		}
		for id, existing := range st.orgs {
			if id != orgID && existing.Name == name {
				return fmt.Errorf("rename organization: %w", repository.ErrConflict)
			}
		}
		org.Name = name
		org.UpdatedAt = time.Now().UTC()
		st.orgs[orgID] = org
		renamed = copyOrganization(org)
		return nil
	})
	return renamed, err
}

func (s *Store) DeleteOrganization(ctx context.Context, orgID domain.ID) error {
	return s.run("organizations.delete", func(st *state) error {
		if _, ok := st.orgs[orgID]; !ok {
			return fmt.Errorf("delete organization: %w", repository.ErrNotFound)
		}
		delete(st.orgs, orgID)
		return nil
	})
}

func (s *Store) AddMember(ctx context.Context, orgID, userID domain.ID) error {
	return s.run("organizations.add_member", func(st *state) error {
		org, ok := st.orgs[orgID]
		if !ok {
			return fmt.Errorf("add member: %w", repository.ErrNotFound)
		}
		if !org.HasMember(userID) {
			org.MemberIDs = append(slices.Clone(org.MemberIDs), userID)
			org.UpdatedAt = time.Now().UTC()
			st.orgs[orgID] = org
		}
		return nil
	})
}

func (s *Store) RemoveMember(ctx context.Context, orgID, userID domain.ID) error {
	return s.run("organizations.remove_member", func(st *state) error {
		org, ok := st.orgs[orgID]
		if !ok {
			return fmt.Errorf("remove member: %w", repository.ErrNotFound)
		}
		org.MemberIDs = slices.DeleteFunc(slices.Clone(org.MemberIDs), func(id domain.ID) bool {
			return id == userID
		})
		org.UpdatedAt = time.Now().UTC()
		st.orgs[orgID] = org
		return nil
	})
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	var created domain.User
	err := s.run("users.create", func(st *state) error {
		if _, ok := st.users[user.ID]; ok {
			return fmt.Errorf("create user: %w", repository.ErrConflict)
		}
		if emailTaken(st, user.Email, 0) {
			return fmt.Errorf("create user: %w", repository.ErrConflict)
		}
		now := time.Now().UTC()
		user.CreatedAt, user.UpdatedAt = now, now
		st.users[user.ID] = copyUser(user)
		created = copyUser(user)
		return nil
	})
	return created, err
}

func (s *Store) GetUser(ctx context.Context, userID domain.ID) (domain.User, error) {
	var found domain.User
	err := s.run("users.get", func(st *state) error {
		user, ok := st.users[userID]
		if !ok {
			return fmt.Errorf("get user: %w", repository.ErrNotFound)
		}
		found = copyUser(user)
		return nil
	})
	return found, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var found domain.User
	err := s.run("users.get_by_email", func(st *state) error {
		for _, user := range st.users {
			if user.Email == email {
				found = copyUser(user)
				return nil
			}
		}
		return fmt.Errorf("get user by email: %w", repository.ErrNotFound)
	})
	return found, err
}

func (s *Store) ListUsersByIDs(ctx context.Context, userIDs []domain.ID) ([]domain.User, error) {
	users := make([]domain.User, 0, len(userIDs))
	err := s.run("users.list_by_ids", func(st *state) error {
		for _, id := range userIDs {
			if user, ok := st.users[id]; ok {
				users = append(users, copyUser(user))
			}
		}
		return nil
	})
	return users, err
}

func (s *Store) ListUsersByOrganization(ctx context.Context, orgID domain.ID) ([]domain.User, error) {
	users := make([]domain.User, 0)
	err := s.run("users.list_by_organization", func(st *state) error {
		for _, user := range st.users {
			if user.BelongsTo(orgID) {
				users = append(users, copyUser(user))
			}
		}
		return nil
	})
	slices.SortFunc(users, func(a, b domain.User) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return users, err
}

func (s *Store) UpdateUserProfile(ctx context.Context, user domain.User) (domain.User, error) {
	var updated domain.User
	err := s.run("users.update", func(st *state) error {
		current, ok := st.users[user.ID]
		if !ok {
			return fmt.Errorf("update user: %w", repository.ErrNotFound)
		}
		if emailTaken(st, user.Email, user.ID) {
			return fmt.Errorf("update user: %w", repository.ErrConflict)
		}
		current.FirstName = user.FirstName
		current.LastName = user.LastName
		current.Email = user.Email
		current.UpdatedAt = time.Now().UTC()
		st.users[user.ID] = current
		updated = copyUser(current)
		return nil
	})
	return updated, err
}

func (s *Store) SetUserPassword(ctx context.Context, userID domain.ID, digest string) error {
	return s.run("users.set_password", func(st *state) error {
		user, ok := st.users[userID]
		if !ok {
			return fmt.Errorf("set user password: %w", repository.ErrNotFound)
		}
		user.PasswordHash = digest
		user.UpdatedAt = time.Now().UTC()
		st.users[userID] = user
		return nil
	})
}

func (s *Store) SetUserOrganization(ctx context.Context, userID domain.ID, orgID *domain.ID) error {
	return s.run("users.set_organization", func(st *state) error {
		user, ok := st.users[userID]
		if !ok {
			return fmt.Errorf("set user organization: %w", repository.ErrNotFound)
		}
		user.OrganizationID = copyID(orgID)
		user.UpdatedAt = time.Now().UTC()
		st.users[userID] = user
		return nil
	})
}

func (s *Store) DeleteUser(ctx context.Context, userID domain.ID) error {
	return s.run("users.delete", func(st *state) error {
		if _, ok := st.users[userID]; !ok {
			return fmt.Errorf("delete user: %w", repository.ErrNotFound)
		}
		delete(st.users, userID)
		return nil
	})
}

func emailTaken(st *state, email string, except domain.ID) bool {
	for id, user := range st.users {
		if id != except && user.Email == email {
			return true
		}
	}
	return false
}

func copyOrganization(org domain.Organization) domain.Organization {
	org.MemberIDs = slices.Clone(org.MemberIDs)
	org.ClientID = copyID(org.ClientID)
	return org
}

func copyUser(user domain.User) domain.User {
	user.RoleIDs = slices.Clone(user.RoleIDs)
	user.PrimaryAssetID = copyID(user.PrimaryAssetID)
	user.OrganizationID = copyID(user.OrganizationID)
	return user
}

func copyID(id *domain.ID) *domain.ID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
