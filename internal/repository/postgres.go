package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallbiznis/valora-identity/internal/domain"
)

// Compile-time interface assertions.
var _ Store = (*PostgresStore)(nil)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

func (s *PostgresStore) InTx(ctx context.Context, fn TxFunc) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &PostgresStore{pool: s.pool, db: tx, inTx: true})
	})
}

const organizationColumns = `id, name, entity_type, esign, save_data, data_retention, active, member_ids, client_id, created_at, updated_at`

const insertOrganizationSQL = `INSERT INTO organizations (id, name, entity_type, esign, save_data, data_retention, active, member_ids, client_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + organizationColumns

func (s *PostgresStore) CreateOrganization(ctx context.Context, org domain.Organization) (domain.Organization, error) {
	esign, err := json.Marshal(org.ESign)
	if err != nil {
		return domain.Organization{}, fmt.Errorf("encode esign: %w", err)
	}

	row := s.db.QueryRow(ctx, insertOrganizationSQL,
		org.ID.Int64(),
		org.Name,
		org.EntityType,
		esign,
		org.SaveData,
		org.DataRetention,
		org.Active,
		domain.IDsToInt64(org.MemberIDs),
		nullableID(org.ClientID),
	)
	created, err := scanOrganization(row)
	if err != nil {
		return domain.Organization{}, fmt.Errorf("create organization: %w", mapError(err))
	}
	return created, nil
}

func (s *PostgresStore) GetOrganization(ctx context.Context, orgID domain.ID) (domain.Organization, error) {
	row := s.db.QueryRow(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, orgID.Int64())
	org, err := scanOrganization(row)
	if err != nil {
		return domain.Organization{}, fmt.Errorf("get organization: %w", mapError(err))
	}
	return org, nil
}

func (s *PostgresStore) GetOrganizationByName(ctx context.Context, name string) (domain.Organization, error) {
	row := s.db.QueryRow(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE name = $1`, name)
	org, err := scanOrganization(row)
	if err != nil {
		return domain.Organization{}, fmt.Errorf("get organization by name: %w", mapError(err))
	}
	return org, nil
}

const renameOrganizationSQL = `UPDATE organizations SET name = $2, updated_at = now()
WHERE id = $1
RETURNING ` + organizationColumns

func (s *PostgresStore) RenameOrganization(ctx context.Context, orgID domain.ID, name string) (domain.Organization, error) {
	org, err := scanOrganization(s.db.QueryRow(ctx, renameOrganizationSQL, orgID.Int64(), name))
	if err != nil {
		return domain.Organization{}, fmt.Errorf("rename organization: %w", mapError(err))
	}
	return org, nil
}

func (s *PostgresStore) DeleteOrganization(ctx context.Context, orgID domain.ID) error {
	return s.execOne(ctx, "delete organization", `DELETE FROM organizations WHERE id = $1`, orgID.Int64())
}

const addMemberSQL = `UPDATE organizations
SET member_ids = array_append(member_ids, $2), updated_at = now()
WHERE id = $1 AND NOT ($2 = ANY(member_ids))`

func (s *PostgresStore) AddMember(ctx context.Context, orgID, userID domain.ID) error {
	tag, err := s.db.Exec(ctx, addMemberSQL, orgID.Int64(), userID.Int64())
	if err != nil {
		return fmt.Errorf("add member: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		// Already a member is fine; a missing organization is not.
		return s.ensureOrganization(ctx, "add member", orgID)
	}
	return nil
}

const removeMemberSQL = `UPDATE organizations
SET member_ids = array_remove(member_ids, $2), updated_at = now()
WHERE id = $1`

func (s *PostgresStore) RemoveMember(ctx context.Context, orgID, userID domain.ID) error {
	return s.execOne(ctx, "remove member", removeMemberSQL, orgID.Int64(), userID.Int64())
}

func (s *PostgresStore) ensureOrganization(ctx context.Context, op string, orgID domain.ID) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM organizations WHERE id = $1)`, orgID.Int64()).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

const userColumns = `id, entity_type, email, password_hash, first_name, last_name, phone,
email_verified, active, mfa, primary_asset_id, organization_id, role_ids, created_at, updated_at`

const insertUserSQL = `INSERT INTO users (id, entity_type, email, password_hash, first_name, last_name, phone,
email_verified, active, mfa, primary_asset_id, organization_id, role_ids)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + userColumns

func (s *PostgresStore) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	row := s.db.QueryRow(ctx, insertUserSQL,
		user.ID.Int64(),
		user.EntityType,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Status.EmailVerified,
		user.Status.Active,
		user.Status.MFA,
		nullableID(user.PrimaryAssetID),
		nullableID(user.OrganizationID),
		domain.IDsToInt64(user.RoleIDs),
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", mapError(err))
	}
	return created, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID domain.ID) (domain.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID.Int64()))
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", mapError(err))
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", mapError(err))
	}
	return user, nil
}

func (s *PostgresStore) ListUsersByIDs(ctx context.Context, userIDs []domain.ID) ([]domain.User, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY array_position($1, id)`,
		domain.IDsToInt64(userIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("list users by ids: %w", err)
	}
	return collectUsers(rows, "list users by ids")
}

func (s *PostgresStore) ListUsersByOrganization(ctx context.Context, orgID domain.ID) ([]domain.User, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE organization_id = $1 ORDER BY id`, orgID.Int64())
	if err != nil {
		return nil, fmt.Errorf("list users by organization: %w", err)
	}
	return collectUsers(rows, "list users by organization")
}

const updateUserProfileSQL = `UPDATE users SET first_name = $2, last_name = $3, email = $4, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, user domain.User) (domain.User, error) {
	row := s.db.QueryRow(ctx, updateUserProfileSQL, user.ID.Int64(), user.FirstName, user.LastName, user.Email)
	updated, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", mapError(err))
	}
	return updated, nil
}

func (s *PostgresStore) SetUserPassword(ctx context.Context, userID domain.ID, digest string) error {
	return s.execOne(ctx, "set user password",
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID.Int64(), digest,
	)
}

func (s *PostgresStore) SetUserOrganization(ctx context.Context, userID domain.ID, orgID *domain.ID) error {
	return s.execOne(ctx, "set user organization",
		`UPDATE users SET organization_id = $2, updated_at = now() WHERE id = $1`,
		userID.Int64(), nullableID(orgID),
	)
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID domain.ID) error {
	return s.execOne(ctx, "delete user", `DELETE FROM users WHERE id = $1`, userID.Int64())
}

// execOne runs a statement that must touch exactly one row.
func (s *PostgresStore) execOne(ctx context.Context, op, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func scanOrganization(row pgx.Row) (domain.Organization, error) {
	var (
		org       domain.Organization
		id        int64
		esign     []byte
		memberIDs []int64
		clientID  *int64
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(
		&id,
		&org.Name,
		&org.EntityType,
		&esign,
		&org.SaveData,
		&org.DataRetention,
		&org.Active,
		&memberIDs,
		&clientID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Organization{}, err
	}
	if len(esign) > 0 {
		if err := json.Unmarshal(esign, &org.ESign); err != nil {
			return domain.Organization{}, fmt.Errorf("decode esign: %w", err)
		}
	}
	org.ID = domain.ID(id)
	org.MemberIDs = domain.IDsFromInt64(memberIDs)
	org.ClientID = idFromNullable(clientID)
	org.CreatedAt = createdAt
	org.UpdatedAt = updatedAt
	return org, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user           domain.User
		id             int64
		primaryAssetID *int64
		organizationID *int64
		roleIDs        []int64
	)
	if err := row.Scan(
		&id,
		&user.EntityType,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.Status.EmailVerified,
		&user.Status.Active,
		&user.Status.MFA,
		&primaryAssetID,
		&organizationID,
		&roleIDs,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return domain.User{}, err
	}
	user.ID = domain.ID(id)
	user.PrimaryAssetID = idFromNullable(primaryAssetID)
	user.OrganizationID = idFromNullable(organizationID)
	user.RoleIDs = domain.IDsFromInt64(roleIDs)
	return user, nil
}

func collectUsers(rows pgx.Rows, op string) ([]domain.User, error) {
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

func nullableID(id *domain.ID) *int64 {
	if id == nil {
		return nil
	}
	v := id.Int64()
	return &v
}

func idFromNullable(v *int64) *domain.ID {
	if v == nil {
		return nil
	}
	id := domain.ID(*v)
	return &id
}

// mapError translates driver errors into repository sentinels.
func mapError(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case isDuplicateKey(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
