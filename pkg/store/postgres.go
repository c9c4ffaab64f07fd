package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateIdentity creates an identity row and returns its id
func (s *PostgresStore) CreateIdentity(ctx context.Context, companyID uuid.UUID, status IdentityStatus, identityType IdentityType) (uuid.UUID, error) {
	query := `
		INSERT INTO identities (company_id, status, identity_type)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, query, companyID, status, identityType).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create identity: %w", err)
	}
	return id, nil
}

// CreateServiceAccountRecord creates a service account row referencing an identity
func (s *PostgresStore) CreateServiceAccountRecord(ctx context.Context, identityID uuid.UUID, name, description string, clientID *string, accountType AccountType, kind AccountKind) (uuid.UUID, error) {
	query := `
		INSERT INTO service_accounts (identity_id, name, description, client_id, account_type, kind)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, query, identityID, name, description, clientID, accountType, kind).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create service account record: %w", err)
	}
	return id, nil
}

// AssignRoles assigns the given roles to an identity
func (s *PostgresStore) AssignRoles(ctx context.Context, identityID uuid.UUID, roleIDs []uuid.UUID) error {
	if len(roleIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO identity_assigned_roles (identity_id, role_id)
		SELECT $1, unnest($2::uuid[])
	`
	if _, err := s.db.ExecContext(ctx, query, identityID, pq.Array(roleIDs)); err != nil {
		return fmt.Errorf("failed to assign roles: %w", err)
	}
	return nil
}

// ResolveRoles returns descriptors for the role ids that exist
func (s *PostgresStore) ResolveRoles(ctx context.Context, roleIDs []uuid.UUID) ([]RoleDescriptor, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT r.id, c.client_id, r.name
		FROM user_roles r
		JOIN app_clients c ON c.id = r.owning_client_id
		WHERE r.id = ANY($1)
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(roleIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve roles: %w", err)
	}
	defer rows.Close()

	var descriptors []RoleDescriptor
	for rows.Next() {
		var d RoleDescriptor
		if err := rows.Scan(&d.ID, &d.OwningClientID, &d.Name); err != nil {
			return nil, fmt.Errorf("failed to scan role descriptor: %w", err)
		}
		descriptors = append(descriptors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to resolve roles: %w", err)
	}
	return descriptors, nil
}

// CreateProcess creates a process record of the given type
func (s *PostgresStore) CreateProcess(ctx context.Context, processType ProcessType) (uuid.UUID, error) {
	query := `
		INSERT INTO processes (process_type)
		VALUES ($1)
		RETURNING id
	`
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, query, processType).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create process: %w", err)
	}
	return id, nil
}

// CreateStep creates a process step belonging to an existing process
func (s *PostgresStore) CreateStep(ctx context.Context, stepType StepType, status StepStatus, processID uuid.UUID) error {
	query := `
		INSERT INTO process_steps (step_type, status, process_id)
		VALUES ($1, $2, $3)
	`
	if _, err := s.db.ExecContext(ctx, query, stepType, status, processID); err != nil {
		return fmt.Errorf("failed to create process step: %w", err)
	}
	return nil
}

// LinkExternalCreation connects a service account to the process driving its
// external provisioning
func (s *PostgresStore) LinkExternalCreation(ctx context.Context, serviceAccountID, processID uuid.UUID) error {
	query := `
		INSERT INTO external_creation_links (service_account_id, process_id)
		VALUES ($1, $2)
	`
	if _, err := s.db.ExecContext(ctx, query, serviceAccountID, processID); err != nil {
		return fmt.Errorf("failed to link external creation: %w", err)
	}
	return nil
}

// GetCompanyAndUserID resolves an acting user identifier to its company and
// company-user ids. Returns uuid.Nil values when the identifier is unknown.
func (s *PostgresStore) GetCompanyAndUserID(ctx context.Context, actingUserID string) (uuid.UUID, uuid.UUID, error) {
	query := `
		SELECT company_id, id
		FROM company_users
		WHERE user_entity_id = $1
	`
	var companyID, companyUserID uuid.UUID
	err := s.db.QueryRowContext(ctx, query, actingUserID).Scan(&companyID, &companyUserID)
	if err == sql.ErrNoRows {
		return uuid.Nil, uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("failed to resolve acting user: %w", err)
	}
	return companyID, companyUserID, nil
}

// GetUserEntityData returns the central user reference and declared personal
// data for a company user, scoped to the given company. Returns nil when the
// user does not exist or belongs to another company.
func (s *PostgresStore) GetUserEntityData(ctx context.Context, companyUserID, companyID uuid.UUID) (*UserEntityData, error) {
	query := `
		SELECT user_entity_id, first_name, last_name, email
		FROM company_users
		WHERE id = $1 AND company_id = $2
	`
	data := &UserEntityData{}
	err := s.db.QueryRowContext(ctx, query, companyUserID, companyID).Scan(
		&data.UserEntityID, &data.FirstName, &data.LastName, &data.Email,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user entity data: %w", err)
	}
	return data, nil
}

// GetCompanyIdentityProviders lists the identity providers configured for a company
func (s *PostgresStore) GetCompanyIdentityProviders(ctx context.Context, companyID uuid.UUID) ([]CompanyIdentityProvider, error) {
	query := `
		SELECT ip.id, ip.category, ip.alias
		FROM identity_providers ip
		JOIN company_identity_providers cip ON cip.identity_provider_id = ip.id
		WHERE cip.company_id = $1
		ORDER BY ip.alias ASC
	`
	rows, err := s.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identity providers: %w", err)
	}
	defer rows.Close()

	var providers []CompanyIdentityProvider
	for rows.Next() {
		var p CompanyIdentityProvider
		if err := rows.Scan(&p.ID, &p.Category, &p.Alias); err != nil {
			return nil, fmt.Errorf("failed to scan identity provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list identity providers: %w", err)
	}
	return providers, nil
}

// CreateIdentityProvider creates an identity provider and attaches it to a company
func (s *PostgresStore) CreateIdentityProvider(ctx context.Context, companyID uuid.UUID, category ProviderCategory, alias string) (uuid.UUID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id uuid.UUID
	err = tx.QueryRowContext(ctx,
		`INSERT INTO identity_providers (category, alias) VALUES ($1, $2) RETURNING id`,
		category, alias).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create identity provider: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO company_identity_providers (company_id, identity_provider_id) VALUES ($1, $2)`,
		companyID, id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to attach identity provider: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit identity provider: %w", err)
	}
	return id, nil
}

// ListStaleExternalAccounts lists PENDING external service accounts created
// before the threshold
func (s *PostgresStore) ListStaleExternalAccounts(ctx context.Context, olderThan time.Duration) ([]StaleExternalAccount, error) {
	query := `
		SELECT sa.id, sa.name, sa.created_at
		FROM service_accounts sa
		JOIN identities i ON i.id = sa.identity_id
		WHERE sa.kind = $1 AND i.status = $2 AND sa.created_at < $3
		ORDER BY sa.created_at ASC
	`
	cutoff := time.Now().Add(-olderThan)
	rows, err := s.db.QueryContext(ctx, query, AccountKindExternal, IdentityStatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale external accounts: %w", err)
	}
	defer rows.Close()

	var stale []StaleExternalAccount
	for rows.Next() {
		var a StaleExternalAccount
		if err := rows.Scan(&a.ServiceAccountID, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stale account: %w", err)
		}
		stale = append(stale, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stale external accounts: %w", err)
	}
	return stale, nil
}
