package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the persistence surface for identities, role assignments and
// process records. The gateway-then-store ordering in the provisioning flows
// means implementations never participate in a transaction spanning the IAM
// gateway; each method is individually durable.
type Store interface {
	// Identity and service account records
	CreateIdentity(ctx context.Context, companyID uuid.UUID, status IdentityStatus, identityType IdentityType) (uuid.UUID, error)
	CreateServiceAccountRecord(ctx context.Context, identityID uuid.UUID, name, description string, clientID *string, accountType AccountType, kind AccountKind) (uuid.UUID, error)
	AssignRoles(ctx context.Context, identityID uuid.UUID, roleIDs []uuid.UUID) error

	// ResolveRoles returns descriptors for the role ids that exist. Missing
	// ids are detectable by count mismatch; callers own the validation.
	ResolveRoles(ctx context.Context, roleIDs []uuid.UUID) ([]RoleDescriptor, error)

	// Process and step records
	CreateProcess(ctx context.Context, processType ProcessType) (uuid.UUID, error)
	CreateStep(ctx context.Context, stepType StepType, status StepStatus, processID uuid.UUID) error
	LinkExternalCreation(ctx context.Context, serviceAccountID, processID uuid.UUID) error

	// Company user lookups for reconciliation
	GetCompanyAndUserID(ctx context.Context, actingUserID string) (companyID, companyUserID uuid.UUID, err error)
	GetUserEntityData(ctx context.Context, companyUserID, companyID uuid.UUID) (*UserEntityData, error)

	// Identity provider configuration
	GetCompanyIdentityProviders(ctx context.Context, companyID uuid.UUID) ([]CompanyIdentityProvider, error)
	CreateIdentityProvider(ctx context.Context, companyID uuid.UUID, category ProviderCategory, alias string) (uuid.UUID, error)

	// ListStaleExternalAccounts is the hook point for the maintenance
	// sweeper: PENDING external accounts older than the threshold.
	ListStaleExternalAccounts(ctx context.Context, olderThan time.Duration) ([]StaleExternalAccount, error)
}
