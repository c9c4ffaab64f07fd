package store

import (
	"time"

	"github.com/google/uuid"
)

// IdentityStatus represents the lifecycle status of an identity
type IdentityStatus string

const (
	IdentityStatusActive  IdentityStatus = "ACTIVE"
	IdentityStatusPending IdentityStatus = "PENDING"
)

// IdentityType represents the kind of identity being created
type IdentityType string

const (
	IdentityTypeCompanyUser           IdentityType = "COMPANY_USER"
	IdentityTypeCompanyServiceAccount IdentityType = "COMPANY_SERVICE_ACCOUNT"
)

// AccountKind distinguishes locally managed service accounts from those
// provisioned in an external system
type AccountKind string

const (
	AccountKindInternal AccountKind = "INTERNAL"
	AccountKindExternal AccountKind = "EXTERNAL"
)

// AccountType represents the caller-supplied service account type
type AccountType string

const (
	AccountTypeOwn     AccountType = "OWN"
	AccountTypeManaged AccountType = "MANAGED"
)

// ProcessType identifies an asynchronous provisioning workflow
type ProcessType string

const (
	ProcessTypeExternalAccountCreation ProcessType = "EXTERNAL_ACCOUNT_CREATION"
	ProcessTypeOfferSubscription       ProcessType = "OFFER_SUBSCRIPTION"
)

// StepType identifies a single stage within a process
type StepType string

const (
	StepTypeCreateExternalAccount     StepType = "CREATE_EXTERNAL_ACCOUNT"
	StepTypeCreateSubscriptionAccount StepType = "CREATE_SUBSCRIPTION_ACCOUNT"
)

// StepStatus represents the state of a process step
type StepStatus string

const (
	StepStatusTodo   StepStatus = "TODO"
	StepStatusDone   StepStatus = "DONE"
	StepStatusFailed StepStatus = "FAILED"
)

// ProviderCategory classifies an identity provider. Shared providers are
// centrally managed and their user bindings must not be reassigned via bulk
// upload.
type ProviderCategory string

const (
	CategoryShared ProviderCategory = "SHARED"
	CategoryOIDC   ProviderCategory = "OIDC"
	CategorySAML   ProviderCategory = "SAML"
)

// RoleDescriptor describes a resolved permission role
type RoleDescriptor struct {
	ID             uuid.UUID `json:"id"`
	OwningClientID string    `json:"owning_client_id"`
	Name           string    `json:"name"`
}

// CompanyIdentityProvider is an identity provider configured for a company
type CompanyIdentityProvider struct {
	ID       uuid.UUID        `json:"id"`
	Category ProviderCategory `json:"category"`
	Alias    string           `json:"alias"`
}

// UserEntityData holds the central user reference and declared personal data
// for a company user
type UserEntityData struct {
	UserEntityID string `json:"user_entity_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
}

// StaleExternalAccount describes a PENDING external service account that has
// not been completed by the provisioning worker within the expected window
type StaleExternalAccount struct {
	ServiceAccountID uuid.UUID `json:"service_account_id"`
	Name             string    `json:"name"`
	CreatedAt        time.Time `json:"created_at"`
}
