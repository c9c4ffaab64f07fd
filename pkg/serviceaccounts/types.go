package serviceaccounts

import (
	"github.com/google/uuid"

	"github.com/meshfoundry/idhub/pkg/iam"
	"github.com/meshfoundry/idhub/pkg/store"
)

// CreationRequest describes the service account to provision
type CreationRequest struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	AuthMethod  iam.ClientAuthMethod `json:"auth_method"`
	RoleIDs     []uuid.UUID          `json:"role_ids"`
}

// ProcessData carries optional process linkage for externally provisioned
// accounts. When ProcessID is nil a new process of ProcessType is created;
// otherwise the existing process is reused.
type ProcessData struct {
	ProcessType *store.ProcessType
	ProcessID   *uuid.UUID
}

// CreatedServiceAccount is one entry of the ordered creation result,
// primary account first
type CreatedServiceAccount struct {
	ID          uuid.UUID               `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Status      store.IdentityStatus    `json:"status"`
	ClientID    *string                 `json:"client_id,omitempty"`
	AccountData *iam.ServiceAccountData `json:"account_data,omitempty"`
	Roles       []store.RoleDescriptor  `json:"roles"`
}

// RecordFields are the mutable fields of a service account record exposed to
// the optional-field setter before persistence
type RecordFields struct {
	Name        string
	Description string
	ClientID    *string
}

// Settings configures the orchestrator
type Settings struct {
	// ClientIDPrefix is prepended to the allocated sequence value to form
	// the external client identifier.
	ClientIDPrefix string

	// ExternalTriggerRoles maps an owning client identifier to the role
	// names that trigger creation of an externally provisioned account.
	ExternalTriggerRoles map[string][]string

	// TriggerRolesFn supersedes ExternalTriggerRoles when set, so the
	// mapping can be reloaded without restarting.
	TriggerRolesFn func() map[string][]string
}

// triggerRoles returns the active mapping
func (s Settings) triggerRoles() map[string][]string {
	if s.TriggerRolesFn != nil {
		return s.TriggerRolesFn()
	}
	return s.ExternalTriggerRoles
}
