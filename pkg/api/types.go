package api

import (
	"github.com/google/uuid"

	"github.com/meshfoundry/idhub/pkg/iam"
	"github.com/meshfoundry/idhub/pkg/serviceaccounts"
	"github.com/meshfoundry/idhub/pkg/store"
)

// CreateServiceAccountRequest is the provisioning request body
type CreateServiceAccountRequest struct {
	Name                   string               `json:"name"`
	Description            string               `json:"description"`
	AuthMethod             iam.ClientAuthMethod `json:"auth_method"`
	RoleIDs                []uuid.UUID          `json:"role_ids"`
	BusinessPartnerNumbers []string             `json:"business_partner_numbers,omitempty"`
}

// CreateServiceAccountResponse is the ordered creation result, primary
// account first
type CreateServiceAccountResponse struct {
	HasExternalAccount bool                                   `json:"has_external_account"`
	Accounts           []serviceaccounts.CreatedServiceAccount `json:"accounts"`
}

// RegisterProviderRequest registers an identity provider for the acting
// user's company. SAMLMetadata carries the raw metadata document for
// SAML-category providers.
type RegisterProviderRequest struct {
	Alias        string                 `json:"alias"`
	Category     store.ProviderCategory `json:"category"`
	SAMLMetadata string                 `json:"saml_metadata,omitempty"`
}
