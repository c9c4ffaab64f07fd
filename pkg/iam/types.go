package iam

// ClientAuthMethod is the authentication method configured on a created client
type ClientAuthMethod string

const (
	AuthMethodSecret ClientAuthMethod = "SECRET"
	AuthMethodJWT    ClientAuthMethod = "JWT"
)

// RoleGrants maps an owning client identifier to the role names to grant.
// Roles from different owning clients must be grouped separately when
// configuring a created client.
type RoleGrants map[string][]string

// ClientConfig describes the client to create in the gateway
type ClientConfig struct {
	Name        string
	Description string
	AuthMethod  ClientAuthMethod
	RoleGrants  RoleGrants
	Enabled     bool
}

// ServiceAccountData identifies a created client in the gateway
type ServiceAccountData struct {
	ClientID         string `json:"client_id"`
	InternalClientID string `json:"internal_client_id"`
	UserEntityID     string `json:"user_entity_id"`
}

// ProviderLink is a per-user binding to an identity provider, scoped by the
// provider alias
type ProviderLink struct {
	Alias    string `json:"alias"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}
