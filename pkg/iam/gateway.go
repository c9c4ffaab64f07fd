package iam

import "context"

// Gateway is the capability surface of the external identity-and-access
// management system. It is the source of truth for client identities and
// identity-provider links; the local store only mirrors them.
type Gateway interface {
	// SetupServiceAccountClient creates a client with the given id and
	// configuration, including its role grants grouped by owning client.
	SetupServiceAccountClient(ctx context.Context, clientID string, cfg ClientConfig) (*ServiceAccountData, error)

	// SetUserAttribute sets a multi-valued attribute on the client's service
	// account user.
	SetUserAttribute(ctx context.Context, userEntityID, key string, values []string) error

	// AddProtocolMapper attaches the attribute protocol mapper extension to
	// a created client.
	AddProtocolMapper(ctx context.Context, internalClientID string) error

	// GetUserProviderLinks returns the current identity-provider links for a
	// central user.
	GetUserProviderLinks(ctx context.Context, userEntityID string) ([]ProviderLink, error)

	// UpsertUserProviderLink creates or updates a single provider link.
	UpsertUserProviderLink(ctx context.Context, userEntityID string, link ProviderLink) error
}
