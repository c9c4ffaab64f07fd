package identityproviders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/meshfoundry/idhub/pkg/observability"
	"github.com/meshfoundry/idhub/pkg/store"
)

// ErrInvalidProviderRequest marks registration failures caused by the input
// rather than by a collaborator.
var ErrInvalidProviderRequest = errors.New("invalid provider registration")

// Service manages a company's identity provider configuration
type Service struct {
	store  store.Store
	logger *observability.Logger
}

// NewService creates a new identity provider Service
func NewService(st store.Store, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{store: st, logger: logger}
}

// ListProviders returns the identity providers configured for a company
func (s *Service) ListProviders(ctx context.Context, companyID uuid.UUID) ([]store.CompanyIdentityProvider, error) {
	return s.store.GetCompanyIdentityProviders(ctx, companyID)
}

// RegisterProvider registers an identity provider for a company. SAML
// providers require a metadata document; its entity id and signing
// certificates are extracted for the gateway's federation setup.
func (s *Service) RegisterProvider(ctx context.Context, companyID uuid.UUID, category store.ProviderCategory, alias string, samlMetadata []byte) (*store.CompanyIdentityProvider, error) {
	if alias == "" {
		return nil, fmt.Errorf("%w: provider alias is required", ErrInvalidProviderRequest)
	}

	switch category {
	case store.CategoryOIDC, store.CategoryShared:
	case store.CategorySAML:
		metadata, err := ParseSAMLMetadata(samlMetadata)
		if err != nil {
			return nil, fmt.Errorf("%w: bad SAML metadata for alias %q: %v", ErrInvalidProviderRequest, alias, err)
		}
		s.logger.WithFields(map[string]interface{}{
			"alias":     alias,
			"entity_id": metadata.EntityID,
			"sso_url":   metadata.SSOLocation,
		}).Info("registering SAML identity provider")
	default:
		return nil, fmt.Errorf("%w: unsupported provider category %q", ErrInvalidProviderRequest, category)
	}

	id, err := s.store.CreateIdentityProvider(ctx, companyID, category, alias)
	if err != nil {
		return nil, err
	}
	return &store.CompanyIdentityProvider{ID: id, Category: category, Alias: alias}, nil
}
