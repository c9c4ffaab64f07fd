package identityproviders

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/russellhaering/gosaml2/types"
	dsig "github.com/russellhaering/goxmldsig"
)

const redirectBinding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"

// SAMLMetadata is the provider configuration extracted from an identity
// provider's metadata document during registration. No assertion processing
// happens here; the certificates feed the gateway's federation setup.
type SAMLMetadata struct {
	EntityID     string
	SSOLocation  string
	Certificates *dsig.MemoryX509CertificateStore
}

// ParseSAMLMetadata extracts the entity id, SSO endpoint and signing
// certificates from an IdP metadata document
func ParseSAMLMetadata(data []byte) (*SAMLMetadata, error) {
	var descriptor types.EntityDescriptor
	if err := xml.Unmarshal(data, &descriptor); err != nil {
		return nil, fmt.Errorf("failed to parse metadata document: %w", err)
	}
	if descriptor.EntityID == "" {
		return nil, fmt.Errorf("metadata document has no entity id")
	}
	if descriptor.IDPSSODescriptor == nil {
		return nil, fmt.Errorf("metadata document describes no identity provider")
	}

	var ssoLocation string
	for _, svc := range descriptor.IDPSSODescriptor.SingleSignOnServices {
		if svc.Binding == redirectBinding {
			ssoLocation = svc.Location
			break
		}
		if ssoLocation == "" {
			ssoLocation = svc.Location
		}
	}
	if ssoLocation == "" {
		return nil, fmt.Errorf("metadata document declares no single sign-on service")
	}

	certStore := &dsig.MemoryX509CertificateStore{}
	for _, kd := range descriptor.IDPSSODescriptor.KeyDescriptors {
		for _, xcert := range kd.KeyInfo.X509Data.X509Certificates {
			raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(xcert.Data), ""))
			if err != nil {
				return nil, fmt.Errorf("failed to decode signing certificate: %w", err)
			}
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return nil, fmt.Errorf("failed to parse signing certificate: %w", err)
			}
			certStore.Roots = append(certStore.Roots, cert)
		}
	}
	if len(certStore.Roots) == 0 {
		return nil, fmt.Errorf("metadata document carries no signing certificate")
	}

	return &SAMLMetadata{
		EntityID:     descriptor.EntityID,
		SSOLocation:  ssoLocation,
		Certificates: certStore,
	}, nil
}
