package identityproviders

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const idpSigningCert = `MIIDFTCCAf2gAwIBAgIURPS1uOCBvXeB3H5phWo/MwbciNUwDQYJKoZIhvcNAQEL
BQAwGjEYMBYGA1UEAwwPaWRwLmV4YW1wbGUub3JnMB4XDTI2MDgyOTE5MTA1N1oX
DTM2MDgyNjE5MTA1N1owGjEYMBYGA1UEAwwPaWRwLmV4YW1wbGUub3JnMIIBIjAN
BgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEAtWEFfeVO7uwt7zfvMbYO4h8O3ako
5qI+aTs+F5bsAG89msgkTyIuo+1kCtj0aNaQCrfydaJHXlYjIn94xA6IlvX9sfTs
H9zfWrTHGyR5+ghTui+8HF064UJgvri6OGo5aA99rhGY+kQeBfDMsrEV8kGt3kvV
yPJUIcALMvd73XYgAkIdl50iWnfTBsSk1+LD4hYKIuOBfDtttSleIKob4NCma5Ki
4iNN5SUzTeH9ADEn8WWPxYpR7mnSmYUlEmqxSjt/TDIs5Id46lPVA7MwSG8u3xiN
Xw7cxVNvJpMoMF/nlghOvCCli7KeoQLedcQrTjcimfVsM3oyQRdMVlDKpQIDAQAB
o1MwUTAdBgNVHQ4EFgQUPcHvbvTBQz1WAA7m8OeC3QoAzG8wHwYDVR0jBBgwFoAU
PcHvbvTBQz1WAA7m8OeC3QoAzG8wDwYDVR0TAQH/BAUwAwEB/zANBgkqhkiG9w0B
AQsFAAOCAQEAJTsddXLpkILX1+DItMZy4E9e1tMImKek9bQXgeA7QZqHEgEMytdQ
6hEL2BeMxb+YqbYI2znnhXWkehStqgXYVwTAS3KDWsIbll9+aVafdsKnlFEo6wzl
7kbn9CqZgLZjufuc9iE9sSeuGL87n3HXtwfIuYB1UG8XQRBSBBBDTYf0qdy2OJYP
jqlz/vNpNtYbXpoBkcNV1me/zbvW+/FXbSZ1yGMwrx+g7UUro3qWYng9azCT21T2
Q6JAtMMbOBqHXyLHG59TmbXA+czklkMXsWz14AmK17nGlfSDo83NHppWDfG/Kp2J
QLLTlQ7vH1jqwEosLSLDjDBRYR4mmH4VTQ==`

func idpMetadata(entityID, cert, ssoService string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata" entityID="%s">
  <md:IDPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    %s
    %s
  </md:IDPSSODescriptor>
</md:EntityDescriptor>`, entityID, cert, ssoService))
}

func keyDescriptor(cert string) string {
	return fmt.Sprintf(`<md:KeyDescriptor use="signing">
      <ds:KeyInfo xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
        <ds:X509Data><ds:X509Certificate>%s</ds:X509Certificate></ds:X509Data>
      </ds:KeyInfo>
    </md:KeyDescriptor>`, cert)
}

func TestParseSAMLMetadata(t *testing.T) {
	redirectService := `<md:SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location="https://idp.example.org/sso/redirect"/>`
	postService := `<md:SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST" Location="https://idp.example.org/sso/post"/>`

	t.Run("extracts entity id, endpoint and certificate", func(t *testing.T) {
		md, err := ParseSAMLMetadata(idpMetadata("https://idp.example.org", keyDescriptor(idpSigningCert), redirectService))
		require.NoError(t, err)

		assert.Equal(t, "https://idp.example.org", md.EntityID)
		assert.Equal(t, "https://idp.example.org/sso/redirect", md.SSOLocation)
		require.Len(t, md.Certificates.Roots, 1)
		assert.Equal(t, "CN=idp.example.org", md.Certificates.Roots[0].Subject.String())
	})

	t.Run("prefers the redirect binding", func(t *testing.T) {
		md, err := ParseSAMLMetadata(idpMetadata("https://idp.example.org", keyDescriptor(idpSigningCert), postService+"\n"+redirectService))
		require.NoError(t, err)
		assert.Equal(t, "https://idp.example.org/sso/redirect", md.SSOLocation)
	})

	t.Run("falls back to any binding", func(t *testing.T) {
		md, err := ParseSAMLMetadata(idpMetadata("https://idp.example.org", keyDescriptor(idpSigningCert), postService))
		require.NoError(t, err)
		assert.Equal(t, "https://idp.example.org/sso/post", md.SSOLocation)
	})

	t.Run("rejects bad documents", func(t *testing.T) {
		tests := []struct {
			name string
			doc  []byte
		}{
			{"not xml", []byte("{}")},
			{"missing entity id", idpMetadata("", keyDescriptor(idpSigningCert), redirectService)},
			{"no sso service", idpMetadata("https://idp.example.org", keyDescriptor(idpSigningCert), "")},
			{"no certificate", idpMetadata("https://idp.example.org", "", redirectService)},
			{"garbage certificate", idpMetadata("https://idp.example.org", keyDescriptor("bm90LWEtY2VydA=="), redirectService)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ParseSAMLMetadata(tt.doc)
				assert.Error(t, err)
			})
		}
	})
}
