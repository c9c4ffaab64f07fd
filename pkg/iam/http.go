package iam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/meshfoundry/idhub/pkg/fault"
)

// HTTPConfig holds the connection settings for the gateway admin API
type HTTPConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// HTTPGateway implements Gateway against the gateway's JSON admin API.
// Requests authenticate via OAuth2 client credentials; the token source
// refreshes transparently.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway creates a gateway client from config
func NewHTTPGateway(cfg HTTPConfig) *HTTPGateway {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &oauth2Transport{
			base: otelhttp.NewTransport(http.DefaultTransport),
			cc:   cc,
		},
	}

	return &HTTPGateway{
		baseURL: cfg.BaseURL,
		client:  client,
	}
}

// oauth2Transport injects client-credentials tokens and traces outbound calls
type oauth2Transport struct {
	base http.RoundTripper
	cc   clientcredentials.Config
}

func (t *oauth2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.cc.TokenSource(req.Context()).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain gateway token: %w", err)
	}
	clone := req.Clone(req.Context())
	token.SetAuthHeader(clone)
	return t.base.RoundTrip(clone)
}

type createClientRequest struct {
	ClientID    string              `json:"client_id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	AuthMethod  ClientAuthMethod    `json:"auth_method"`
	RoleGrants  map[string][]string `json:"role_grants"`
	Enabled     bool                `json:"enabled"`
}

// SetupServiceAccountClient creates a service account client in the gateway
func (g *HTTPGateway) SetupServiceAccountClient(ctx context.Context, clientID string, cfg ClientConfig) (*ServiceAccountData, error) {
	body := createClientRequest{
		ClientID:    clientID,
		Name:        cfg.Name,
		Description: cfg.Description,
		AuthMethod:  cfg.AuthMethod,
		RoleGrants:  cfg.RoleGrants,
		Enabled:     cfg.Enabled,
	}

	var data ServiceAccountData
	if err := g.do(ctx, http.MethodPost, "/admin/clients", body, &data); err != nil {
		return nil, &fault.ExternalSystemError{Op: "CreateClient", Err: err}
	}
	return &data, nil
}

// SetUserAttribute sets a multi-valued attribute on a central user
func (g *HTTPGateway) SetUserAttribute(ctx context.Context, userEntityID, key string, values []string) error {
	path := fmt.Sprintf("/admin/users/%s/attributes/%s", url.PathEscape(userEntityID), url.PathEscape(key))
	if err := g.do(ctx, http.MethodPut, path, map[string][]string{"values": values}, nil); err != nil {
		return &fault.ExternalSystemError{Op: "SetAttribute", Err: err}
	}
	return nil
}

// AddProtocolMapper attaches the attribute protocol mapper to a client
func (g *HTTPGateway) AddProtocolMapper(ctx context.Context, internalClientID string) error {
	path := fmt.Sprintf("/admin/clients/%s/protocol-mappers", url.PathEscape(internalClientID))
	if err := g.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return &fault.ExternalSystemError{Op: "AddProtocolMapper", Err: err}
	}
	return nil
}

// GetUserProviderLinks returns the current provider links for a central user
func (g *HTTPGateway) GetUserProviderLinks(ctx context.Context, userEntityID string) ([]ProviderLink, error) {
	path := fmt.Sprintf("/admin/users/%s/federated-identities", url.PathEscape(userEntityID))
	var links []ProviderLink
	if err := g.do(ctx, http.MethodGet, path, nil, &links); err != nil {
		return nil, &fault.ExternalSystemError{Op: "GetUserProviderLinks", Err: err}
	}
	return links, nil
}

// UpsertUserProviderLink creates or updates a provider link for a central user
func (g *HTTPGateway) UpsertUserProviderLink(ctx context.Context, userEntityID string, link ProviderLink) error {
	path := fmt.Sprintf("/admin/users/%s/federated-identities/%s", url.PathEscape(userEntityID), url.PathEscape(link.Alias))
	if err := g.do(ctx, http.MethodPut, path, link, nil); err != nil {
		return &fault.ExternalSystemError{Op: "UpsertUserProviderLink", Err: err}
	}
	return nil
}

// do performs a JSON request against the admin API and decodes the response
// into out when out is non-nil
func (g *HTTPGateway) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
