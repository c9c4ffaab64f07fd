package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/meshfoundry/idhub/pkg/httputil"
	"github.com/meshfoundry/idhub/pkg/observability"
)

// TokenVerifier validates a raw bearer token and returns its claims. The
// production implementation is *oidc.IDTokenVerifier.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Authenticator authenticates API requests against the IAM gateway's OIDC
// issuer and stores the token subject as the acting user.
type Authenticator struct {
	verifier TokenVerifier
	disabled bool
	logger   *observability.Logger
}

// NewAuthenticator discovers the OIDC issuer and builds a token verifier
func NewAuthenticator(ctx context.Context, issuerURL, clientID string, logger *observability.Logger) (*Authenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		logger:   logger,
	}, nil
}

// NewDisabledAuthenticator trusts the X-Acting-User header instead of a
// token. Development only.
func NewDisabledAuthenticator(logger *observability.Logger) *Authenticator {
	return &Authenticator{disabled: true, logger: logger}
}

// Middleware authenticates the request and stores the acting user id on the
// context
func (a *Authenticator) Middleware() httputil.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.disabled {
				actingUser := r.Header.Get("X-Acting-User")
				if actingUser == "" {
					httputil.WriteUnauthorized(w, "missing X-Acting-User header")
					return
				}
				next.ServeHTTP(w, r.WithContext(observability.WithActingUser(r.Context(), actingUser)))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteUnauthorized(w, "missing authorization header")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httputil.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			token, err := a.verifier.Verify(r.Context(), parts[1])
			if err != nil {
				a.logger.WithError(err).Debug("token verification failed")
				httputil.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(observability.WithActingUser(r.Context(), token.Subject)))
		})
	}
}
