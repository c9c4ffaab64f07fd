package api

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/meshfoundry/idhub/pkg/httputil"
	"github.com/meshfoundry/idhub/pkg/identityproviders"
	"github.com/meshfoundry/idhub/pkg/observability"
	"github.com/meshfoundry/idhub/pkg/serviceaccounts"
	"github.com/meshfoundry/idhub/pkg/store"
)

// Provisioner creates service accounts across the gateway and the store
type Provisioner interface {
	CreateServiceAccount(
		ctx context.Context,
		req serviceaccounts.CreationRequest,
		companyID uuid.UUID,
		bpns []string,
		accountType store.AccountType,
		enhanceName bool,
		enabled bool,
		processData *serviceaccounts.ProcessData,
		setOptional func(*serviceaccounts.RecordFields),
	) (bool, []serviceaccounts.CreatedServiceAccount, error)
}

// LinkReconciler applies a bulk identity-provider link upload
type LinkReconciler interface {
	ReconcileLinks(ctx context.Context, upload io.Reader, actingUserID string) (*identityproviders.ReconcileResult, error)
}

// ProviderDirectory manages a company's identity provider configuration
type ProviderDirectory interface {
	ListProviders(ctx context.Context, companyID uuid.UUID) ([]store.CompanyIdentityProvider, error)
	RegisterProvider(ctx context.Context, companyID uuid.UUID, category store.ProviderCategory, alias string, samlMetadata []byte) (*store.CompanyIdentityProvider, error)
}

// CompanyResolver maps an acting user identifier to its company
type CompanyResolver interface {
	GetCompanyAndUserID(ctx context.Context, actingUserID string) (companyID, companyUserID uuid.UUID, err error)
}

// Archiver stores a copy of processed uploads. Implementations must consume
// the reader fully.
type Archiver interface {
	Store(ctx context.Context, key string, r io.Reader) error
}

// AuditRecorder records who did what. Recording is best-effort; failures
// must not fail the request.
type AuditRecorder interface {
	Record(ctx context.Context, action, subject string, details map[string]string)
}

// Server is the HTTP API for provisioning and reconciliation
type Server struct {
	router      *mux.Router
	provisioner Provisioner
	reconciler  LinkReconciler
	providers   ProviderDirectory
	resolver    CompanyResolver
	archiver    Archiver
	audit       AuditRecorder
	auth        *Authenticator
	metrics     *observability.Metrics
	logger      *observability.Logger
}

// ServerOptions collects the server's collaborators. Archiver and Audit are
// optional.
type ServerOptions struct {
	Provisioner Provisioner
	Reconciler  LinkReconciler
	Providers   ProviderDirectory
	Resolver    CompanyResolver
	Archiver    Archiver
	Audit       AuditRecorder
	Auth        *Authenticator
	Metrics     *observability.Metrics
	Logger      *observability.Logger
}

// NewServer creates the API server and sets up its routes
func NewServer(opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s := &Server{
		router:      mux.NewRouter(),
		provisioner: opts.Provisioner,
		reconciler:  opts.Reconciler,
		providers:   opts.Providers,
		resolver:    opts.Resolver,
		archiver:    opts.Archiver,
		audit:       opts.Audit,
		auth:        opts.Auth,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
	s.setupRoutes()
	return s
}

// maxUploadBytes caps reconciliation upload bodies (64 MiB)
const maxUploadBytes = 64 << 20

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware(),
		httputil.RecoveryMiddleware(s.logger),
		httputil.MaxBytesMiddleware(maxUploadBytes),
		s.auth.Middleware(),
	)

	s.handle("POST", "/api/v1/companies/{companyID}/service-accounts", chain, s.createServiceAccount)
	s.handle("POST", "/api/v1/identity-provider-links", chain, s.reconcileLinks)
	s.handle("GET", "/api/v1/identity-providers", chain, s.listProviders)
	s.handle("POST", "/api/v1/identity-providers", chain, s.registerProvider)
}

func (s *Server) handle(method, path string, chain httputil.Middleware, handler http.HandlerFunc) {
	var h http.Handler = chain(handler)
	if s.metrics != nil {
		h = s.metrics.HTTPMiddleware(path, h)
	}
	s.router.Handle(path, h).Methods(method)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) recordAudit(ctx context.Context, action string, details map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, action, observability.GetActingUser(ctx), details)
}
