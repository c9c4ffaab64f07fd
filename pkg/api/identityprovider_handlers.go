package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meshfoundry/idhub/pkg/fault"
	"github.com/meshfoundry/idhub/pkg/httputil"
	"github.com/meshfoundry/idhub/pkg/identityproviders"
	"github.com/meshfoundry/idhub/pkg/observability"
)

// reconcileLinks handles POST /api/v1/identity-provider-links. The body is
// the CSV upload, either raw or as the "file" part of a multipart form.
func (s *Server) reconcileLinks(w http.ResponseWriter, r *http.Request) {
	actingUser := observability.GetActingUser(r.Context())

	upload, err := uploadBody(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	defer upload.Close()

	var reader io.Reader = upload
	g, ctx := errgroup.WithContext(r.Context())

	// Archive a copy of the upload while the reconciler streams it. Archive
	// failures are logged, not surfaced.
	var pw *io.PipeWriter
	if s.archiver != nil {
		var pr *io.PipeReader
		pr, pw = io.Pipe()
		reader = io.TeeReader(upload, pw)
		key := fmt.Sprintf("uploads/%s/%s.csv", time.Now().UTC().Format("2006/01/02"), uuid.NewString())
		g.Go(func() error {
			if err := s.archiver.Store(ctx, key, pr); err != nil {
				s.logger.WithError(err).Warn("failed to archive reconciliation upload")
				io.Copy(io.Discard, pr)
			}
			return nil
		})
	}

	result, err := s.reconciler.ReconcileLinks(ctx, reader, actingUser)
	if pw != nil {
		pw.Close()
		g.Wait()
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.ReconciliationRunsTotal.WithLabelValues("error").Inc()
		}
		httputil.WriteFault(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.ReconciliationRunsTotal.WithLabelValues("success").Inc()
		s.metrics.ReconciliationRowsTotal.WithLabelValues("updated").Add(float64(result.Updated))
		s.metrics.ReconciliationRowsTotal.WithLabelValues("unchanged").Add(float64(result.Unchanged))
		s.metrics.ReconciliationRowsTotal.WithLabelValues("error").Add(float64(result.Error))
	}
	s.recordAudit(r.Context(), "identity_provider_links.reconcile", map[string]string{
		"total":   strconv.Itoa(result.Total),
		"updated": strconv.Itoa(result.Updated),
		"errors":  strconv.Itoa(result.Error),
	})

	httputil.WriteSuccess(w, result)
}

// uploadBody extracts the CSV stream from the request
func uploadBody(r *http.Request) (io.ReadCloser, error) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return r.Body, nil
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing file part: %w", err)
	}
	return file, nil
}

// listProviders handles GET /api/v1/identity-providers
func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	companyID, ok := s.actingCompany(w, r)
	if !ok {
		return
	}

	providers, err := s.providers.ListProviders(r.Context(), companyID)
	if err != nil {
		httputil.WriteFault(w, err)
		return
	}
	httputil.WriteSuccess(w, providers)
}

// registerProvider handles POST /api/v1/identity-providers
func (s *Server) registerProvider(w http.ResponseWriter, r *http.Request) {
	companyID, ok := s.actingCompany(w, r)
	if !ok {
		return
	}

	var req RegisterProviderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	provider, err := s.providers.RegisterProvider(r.Context(), companyID, req.Category, req.Alias, []byte(req.SAMLMetadata))
	if err != nil {
		if errors.Is(err, identityproviders.ErrInvalidProviderRequest) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		httputil.WriteFault(w, err)
		return
	}

	s.recordAudit(r.Context(), "identity_provider.register", map[string]string{
		"alias":    provider.Alias,
		"category": string(provider.Category),
	})
	httputil.WriteCreated(w, provider)
}

// actingCompany resolves the acting user's company or writes the error
func (s *Server) actingCompany(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actingUser := observability.GetActingUser(r.Context())
	companyID, _, err := s.resolver.GetCompanyAndUserID(r.Context(), actingUser)
	if err != nil {
		httputil.WriteFault(w, err)
		return uuid.Nil, false
	}
	if companyID == uuid.Nil {
		httputil.WriteFault(w, &fault.UnauthorizedError{Subject: actingUser})
		return uuid.Nil, false
	}
	return companyID, true
}
