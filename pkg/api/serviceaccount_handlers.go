package api

import (
	"net/http"

	"github.com/meshfoundry/idhub/pkg/httputil"
	"github.com/meshfoundry/idhub/pkg/serviceaccounts"
	"github.com/meshfoundry/idhub/pkg/store"
)

// createServiceAccount handles POST /api/v1/companies/{companyID}/service-accounts
func (s *Server) createServiceAccount(w http.ResponseWriter, r *http.Request) {
	companyID, ok := httputil.ParsePathUUIDOrError(w, r, "companyID")
	if !ok {
		return
	}

	var req CreateServiceAccountRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}
	if req.AuthMethod == "" {
		req.AuthMethod = "SECRET"
	}

	processType := store.ProcessTypeExternalAccountCreation
	hasExternal, accounts, err := s.provisioner.CreateServiceAccount(
		r.Context(),
		serviceaccounts.CreationRequest{
			Name:        req.Name,
			Description: req.Description,
			AuthMethod:  req.AuthMethod,
			RoleIDs:     req.RoleIDs,
		},
		companyID,
		req.BusinessPartnerNumbers,
		store.AccountTypeOwn,
		true,
		true,
		&serviceaccounts.ProcessData{ProcessType: &processType},
		nil,
	)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ProvisioningTotal.WithLabelValues("error").Inc()
		}
		httputil.WriteFault(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.ProvisioningTotal.WithLabelValues("success").Inc()
		if hasExternal {
			s.metrics.ExternalAccountsTotal.Inc()
		}
	}
	s.recordAudit(r.Context(), "service_account.create", map[string]string{
		"company_id": companyID.String(),
		"name":       req.Name,
	})

	httputil.WriteCreated(w, CreateServiceAccountResponse{
		HasExternalAccount: hasExternal,
		Accounts:           accounts,
	})
}
