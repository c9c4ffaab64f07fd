package identityproviders

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/meshfoundry/idhub/pkg/fault"
	"github.com/meshfoundry/idhub/pkg/iam"
	"github.com/meshfoundry/idhub/pkg/observability"
	"github.com/meshfoundry/idhub/pkg/store"
)

// Reconciler ingests a bulk upload of desired identity-provider links and
// applies only the deltas against the gateway's current view. Rows are
// processed strictly in stream order; failures are isolated per row.
type Reconciler struct {
	gateway iam.Gateway
	store   store.Store
	csv     CSVSettings
	logger  *observability.Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(gateway iam.Gateway, st store.Store, settings CSVSettings, logger *observability.Logger) *Reconciler {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Reconciler{gateway: gateway, store: st, csv: settings, logger: logger}
}

// ReconcileLinks consumes the upload as a forward-only stream and returns a
// result summary. Only an unresolvable acting user or an unparseable header
// abort the operation; everything after the header is row-isolated. When ctx
// is cancelled the partial result accumulated so far is returned.
func (r *Reconciler) ReconcileLinks(ctx context.Context, upload io.Reader, actingUserID string) (*ReconcileResult, error) {
	companyID, _, err := r.store.GetCompanyAndUserID(ctx, actingUserID)
	if err != nil {
		return nil, err
	}
	if companyID == uuid.Nil {
		return nil, &fault.UnauthorizedError{Subject: actingUserID}
	}

	categories, err := r.loadAliasCategories(ctx, companyID)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(upload)
	reader.Comma = r.csv.Separator
	reader.FieldsPerRecord = -1 // rows are validated against the header, not a fixed schema
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload header: %w", err)
	}
	numTriples, err := parseHeader(header, r.csv)
	if err != nil {
		return nil, fmt.Errorf("invalid upload header: %w", err)
	}

	result := &ReconcileResult{}
	for rowNumber := 1; ; rowNumber++ {
		if ctx.Err() != nil {
			r.logger.WithField("rows", result.Total).Warn("reconciliation cancelled, returning partial result")
			return result, nil
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		result.Total++
		var updated bool
		if err == nil {
			var row *uploadRow
			row, err = parseRow(record, numTriples, rowNumber)
			if err == nil {
				updated, err = r.reconcileRow(ctx, companyID, categories, row)
			}
		} else {
			err = &fault.RowFormatError{Line: rowNumber, Reason: err.Error()}
		}

		switch {
		case err != nil:
			result.Error++
			result.Errors = append(result.Errors, RowError{Row: rowNumber, Reason: err.Error()})
		case updated:
			result.Updated++
		default:
			result.Unchanged++
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"company_id": companyID.String(),
		"total":      result.Total,
		"updated":    result.Updated,
		"unchanged":  result.Unchanged,
		"errors":     result.Error,
	}).Info("identity-provider link reconciliation finished")

	return result, nil
}

// loadAliasCategories loads the acting company's provider configuration once
// per run
func (r *Reconciler) loadAliasCategories(ctx context.Context, companyID uuid.UUID) (map[string]store.ProviderCategory, error) {
	providers, err := r.store.GetCompanyIdentityProviders(ctx, companyID)
	if err != nil {
		return nil, err
	}
	categories := make(map[string]store.ProviderCategory, len(providers))
	for _, p := range providers {
		categories[p.Alias] = p.Category
	}
	return categories, nil
}

// reconcileRow diffs one row's declared triples against the gateway's
// current links and writes back only the changes. Returns whether anything
// was written and the first error encountered; later triples are still
// attempted so a row can be partially applied.
func (r *Reconciler) reconcileRow(ctx context.Context, companyID uuid.UUID, categories map[string]store.ProviderCategory, row *uploadRow) (bool, error) {
	userData, err := r.store.GetUserEntityData(ctx, row.CompanyUserID, companyID)
	if err != nil {
		return false, err
	}
	if userData == nil {
		return false, &fault.NotFoundError{Resource: "company user", ID: row.CompanyUserID.String()}
	}

	links, err := r.gateway.GetUserProviderLinks(ctx, userData.UserEntityID)
	if err != nil {
		return false, err
	}
	current := make(map[string]iam.ProviderLink, len(links))
	for _, link := range links {
		current[link.Alias] = link
	}

	var wrote bool
	var firstErr error
	for _, triple := range row.Triples {
		if err := r.reconcileTriple(ctx, categories, current, userData.UserEntityID, triple); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if _, unchanged := r.isUnchanged(current, triple); !unchanged {
			wrote = true
		}
	}
	return wrote, firstErr
}

// reconcileTriple applies one declared triple, enforcing that a
// SHARED-category binding is never reassigned
func (r *Reconciler) reconcileTriple(ctx context.Context, categories map[string]store.ProviderCategory, current map[string]iam.ProviderLink, userEntityID string, triple providerTriple) error {
	category, assigned := categories[triple.Alias]
	if !assigned {
		return &fault.NotFoundError{Resource: "identity provider alias", ID: triple.Alias}
	}

	link, exists := current[triple.Alias]
	if category == store.CategoryShared {
		if !exists {
			return &fault.ConflictError{Alias: triple.Alias, Reason: "no existing centrally managed binding"}
		}
		if link.UserID != triple.UserID {
			return &fault.ConflictError{Alias: triple.Alias, Reason: "centrally managed binding cannot be reassigned"}
		}
	}

	if _, unchanged := r.isUnchanged(current, triple); unchanged {
		return nil
	}
	return r.gateway.UpsertUserProviderLink(ctx, userEntityID, iam.ProviderLink{
		Alias:    triple.Alias,
		UserID:   triple.UserID,
		UserName: triple.UserName,
	})
}

// isUnchanged reports whether the declared triple matches the current link
func (r *Reconciler) isUnchanged(current map[string]iam.ProviderLink, triple providerTriple) (iam.ProviderLink, bool) {
	link, exists := current[triple.Alias]
	return link, exists && link.UserID == triple.UserID && link.UserName == triple.UserName
}
