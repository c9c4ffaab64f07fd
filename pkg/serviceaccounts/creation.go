package serviceaccounts

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/meshfoundry/idhub/pkg/fault"
	"github.com/meshfoundry/idhub/pkg/iam"
	"github.com/meshfoundry/idhub/pkg/observability"
	"github.com/meshfoundry/idhub/pkg/sequence"
	"github.com/meshfoundry/idhub/pkg/store"
)

// Orchestrator drives service account provisioning across the IAM gateway
// and the local store. The gateway is always mutated first; a store failure
// afterwards leaves the external client orphaned, which the maintenance
// sweeper surfaces (no compensation here).
type Orchestrator struct {
	gateway   iam.Gateway
	store     store.Store
	allocator sequence.Allocator
	settings  Settings
	logger    *observability.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(gateway iam.Gateway, st store.Store, allocator sequence.Allocator, settings Settings, logger *observability.Logger) *Orchestrator {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Orchestrator{
		gateway:   gateway,
		store:     st,
		allocator: allocator,
		settings:  settings,
		logger:    logger,
	}
}

// CreateServiceAccount provisions a service account in the gateway and
// mirrors it locally. When the validated role set intersects the configured
// trigger roles a second, externally provisioned account (PENDING, no client
// id yet) is recorded and optionally linked to a process. The returned slice
// is ordered, primary account first.
func (o *Orchestrator) CreateServiceAccount(
	ctx context.Context,
	req CreationRequest,
	companyID uuid.UUID,
	bpns []string,
	accountType store.AccountType,
	enhanceName bool,
	enabled bool,
	processData *ProcessData,
	setOptional func(*RecordFields),
) (bool, []CreatedServiceAccount, error) {
	roleData, err := o.validateRoles(ctx, req.RoleIDs)
	if err != nil {
		return false, nil, err
	}

	clientID, enhancedName, accountData, err := o.createGatewayClient(ctx, req, bpns, enhanceName, enabled, roleData)
	if err != nil {
		return false, nil, err
	}

	accounts := make([]CreatedServiceAccount, 0, 2)

	primaryID, err := o.createLocalAccount(ctx, companyID, store.IdentityStatusActive, accountType, store.AccountKindInternal, req.Name, req.Description, &clientID, roleData, setOptional)
	if err != nil {
		return false, nil, err
	}
	accounts = append(accounts, CreatedServiceAccount{
		ID:          primaryID,
		Name:        enhancedName,
		Description: req.Description,
		Status:      store.IdentityStatusActive,
		ClientID:    &clientID,
		AccountData: accountData,
		Roles:       roleData,
	})

	triggerRoles := o.matchTriggerRoles(roleData)
	hasExternal := len(triggerRoles) > 0
	if hasExternal {
		externalName := "dim-" + req.Name
		externalID, err := o.createLocalAccount(ctx, companyID, store.IdentityStatusPending, accountType, store.AccountKindExternal, externalName, req.Description, nil, triggerRoles, setOptional)
		if err != nil {
			return false, nil, err
		}

		if processData != nil && processData.ProcessType != nil {
			if err := o.linkProcess(ctx, primaryID, *processData); err != nil {
				return false, nil, err
			}
		}

		accounts = append(accounts, CreatedServiceAccount{
			ID:          externalID,
			Name:        externalName,
			Description: req.Description,
			Status:      store.IdentityStatusPending,
			Roles:       triggerRoles,
		})
	}

	o.logger.WithFields(map[string]interface{}{
		"company_id":   companyID.String(),
		"client_id":    clientID,
		"has_external": hasExternal,
	}).Info("service account created")

	return hasExternal, accounts, nil
}

// validateRoles resolves every requested role id and fails before any
// mutation when one or more do not resolve
func (o *Orchestrator) validateRoles(ctx context.Context, roleIDs []uuid.UUID) ([]store.RoleDescriptor, error) {
	roleData, err := o.store.ResolveRoles(ctx, roleIDs)
	if err != nil {
		return nil, err
	}
	if len(roleData) == len(roleIDs) {
		return roleData, nil
	}

	resolved := make(map[uuid.UUID]bool, len(roleData))
	for _, d := range roleData {
		resolved[d.ID] = true
	}
	var missing []uuid.UUID
	for _, id := range roleIDs {
		if !resolved[id] {
			missing = append(missing, id)
		}
	}
	return nil, &fault.ValidationError{MissingRoleIDs: missing}
}

// createGatewayClient allocates the client identifier and creates the client
// in the gateway, including the optional business partner attribute and
// protocol mapper. Extension failures propagate as creation failures so no
// silently-partial client exists.
func (o *Orchestrator) createGatewayClient(ctx context.Context, req CreationRequest, bpns []string, enhanceName, enabled bool, roleData []store.RoleDescriptor) (string, string, *iam.ServiceAccountData, error) {
	seq, err := o.allocator.Next(ctx)
	if err != nil {
		return "", "", nil, err
	}
	clientID := o.settings.ClientIDPrefix + strconv.FormatInt(seq, 10)

	enhancedName := req.Name
	if enhanceName {
		enhancedName = clientID + "-" + req.Name
	}

	grants := make(iam.RoleGrants)
	for _, d := range roleData {
		grants[d.OwningClientID] = append(grants[d.OwningClientID], d.Name)
	}

	accountData, err := o.gateway.SetupServiceAccountClient(ctx, clientID, iam.ClientConfig{
		Name:        enhancedName,
		Description: req.Description,
		AuthMethod:  req.AuthMethod,
		RoleGrants:  grants,
		Enabled:     enabled,
	})
	if err != nil {
		return "", "", nil, err
	}

	if len(bpns) > 0 {
		if err := o.gateway.SetUserAttribute(ctx, accountData.UserEntityID, "bpn", bpns); err != nil {
			return "", "", nil, err
		}
		if err := o.gateway.AddProtocolMapper(ctx, accountData.InternalClientID); err != nil {
			return "", "", nil, err
		}
	}

	return clientID, enhancedName, accountData, nil
}

// createLocalAccount records an identity, its service account row and the
// role assignments, returning the service account record id
func (o *Orchestrator) createLocalAccount(
	ctx context.Context,
	companyID uuid.UUID,
	status store.IdentityStatus,
	accountType store.AccountType,
	kind store.AccountKind,
	name, description string,
	clientID *string,
	roles []store.RoleDescriptor,
	setOptional func(*RecordFields),
) (uuid.UUID, error) {
	fields := RecordFields{Name: name, Description: description, ClientID: clientID}
	if setOptional != nil {
		setOptional(&fields)
	}

	identityID, err := o.store.CreateIdentity(ctx, companyID, status, store.IdentityTypeCompanyServiceAccount)
	if err != nil {
		return uuid.Nil, err
	}
	recordID, err := o.store.CreateServiceAccountRecord(ctx, identityID, fields.Name, fields.Description, fields.ClientID, accountType, kind)
	if err != nil {
		return uuid.Nil, err
	}

	roleIDs := make([]uuid.UUID, len(roles))
	for i, d := range roles {
		roleIDs[i] = d.ID
	}
	if err := o.store.AssignRoles(ctx, identityID, roleIDs); err != nil {
		return uuid.Nil, err
	}
	return recordID, nil
}

// matchTriggerRoles returns the subset of resolved roles whose owning client
// and name appear in the configured trigger set
func (o *Orchestrator) matchTriggerRoles(roleData []store.RoleDescriptor) []store.RoleDescriptor {
	triggerRoles := o.settings.triggerRoles()
	var matched []store.RoleDescriptor
	for _, d := range roleData {
		for _, name := range triggerRoles[d.OwningClientID] {
			if d.Name == name {
				matched = append(matched, d)
				break
			}
		}
	}
	return matched
}

// linkProcess attaches the primary account to the provisioning process,
// creating a fresh process with its initial TODO step when none was supplied
func (o *Orchestrator) linkProcess(ctx context.Context, primaryAccountID uuid.UUID, data ProcessData) error {
	var processID uuid.UUID
	if data.ProcessID == nil {
		stepType, err := initialStepType(*data.ProcessType)
		if err != nil {
			return err
		}
		processID, err = o.store.CreateProcess(ctx, *data.ProcessType)
		if err != nil {
			return err
		}
		if err := o.store.CreateStep(ctx, stepType, store.StepStatusTodo, processID); err != nil {
			return err
		}
	} else {
		processID = *data.ProcessID
	}
	return o.store.LinkExternalCreation(ctx, primaryAccountID, processID)
}

// initialStepType derives the first step of a process deterministically from
// its type
func initialStepType(processType store.ProcessType) (store.StepType, error) {
	switch processType {
	case store.ProcessTypeExternalAccountCreation:
		return store.StepTypeCreateExternalAccount, nil
	case store.ProcessTypeOfferSubscription:
		return store.StepTypeCreateSubscriptionAccount, nil
	default:
		return "", fmt.Errorf("no initial step for process type %q", processType)
	}
}
