package identityproviders

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshfoundry/idhub/pkg/fault"
	"github.com/meshfoundry/idhub/pkg/iam"
	"github.com/meshfoundry/idhub/pkg/store"
)

type fakeGateway struct {
	iam.Gateway

	links      map[string][]iam.ProviderLink
	linksErr   error
	upserts    []iam.ProviderLink
	upsertErr  error
	onGetLinks func()
}

func (g *fakeGateway) GetUserProviderLinks(_ context.Context, userEntityID string) ([]iam.ProviderLink, error) {
	if g.onGetLinks != nil {
		g.onGetLinks()
	}
	if g.linksErr != nil {
		return nil, g.linksErr
	}
	return g.links[userEntityID], nil
}

func (g *fakeGateway) UpsertUserProviderLink(_ context.Context, _ string, link iam.ProviderLink) error {
	if g.upsertErr != nil {
		return g.upsertErr
	}
	g.upserts = append(g.upserts, link)
	return nil
}

type fakeReconcileStore struct {
	store.Store

	companyID uuid.UUID
	users     map[uuid.UUID]string
	providers []store.CompanyIdentityProvider
}

func (s *fakeReconcileStore) GetCompanyAndUserID(_ context.Context, actingUserID string) (uuid.UUID, uuid.UUID, error) {
	if actingUserID == "unknown" {
		return uuid.Nil, uuid.Nil, nil
	}
	return s.companyID, uuid.New(), nil
}

func (s *fakeReconcileStore) GetUserEntityData(_ context.Context, companyUserID, companyID uuid.UUID) (*store.UserEntityData, error) {
	if companyID != s.companyID {
		return nil, nil
	}
	entityID, ok := s.users[companyUserID]
	if !ok {
		return nil, nil
	}
	return &store.UserEntityData{UserEntityID: entityID}, nil
}

func (s *fakeReconcileStore) GetCompanyIdentityProviders(_ context.Context, _ uuid.UUID) ([]store.CompanyIdentityProvider, error) {
	return s.providers, nil
}

func testProviders() []store.CompanyIdentityProvider {
	return []store.CompanyIdentityProvider{
		{ID: uuid.New(), Category: store.CategoryShared, Alias: "central-idp"},
		{ID: uuid.New(), Category: store.CategoryOIDC, Alias: "company-idp"},
	}
}

func uploadOf(header string, rows ...string) *strings.Reader {
	return strings.NewReader(header + "\n" + strings.Join(rows, "\n"))
}

const singleProviderHeader = "UserId,FirstName,LastName,Email,ProviderAlias,ProviderUserId,ProviderUserName"

func TestReconcileLinks(t *testing.T) {
	userID := uuid.New()

	newFixture := func() (*fakeGateway, *fakeReconcileStore) {
		gateway := &fakeGateway{
			links: map[string][]iam.ProviderLink{
				"entity-1": {
					{Alias: "central-idp", UserID: "pid-1", UserName: "alice"},
					{Alias: "company-idp", UserID: "ext-1", UserName: "alice@corp"},
				},
			},
		}
		st := &fakeReconcileStore{
			companyID: uuid.New(),
			users:     map[uuid.UUID]string{userID: "entity-1"},
			providers: testProviders(),
		}
		return gateway, st
	}

	t.Run("matching row is unchanged", func(t *testing.T) {
		gateway, st := newFixture()
		r := NewReconciler(gateway, st, DefaultCSVSettings(), nil)

		upload := uploadOf(singleProviderHeader,
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,company-idp,ext-1,alice@corp", userID))
		result, err := r.ReconcileLinks(context.Background(), upload, "acting")
		require.NoError(t, err)

		assert.Equal(t, &ReconcileResult{Total: 1, Unchanged: 1}, result)
		assert.Empty(t, gateway.upserts)
	})

	t.Run("changed user name triggers exactly one upsert", func(t *testing.T) {
		gateway, st := newFixture()
		r := NewReconciler(gateway, st, DefaultCSVSettings(), nil)

		upload := uploadOf(singleProviderHeader,
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,company-idp,ext-1,alice.smith@corp", userID))
		result, err := r.ReconcileLinks(context.Background(), upload, "acting")
		require.NoError(t, err)

		assert.Equal(t, 1, result.Total)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 0, result.Unchanged)
		assert.Equal(t, 0, result.Error)
		require.Len(t, gateway.upserts, 1)
		assert.Equal(t, iam.ProviderLink{Alias: "company-idp", UserID: "ext-1", UserName: "alice.smith@corp"}, gateway.upserts[0])
	})

	t.Run("shared binding cannot be reassigned", func(t *testing.T) {
		gateway, st := newFixture()
		r := NewReconciler(gateway, st, DefaultCSVSettings(), nil)

		upload := uploadOf(singleProviderHeader,
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,central-idp,pid-other,alice", userID))
		result, err := r.ReconcileLinks(context.Background(), upload, "acting")
		require.NoError(t, err)

		assert.Equal(t, 1, result.Total)
		assert.Equal(t, 1, result.Error)
		assert.Empty(t, gateway.upserts)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, 1, result.Errors[0].Row)
		assert.Contains(t, result.Errors[0].Reason, "cannot be reassigned")
	})

	t.Run("shared name change is allowed", func(t *testing.T) {
		gateway, st := newFixture()
		r := NewReconciler(gateway, st, DefaultCSVSettings(), nil)

		upload := uploadOf(singleProviderHeader,
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,central-idp,pid-1,alice.renamed", userID))
		result, err := r.ReconcileLinks(context.Background(), upload, "acting")
		require.NoError(t, err)

		assert.Equal(t, 1, result.Updated)
		require.Len(t, gateway.upserts, 1)
		assert.Equal(t, "pid-1", gateway.upserts[0].UserID)
		assert.Equal(t, "alice.renamed", gateway.upserts[0].UserName)
	})

	t.Run("unknown company user fails the row, remaining rows processed", func(t *testing.T) {
		gateway, st := newFixture()
		r := NewReconciler(gateway, st, DefaultCSVSettings(), nil)

		upload := uploadOf(singleProviderHeader,
			fmt.Sprintf("%s,Mallory,Jones,mallory@other.example,company-idp,ext-9,mallory", uuid.New()),
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,company-idp,ext-1,alice@corp", userID))
		result, err := r.ReconcileLinks(context.Background(), upload, "acting")
		require.NoError(t, err)

		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 1, result.Error)
		assert.Equal(t, 1, result.Unchanged)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, 1, result.Errors[0].Row)
		assert.Contains(t, result.Errors[0].Reason, "not found")
	})

	t.Run("unassigned alias fails the row", func(t *testing.T) {
		gateway, st := newFixture()
		r := NewReconciler(gateway, st, DefaultCSVSettings(), nil)

		upload := uploadOf(singleProviderHeader,
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,rogue-idp,ext-1,alice@corp", userID))
		result, err := r.ReconcileLinks(context.Background(), upload, "acting")
		require.NoError(t, err)

		assert.Equal(t, 1, result.Error)
		assert.Empty(t, gateway.upserts)
	})

	t.Run("malformed row is isolated", func(t *testing.T) {
		gateway, st := newFixture()
		r := NewReconciler(gateway, st, DefaultCSVSettings(), nil)

		upload := uploadOf(singleProviderHeader,
			"not-a-uuid,Alice,Smith,alice@corp.example,company-idp,ext-1,alice@corp",
			fmt.Sprintf("%s,Alice,Smith", userID),
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,company-idp,ext-1,alice@corp", userID))
		result, err := r.ReconcileLinks(context.Background(), upload, "acting")
		require.NoError(t, err)

		assert.Equal(t, 3, result.Total)
		assert.Equal(t, 2, result.Error)
		assert.Equal(t, 1, result.Unchanged)
	})

	t.Run("row without provider columns is unchanged", func(t *testing.T) {
		gateway, st := newFixture()
		r := NewReconciler(gateway, st, DefaultCSVSettings(), nil)

		upload := uploadOf("UserId,FirstName,LastName,Email",
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example", userID))
		result, err := r.ReconcileLinks(context.Background(), upload, "acting")
		require.NoError(t, err)

		assert.Equal(t, &ReconcileResult{Total: 1, Unchanged: 1}, result)
	})

	t.Run("unknown acting user is unauthorized", func(t *testing.T) {
		gateway, st := newFixture()
		r := NewReconciler(gateway, st, DefaultCSVSettings(), nil)

		upload := uploadOf(singleProviderHeader)
		result, err := r.ReconcileLinks(context.Background(), upload, "unknown")
		assert.Nil(t, result)
		assert.True(t, fault.IsUnauthorized(err))
	})

	t.Run("invalid header aborts the run", func(t *testing.T) {
		gateway, st := newFixture()
		r := NewReconciler(gateway, st, DefaultCSVSettings(), nil)

		upload := uploadOf("UserId,FirstName,LastName,Email,ProviderAlias,ProviderUserId",
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,company-idp,ext-1", userID))
		result, err := r.ReconcileLinks(context.Background(), upload, "acting")
		assert.Nil(t, result)
		assert.Error(t, err)
	})

	t.Run("gateway failure is a row-level error", func(t *testing.T) {
		gateway, st := newFixture()
		gateway.linksErr = &fault.ExternalSystemError{Op: "get federated identities", Err: fmt.Errorf("503")}
		r := NewReconciler(gateway, st, DefaultCSVSettings(), nil)

		upload := uploadOf(singleProviderHeader,
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,company-idp,ext-1,alice@corp", userID))
		result, err := r.ReconcileLinks(context.Background(), upload, "acting")
		require.NoError(t, err)

		assert.Equal(t, 1, result.Error)
	})

	t.Run("cancellation returns the partial result", func(t *testing.T) {
		gateway, st := newFixture()
		ctx, cancel := context.WithCancel(context.Background())
		gateway.onGetLinks = cancel
		r := NewReconciler(gateway, st, DefaultCSVSettings(), nil)

		upload := uploadOf(singleProviderHeader,
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,company-idp,ext-1,alice@corp", userID),
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,company-idp,ext-1,alice@corp", userID))
		result, err := r.ReconcileLinks(ctx, upload, "acting")
		require.NoError(t, err)

		assert.Equal(t, 1, result.Total)
		assert.Equal(t, 1, result.Unchanged)
	})

	t.Run("total always equals updated plus unchanged plus error", func(t *testing.T) {
		gateway, st := newFixture()
		r := NewReconciler(gateway, st, DefaultCSVSettings(), nil)

		upload := uploadOf(singleProviderHeader,
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,company-idp,ext-1,alice@corp", userID),
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,company-idp,ext-1,renamed", userID),
			"garbage-row",
			fmt.Sprintf("%s,Alice,Smith,alice@corp.example,rogue-idp,x,y", userID))
		result, err := r.ReconcileLinks(context.Background(), upload, "acting")
		require.NoError(t, err)

		assert.Equal(t, 4, result.Total)
		assert.Equal(t, result.Total, result.Updated+result.Unchanged+result.Error)
	})
}
