package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresStore(db), mock, db
}

func TestCreateIdentity(t *testing.T) {
	s, mock, db := newMockStore(t)
	defer db.Close()

	companyID := uuid.New()
	identityID := uuid.New()

	mock.ExpectQuery(`INSERT INTO identities`).
		WithArgs(companyID, IdentityStatusActive, IdentityTypeCompanyServiceAccount).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(identityID.String()))

	id, err := s.CreateIdentity(context.Background(), companyID, IdentityStatusActive, IdentityTypeCompanyServiceAccount)
	require.NoError(t, err)
	assert.Equal(t, identityID, id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateServiceAccountRecord(t *testing.T) {
	s, mock, db := newMockStore(t)
	defer db.Close()

	identityID := uuid.New()
	recordID := uuid.New()
	clientID := "sa42"

	t.Run("with client id", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO service_accounts`).
			WithArgs(identityID, "technical-user", "ci pipeline", clientID, AccountTypeOwn, AccountKindInternal).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(recordID.String()))

		id, err := s.CreateServiceAccountRecord(context.Background(), identityID, "technical-user", "ci pipeline", &clientID, AccountTypeOwn, AccountKindInternal)
		require.NoError(t, err)
		assert.Equal(t, recordID, id)
	})

	t.Run("pending external account has no client id", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO service_accounts`).
			WithArgs(identityID, "dim-technical-user", "ci pipeline", nil, AccountTypeOwn, AccountKindExternal).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(recordID.String()))

		id, err := s.CreateServiceAccountRecord(context.Background(), identityID, "dim-technical-user", "ci pipeline", nil, AccountTypeOwn, AccountKindExternal)
		require.NoError(t, err)
		assert.Equal(t, recordID, id)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignRoles(t *testing.T) {
	s, mock, db := newMockStore(t)
	defer db.Close()

	identityID := uuid.New()
	roleIDs := []uuid.UUID{uuid.New(), uuid.New()}

	mock.ExpectExec(`INSERT INTO identity_assigned_roles`).
		WithArgs(identityID, pq.Array(roleIDs)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, s.AssignRoles(context.Background(), identityID, roleIDs))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignRolesEmpty(t *testing.T) {
	s, mock, db := newMockStore(t)
	defer db.Close()

	// No SQL expected for an empty role set
	require.NoError(t, s.AssignRoles(context.Background(), uuid.New(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveRoles(t *testing.T) {
	s, mock, db := newMockStore(t)
	defer db.Close()

	roleIDs := []uuid.UUID{uuid.New(), uuid.New()}

	t.Run("partial resolution is not an error", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "client_id", "name"}).
			AddRow(roleIDs[0].String(), "portal", "Company Admin")

		mock.ExpectQuery(`SELECT r.id, c.client_id, r.name`).
			WithArgs(pq.Array(roleIDs)).
			WillReturnRows(rows)

		descriptors, err := s.ResolveRoles(context.Background(), roleIDs)
		require.NoError(t, err)
		require.Len(t, descriptors, 1)
		assert.Equal(t, roleIDs[0], descriptors[0].ID)
		assert.Equal(t, "portal", descriptors[0].OwningClientID)
		assert.Equal(t, "Company Admin", descriptors[0].Name)
	})

	t.Run("empty input short-circuits", func(t *testing.T) {
		descriptors, err := s.ResolveRoles(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, descriptors)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessAndStepCreation(t *testing.T) {
	s, mock, db := newMockStore(t)
	defer db.Close()

	processID := uuid.New()
	accountID := uuid.New()

	mock.ExpectQuery(`INSERT INTO processes`).
		WithArgs(ProcessTypeExternalAccountCreation).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(processID.String()))

	mock.ExpectExec(`INSERT INTO process_steps`).
		WithArgs(StepTypeCreateExternalAccount, StepStatusTodo, processID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(`INSERT INTO external_creation_links`).
		WithArgs(accountID, processID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.CreateProcess(context.Background(), ProcessTypeExternalAccountCreation)
	require.NoError(t, err)
	assert.Equal(t, processID, id)

	require.NoError(t, s.CreateStep(context.Background(), StepTypeCreateExternalAccount, StepStatusTodo, id))
	require.NoError(t, s.LinkExternalCreation(context.Background(), accountID, id))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCompanyAndUserID(t *testing.T) {
	s, mock, db := newMockStore(t)
	defer db.Close()

	companyID := uuid.New()
	companyUserID := uuid.New()

	t.Run("known user", func(t *testing.T) {
		mock.ExpectQuery(`SELECT company_id, id`).
			WithArgs("keycloak-user-1").
			WillReturnRows(sqlmock.NewRows([]string{"company_id", "id"}).
				AddRow(companyID.String(), companyUserID.String()))

		gotCompany, gotUser, err := s.GetCompanyAndUserID(context.Background(), "keycloak-user-1")
		require.NoError(t, err)
		assert.Equal(t, companyID, gotCompany)
		assert.Equal(t, companyUserID, gotUser)
	})

	t.Run("unknown user returns nil ids", func(t *testing.T) {
		mock.ExpectQuery(`SELECT company_id, id`).
			WithArgs("nobody").
			WillReturnRows(sqlmock.NewRows([]string{"company_id", "id"}))

		gotCompany, gotUser, err := s.GetCompanyAndUserID(context.Background(), "nobody")
		require.NoError(t, err)
		assert.Equal(t, uuid.Nil, gotCompany)
		assert.Equal(t, uuid.Nil, gotUser)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserEntityData(t *testing.T) {
	s, mock, db := newMockStore(t)
	defer db.Close()

	companyID := uuid.New()
	companyUserID := uuid.New()

	t.Run("user in company", func(t *testing.T) {
		mock.ExpectQuery(`SELECT user_entity_id, first_name, last_name, email`).
			WithArgs(companyUserID, companyID).
			WillReturnRows(sqlmock.NewRows([]string{"user_entity_id", "first_name", "last_name", "email"}).
				AddRow("central-1", "Ada", "Lovelace", "ada@example.com"))

		data, err := s.GetUserEntityData(context.Background(), companyUserID, companyID)
		require.NoError(t, err)
		require.NotNil(t, data)
		assert.Equal(t, "central-1", data.UserEntityID)
		assert.Equal(t, "ada@example.com", data.Email)
	})

	t.Run("user from another company is nil", func(t *testing.T) {
		mock.ExpectQuery(`SELECT user_entity_id, first_name, last_name, email`).
			WithArgs(companyUserID, companyID).
			WillReturnRows(sqlmock.NewRows([]string{"user_entity_id", "first_name", "last_name", "email"}))

		data, err := s.GetUserEntityData(context.Background(), companyUserID, companyID)
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCompanyIdentityProviders(t *testing.T) {
	s, mock, db := newMockStore(t)
	defer db.Close()

	companyID := uuid.New()
	sharedID := uuid.New()
	oidcID := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "category", "alias"}).
		AddRow(sharedID.String(), CategoryShared, "company-shared").
		AddRow(oidcID.String(), CategoryOIDC, "partner-oidc")

	mock.ExpectQuery(`SELECT ip.id, ip.category, ip.alias`).
		WithArgs(companyID).
		WillReturnRows(rows)

	providers, err := s.GetCompanyIdentityProviders(context.Background(), companyID)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, CategoryShared, providers[0].Category)
	assert.Equal(t, "partner-oidc", providers[1].Alias)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIdentityProvider(t *testing.T) {
	s, mock, db := newMockStore(t)
	defer db.Close()

	companyID := uuid.New()
	providerID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO identity_providers`).
		WithArgs(CategorySAML, "partner-saml").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(providerID.String()))
	mock.ExpectExec(`INSERT INTO company_identity_providers`).
		WithArgs(companyID, providerID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := s.CreateIdentityProvider(context.Background(), companyID, CategorySAML, "partner-saml")
	require.NoError(t, err)
	assert.Equal(t, providerID, id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListStaleExternalAccounts(t *testing.T) {
	s, mock, db := newMockStore(t)
	defer db.Close()

	accountID := uuid.New()
	created := time.Now().Add(-48 * time.Hour)

	mock.ExpectQuery(`SELECT sa.id, sa.name, sa.created_at`).
		WithArgs(AccountKindExternal, IdentityStatusPending, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).
			AddRow(accountID.String(), "dim-stuck", created))

	stale, err := s.ListStaleExternalAccounts(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "dim-stuck", stale[0].Name)

	require.NoError(t, mock.ExpectationsWereMet())
}
