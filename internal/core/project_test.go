package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalmocks "go.temporal.io/sdk/mocks"

	"github.com/nimbusdb/controlplane/internal/model"
	"github.com/nimbusdb/controlplane/internal/provisioner"
)

func newProjectService(db *mockDB, tc *temporalmocks.Client, prov *mockProvisioner, engine *mockEngine, vault *mockVault) *ProjectService {
	return NewProjectService(db, tc, prov, engine, vault, "db.internal", 5432, 30*24*time.Hour, 7*24*time.Hour)
}

// projectScanFunc fills the full project column list in scan order.
func projectScanFunc(p model.Project) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = p.ID
		*dest[1].(*string) = p.OwnerID
		*dest[2].(*string) = p.OwnerEmail
		*dest[3].(*string) = p.Title
		*dest[4].(*string) = p.Description
		*dest[5].(*string) = p.DBRole
		*dest[6].(*string) = p.DBName
		*dest[7].(*string) = p.DBHost
		*dest[8].(*int) = p.DBPort
		*dest[9].(*string) = p.EncryptedPassword
		*dest[10].(**string) = p.SchemaName
		*dest[11].(*[]string) = p.InactiveDatabases
		*dest[12].(*bool) = p.ActionInProgress
		*dest[13].(*string) = p.Status
		*dest[14].(**string) = p.StatusMessage
		*dest[15].(*time.Time) = p.CreatedAt
		*dest[16].(*time.Time) = p.UpdatedAt
		return nil
	}
}

// ---------- Create ----------

func TestProjectService_Create_Success(t *testing.T) {
	db := &mockDB{}
	tc := &temporalmocks.Client{}
	prov := &mockProvisioner{}
	vault := &mockVault{}
	svc := newProjectService(db, tc, prov, &mockEngine{}, vault)
	ctx := context.Background()

	prov.On("Provision", ctx, "u42", "My Shop").Return(&provisioner.Instance{
		Role:     "u42_myshop",
		Password: "cafebabe",
		DBName:   "myshop_0a0b0c0d_db",
	}, nil)
	vault.On("Encrypt", "cafebabe").Return("iv:tag:ct", nil)
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	wfRun := &temporalmocks.WorkflowRun{}
	tc.On("ExecuteWorkflow", ctx, mock.Anything, "RotatePasswordWorkflow", mock.Anything).Return(wfRun, nil)
	tc.On("ExecuteWorkflow", ctx, mock.Anything, "ProjectBackupWorkflow", mock.Anything).Return(wfRun, nil)

	project, err := svc.Create(ctx, "u42", "owner@example.com", "My Shop", "storefront")
	require.NoError(t, err)
	assert.NotEmpty(t, project.ID)
	assert.Equal(t, "owner@example.com", project.OwnerEmail)
	assert.Equal(t, "u42_myshop", project.DBRole)
	assert.Equal(t, "iv:tag:ct", project.EncryptedPassword)
	assert.Equal(t, model.StatusActive, project.Status)
	db.AssertExpectations(t)
	tc.AssertExpectations(t)
	prov.AssertExpectations(t)
	vault.AssertExpectations(t)
}

func TestProjectService_Create_ProvisionError(t *testing.T) {
	db := &mockDB{}
	prov := &mockProvisioner{}
	svc := newProjectService(db, &temporalmocks.Client{}, prov, &mockEngine{}, &mockVault{})
	ctx := context.Background()

	prov.On("Provision", ctx, "u42", "My Shop").Return(nil, provisioner.ErrProvisioningFailed)

	_, err := svc.Create(ctx, "u42", "owner@example.com", "My Shop", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, provisioner.ErrProvisioningFailed)
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestProjectService_Create_InsertError(t *testing.T) {
	db := &mockDB{}
	tc := &temporalmocks.Client{}
	prov := &mockProvisioner{}
	vault := &mockVault{}
	svc := newProjectService(db, tc, prov, &mockEngine{}, vault)
	ctx := context.Background()

	prov.On("Provision", ctx, "u42", "My Shop").Return(&provisioner.Instance{Role: "r", Password: "p", DBName: "d"}, nil)
	vault.On("Encrypt", "p").Return("e", nil)
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, errors.New("db error"))

	_, err := svc.Create(ctx, "u42", "owner@example.com", "My Shop", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert project")
	tc.AssertNotCalled(t, "ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// ---------- Resume ----------

func TestProjectService_Resume_Success(t *testing.T) {
	db := &mockDB{}
	engine := &mockEngine{}
	svc := newProjectService(db, &temporalmocks.Client{}, &mockProvisioner{}, engine, &mockVault{})
	ctx := context.Background()

	paused := model.Project{
		ID:                "p1",
		DBRole:            "u42_myshop",
		InactiveDatabases: []string{"myshop_0a0b0c0d_db"},
		Status:            model.StatusPaused,
	}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: projectScanFunc(paused)})
	engine.On("ResumeDatabases", ctx, "u42_myshop", []string{"myshop_0a0b0c0d_db"}).Return(nil)
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	require.NoError(t, svc.Resume(ctx, "p1"))
	engine.AssertExpectations(t)
	db.AssertExpectations(t)
}

func TestProjectService_Resume_NothingPaused(t *testing.T) {
	db := &mockDB{}
	engine := &mockEngine{}
	svc := newProjectService(db, &temporalmocks.Client{}, &mockProvisioner{}, engine, &mockVault{})
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: projectScanFunc(model.Project{ID: "p1", Status: model.StatusActive})})

	err := svc.Resume(ctx, "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no paused databases")
	engine.AssertNotCalled(t, "ResumeDatabases", mock.Anything, mock.Anything, mock.Anything)
}

func TestProjectService_Resume_ActionInProgress(t *testing.T) {
	db := &mockDB{}
	engine := &mockEngine{}
	svc := newProjectService(db, &temporalmocks.Client{}, &mockProvisioner{}, engine, &mockVault{})
	ctx := context.Background()

	busy := model.Project{
		ID:                "p1",
		InactiveDatabases: []string{"a_db"},
		ActionInProgress:  true,
		Status:            model.StatusPaused,
	}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: projectScanFunc(busy)})

	err := svc.Resume(ctx, "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in progress")
	engine.AssertNotCalled(t, "ResumeDatabases", mock.Anything, mock.Anything, mock.Anything)
}

// ---------- ListByOwner ----------

func TestProjectService_ListByOwner_Pagination(t *testing.T) {
	db := &mockDB{}
	svc := newProjectService(db, &temporalmocks.Client{}, &mockProvisioner{}, &mockEngine{}, &mockVault{})
	ctx := context.Background()

	rows := newMockRows(
		projectScanFunc(model.Project{ID: "p1", OwnerID: "u42"}),
		projectScanFunc(model.Project{ID: "p2", OwnerID: "u42"}),
		projectScanFunc(model.Project{ID: "p3", OwnerID: "u42"}),
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	projects, hasMore, err := svc.ListByOwner(ctx, "u42", 2, "")
	require.NoError(t, err)
	assert.Len(t, projects, 2)
	assert.True(t, hasMore)
}
