package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/nimbusdb/controlplane/internal/activity"
	"github.com/nimbusdb/controlplane/internal/model"
)

const testGrace = 7 * 24 * time.Hour

// ---------- IdleScanWorkflow ----------

type IdleScanWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *IdleScanWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *IdleScanWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *IdleScanWorkflowTestSuite) params() IdleScanParams {
	return IdleScanParams{OwnerPattern: "%\\_%", IdleAfter: 30 * 24 * time.Hour, Grace: testGrace}
}

func (s *IdleScanWorkflowTestSuite) TestGroupsPerProjectAndSkipsKnownInactive() {
	idle := []model.IdleDatabase{
		{DatabaseName: "shop_a_db", OwnerRole: "u1_shop", Status: model.IdleStatusIdle},
		{DatabaseName: "shop_b_db", OwnerRole: "u1_shop", Status: model.IdleStatusNeverUsed},
		{DatabaseName: "blog_db", OwnerRole: "u2_blog", Status: model.IdleStatusIdle},
	}
	projects := []model.Project{
		{ID: "p1", DBRole: "u1_shop", InactiveDatabases: []string{"shop_b_db"}},
		{ID: "p2", DBRole: "u2_blog", ActionInProgress: true},
	}

	s.env.OnActivity("FindIdle", mock.Anything, mock.Anything).Return(idle, nil)
	s.env.OnActivity("ListProjectsByRoles", mock.Anything, []string{"u1_shop", "u2_blog"}).Return(projects, nil)
	// p1 gets only the database that is not already paused; p2 is skipped
	// because a transition is mid-flight.
	s.env.OnActivity("StartPauseDatabases", mock.Anything, activity.StartPauseParams{
		ProjectID: "p1", DBNames: []string{"shop_a_db"}, Grace: testGrace,
	}).Return(nil)
	s.env.OnActivity("ListRegisteredDatabaseNames", mock.Anything).Return([]string{"shop_a_db", "shop_b_db", "blog_db"}, nil)
	s.env.OnActivity("FindOrphanDatabases", mock.Anything, []string{"shop_a_db", "shop_b_db", "blog_db"}).Return([]string{}, nil)

	s.env.ExecuteWorkflow(IdleScanWorkflow, s.params())
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *IdleScanWorkflowTestSuite) TestNothingIdleStillSweepsOrphans() {
	s.env.OnActivity("FindIdle", mock.Anything, mock.Anything).Return([]model.IdleDatabase{}, nil)
	s.env.OnActivity("ListRegisteredDatabaseNames", mock.Anything).Return([]string{"shop_db"}, nil)
	s.env.OnActivity("FindOrphanDatabases", mock.Anything, []string{"shop_db"}).Return([]string{"stray_db"}, nil)

	s.env.ExecuteWorkflow(IdleScanWorkflow, s.params())
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *IdleScanWorkflowTestSuite) TestOrphanSweepFailureDoesNotFailScan() {
	s.env.OnActivity("FindIdle", mock.Anything, mock.Anything).Return([]model.IdleDatabase{}, nil)
	s.env.OnActivity("ListRegisteredDatabaseNames", mock.Anything).Return([]string(nil), fmt.Errorf("registry down"))

	s.env.ExecuteWorkflow(IdleScanWorkflow, s.params())
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func TestIdleScanWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(IdleScanWorkflowTestSuite))
}

// ---------- PauseDatabasesWorkflow ----------

type PauseDatabasesWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *PauseDatabasesWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *PauseDatabasesWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *PauseDatabasesWorkflowTestSuite) TestPauseGraceDelete() {
	params := PauseDatabasesParams{ProjectID: "p1", DBNames: []string{"shop_db"}, Grace: testGrace}
	project := model.Project{ID: "p1", OwnerID: "u1", Title: "shop", DBRole: "u1_shop", Status: model.StatusActive}
	pausedProject := project
	pausedProject.InactiveDatabases = []string{"shop_db"}
	pausedProject.Status = model.StatusPaused

	s.env.OnActivity("GetProjectByID", mock.Anything, "p1").Return(&project, nil).Once()
	s.env.OnActivity("SetActionInProgress", mock.Anything, activity.SetActionInProgressParams{
		ProjectID: "p1", InProgress: true,
	}).Return(nil).Twice()
	s.env.OnActivity("PauseDatabases", mock.Anything, activity.EngineDatabasesParams{
		Role: "u1_shop", DBNames: []string{"shop_db"},
	}).Return(nil)
	s.env.OnActivity("MergeInactiveDatabases", mock.Anything, activity.MergeInactiveDatabasesParams{
		ProjectID: "p1", DBNames: []string{"shop_db"},
	}).Return(nil)
	s.env.OnActivity("SetActionInProgress", mock.Anything, activity.SetActionInProgressParams{
		ProjectID: "p1", InProgress: false,
	}).Return(nil).Twice()
	s.env.OnActivity("SendNotification", mock.Anything, mock.AnythingOfType("notify.Event")).Return(nil).Twice()

	// After the grace timer the project is re-read and still paused.
	s.env.OnActivity("GetProjectByID", mock.Anything, "p1").Return(&pausedProject, nil).Once()
	s.env.OnActivity("DropDatabases", mock.Anything, []string{"shop_db"}).Return(nil)
	s.env.OnActivity("ClearInactiveDatabases", mock.Anything, "p1").Return(nil)

	s.env.ExecuteWorkflow(PauseDatabasesWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *PauseDatabasesWorkflowTestSuite) TestResumeDuringGraceSkipsDelete() {
	params := PauseDatabasesParams{ProjectID: "p1", DBNames: []string{"shop_db"}, Grace: testGrace}
	project := model.Project{ID: "p1", OwnerID: "u1", Title: "shop", DBRole: "u1_shop", Status: model.StatusActive}
	resumed := project // empty inactive set after the tenant resumed

	s.env.OnActivity("GetProjectByID", mock.Anything, "p1").Return(&project, nil).Once()
	s.env.OnActivity("SetActionInProgress", mock.Anything, mock.Anything).Return(nil)
	s.env.OnActivity("PauseDatabases", mock.Anything, mock.Anything).Return(nil)
	s.env.OnActivity("MergeInactiveDatabases", mock.Anything, mock.Anything).Return(nil)
	s.env.OnActivity("SendNotification", mock.Anything, mock.AnythingOfType("notify.Event")).Return(nil).Once()
	s.env.OnActivity("GetProjectByID", mock.Anything, "p1").Return(&resumed, nil).Once()

	s.env.ExecuteWorkflow(PauseDatabasesWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	// DropDatabases and ClearInactiveDatabases are not mocked: any call
	// would fail the test.
}

func (s *PauseDatabasesWorkflowTestSuite) TestPauseFails_MarksProjectFailed() {
	params := PauseDatabasesParams{ProjectID: "p1", DBNames: []string{"shop_db"}, Grace: testGrace}
	project := model.Project{ID: "p1", DBRole: "u1_shop", Status: model.StatusActive}

	s.env.OnActivity("GetProjectByID", mock.Anything, "p1").Return(&project, nil)
	s.env.OnActivity("SetActionInProgress", mock.Anything, mock.Anything).Return(nil)
	s.env.OnActivity("PauseDatabases", mock.Anything, mock.Anything).Return(fmt.Errorf("engine down"))
	s.env.OnActivity("SetProjectFailed", mock.Anything, mock.MatchedBy(func(p activity.SetProjectFailedParams) bool {
		return p.ProjectID == "p1" && p.Message != ""
	})).Return(nil)

	s.env.ExecuteWorkflow(PauseDatabasesWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *PauseDatabasesWorkflowTestSuite) TestDeletedProjectIsNoOp() {
	params := PauseDatabasesParams{ProjectID: "p1", DBNames: []string{"shop_db"}, Grace: testGrace}
	gone := model.Project{ID: "p1", Status: model.StatusDeleted}

	s.env.OnActivity("GetProjectByID", mock.Anything, "p1").Return(&gone, nil).Once()

	s.env.ExecuteWorkflow(PauseDatabasesWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func TestPauseDatabasesWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(PauseDatabasesWorkflowTestSuite))
}
