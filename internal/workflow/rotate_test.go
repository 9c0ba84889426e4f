package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/nimbusdb/controlplane/internal/activity"
	"github.com/nimbusdb/controlplane/internal/notify"
)

type RotatePasswordWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *RotatePasswordWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *RotatePasswordWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *RotatePasswordWorkflowTestSuite) TestRotatesAndContinuesAsNew() {
	params := RotatePasswordParams{ProjectID: "p1", Period: 30 * 24 * time.Hour}

	s.env.OnActivity("RotatePassword", mock.Anything, "p1").
		Return(&activity.RotateResult{OwnerID: "u1", OwnerEmail: "u1@example.com", Title: "shop"}, nil)
	// The event carries the owner's address so the mail channel can deliver.
	s.env.OnActivity("SendNotification", mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
		return e.OwnerEmail == "u1@example.com" && e.OwnerID == "u1"
	})).Return(nil)

	s.env.ExecuteWorkflow(RotatePasswordWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())

	err := s.env.GetWorkflowError()
	s.Error(err)
	var canErr *workflow.ContinueAsNewError
	s.True(errors.As(err, &canErr), "expected the loop to continue as new")
}

func (s *RotatePasswordWorkflowTestSuite) TestFirstRotationWaitsFullPeriod() {
	params := RotatePasswordParams{ProjectID: "p1", Period: 30 * 24 * time.Hour}

	var rotated bool
	s.env.OnActivity("RotatePassword", mock.Anything, "p1").
		Return(func(ctx context.Context, projectID string) (*activity.RotateResult, error) {
			rotated = true
			return &activity.RotateResult{Stopped: true}, nil
		})

	// Just before the period elapses the provisioning credential must
	// still be in place.
	s.env.RegisterDelayedCallback(func() {
		s.False(rotated, "rotated before the period elapsed")
	}, params.Period-time.Hour)

	s.env.ExecuteWorkflow(RotatePasswordWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	s.True(rotated)
}

func (s *RotatePasswordWorkflowTestSuite) TestStopsWhenProjectGone() {
	params := RotatePasswordParams{ProjectID: "p1", Period: 30 * 24 * time.Hour}

	s.env.OnActivity("RotatePassword", mock.Anything, "p1").
		Return(&activity.RotateResult{Stopped: true}, nil)

	s.env.ExecuteWorkflow(RotatePasswordWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	// No notification and no timer when the loop ends.
}

func (s *RotatePasswordWorkflowTestSuite) TestRotationFailure_MarksProjectFailed() {
	params := RotatePasswordParams{ProjectID: "p1", Period: 30 * 24 * time.Hour}

	s.env.OnActivity("RotatePassword", mock.Anything, "p1").
		Return(nil, fmt.Errorf("alter role failed"))
	s.env.OnActivity("SetProjectFailed", mock.Anything, mock.MatchedBy(func(p activity.SetProjectFailedParams) bool {
		return p.ProjectID == "p1"
	})).Return(nil)

	s.env.ExecuteWorkflow(RotatePasswordWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func TestRotatePasswordWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(RotatePasswordWorkflowTestSuite))
}
