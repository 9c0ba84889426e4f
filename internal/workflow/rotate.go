package workflow

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/nimbusdb/controlplane/internal/activity"
	"github.com/nimbusdb/controlplane/internal/notify"
)

// RotatePasswordParams holds the parameters for RotatePasswordWorkflow.
type RotatePasswordParams struct {
	ProjectID string        `json:"project_id"`
	Period    time.Duration `json:"period"`
}

// RotatePasswordWorkflow rotates a project's role credential on a fixed
// period for the life of the project. Each cycle sleeps first, so the
// credential issued at provisioning lives a full period before its first
// replacement. The rotation itself is one activity, so the stored envelope
// only ever changes after the engine accepted the new password. The loop
// continues-as-new after every period to keep history bounded, and ends once
// the project row is gone or deleted.
func RotatePasswordWorkflow(ctx workflow.Context, params RotatePasswordParams) error {
	ctx = withDefaultActivityOptions(ctx)

	if err := workflow.Sleep(ctx, params.Period); err != nil {
		return err
	}

	var result activity.RotateResult
	err := workflow.ExecuteActivity(ctx, "RotatePassword", params.ProjectID).Get(ctx, &result)
	if err != nil {
		_ = setProjectFailed(ctx, params.ProjectID, err)
		return err
	}
	if result.Stopped {
		return nil
	}

	_ = workflow.ExecuteActivity(ctx, "SendNotification", notify.Event{
		Kind:       notify.KindPasswordRotated,
		Channels:   []notify.Channel{notify.ChannelMail},
		OwnerID:    result.OwnerID,
		OwnerEmail: result.OwnerEmail,
		ProjectID:  params.ProjectID,
		Project:    result.Title,
		OccurredAt: workflow.Now(ctx),
	}).Get(ctx, nil)

	return workflow.NewContinueAsNewError(ctx, RotatePasswordWorkflow, params)
}
