// Package workflow implements the durable lifecycle pipelines: idle
// detection, pause and delete, credential rotation, access reconciliation,
// and backups. Temporal provides at-least-once execution with retries;
// every engine-facing activity is written to be replay-safe.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/nimbusdb/controlplane/internal/activity"
)

// withDefaultActivityOptions applies the retry policy shared by registry and
// engine activities.
func withDefaultActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    5,
			InitialInterval:    5 * time.Second,
			MaximumInterval:    time.Minute,
			BackoffCoefficient: 2.0,
		},
	})
}

// withDumpActivityOptions allows for long-running dump and restore commands.
func withDumpActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    10 * time.Second,
			MaximumInterval:    2 * time.Minute,
			BackoffCoefficient: 2.0,
		},
	})
}

// setProjectFailed records an exhausted transition on the project row so it
// surfaces for manual intervention. Callers typically ignore the returned
// error since the primary error is more important.
func setProjectFailed(ctx workflow.Context, projectID string, err error) error {
	return workflow.ExecuteActivity(ctx, "SetProjectFailed", activity.SetProjectFailedParams{
		ProjectID: projectID,
		Message:   err.Error(),
	}).Get(ctx, nil)
}
