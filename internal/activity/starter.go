package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	temporalclient "go.temporal.io/sdk/client"
)

// Starter launches long-lived lifecycle workflows from inside short cron
// runs. The cron scan must not block for a multi-day grace period, so the
// pause pipeline runs as its own top-level workflow.
type Starter struct {
	tc        temporalclient.Client
	taskQueue string
}

func NewStarter(tc temporalclient.Client, taskQueue string) *Starter {
	return &Starter{tc: tc, taskQueue: taskQueue}
}

// StartPauseParams holds the parameters for StartPauseDatabases.
type StartPauseParams struct {
	ProjectID string        `json:"project_id"`
	DBNames   []string      `json:"db_names"`
	Grace     time.Duration `json:"grace"`
}

// StartPauseDatabases starts the pause pipeline for one project. The
// workflow ID is per-project, so a scan that re-detects databases already
// being paused is a no-op.
func (a *Starter) StartPauseDatabases(ctx context.Context, params StartPauseParams) error {
	_, err := a.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("pause-databases-%s", params.ProjectID),
		TaskQueue: a.taskQueue,
	}, "PauseDatabasesWorkflow", params)
	if err != nil {
		if strings.Contains(err.Error(), "already started") || strings.Contains(err.Error(), "already running") {
			return nil
		}
		return fmt.Errorf("start PauseDatabasesWorkflow: %w", err)
	}
	return nil
}
