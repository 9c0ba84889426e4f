package workflow

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/nimbusdb/controlplane/internal/activity"
	"github.com/nimbusdb/controlplane/internal/model"
	"github.com/nimbusdb/controlplane/internal/notify"
)

// IdleScanParams holds the parameters for IdleScanWorkflow.
type IdleScanParams struct {
	OwnerPattern string        `json:"owner_pattern"`
	IdleAfter    time.Duration `json:"idle_after"`
	Grace        time.Duration `json:"grace"`
}

// IdleScanWorkflow runs on a schedule, finds databases with no recent use,
// and starts the pause pipeline for each affected project. Databases that
// are already paused or whose project has a transition mid-flight are
// skipped; a missed batch is picked up by the next scan.
func IdleScanWorkflow(ctx workflow.Context, params IdleScanParams) error {
	ctx = withDefaultActivityOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var idle []model.IdleDatabase
	err := workflow.ExecuteActivity(ctx, "FindIdle", activity.FindIdleParams{
		OwnerPattern: params.OwnerPattern,
		IdleAfter:    params.IdleAfter,
	}).Get(ctx, &idle)
	if err != nil {
		return err
	}
	if len(idle) == 0 {
		return sweepOrphans(ctx)
	}

	byRole := make(map[string][]string)
	roles := make([]string, 0)
	for _, d := range idle {
		if _, seen := byRole[d.OwnerRole]; !seen {
			roles = append(roles, d.OwnerRole)
		}
		byRole[d.OwnerRole] = append(byRole[d.OwnerRole], d.DatabaseName)
	}

	var projects []model.Project
	err = workflow.ExecuteActivity(ctx, "ListProjectsByRoles", roles).Get(ctx, &projects)
	if err != nil {
		return err
	}

	for _, project := range projects {
		if project.ActionInProgress {
			logger.Info("skipping project with transition in flight", "projectID", project.ID)
			continue
		}

		var fresh []string
		for _, name := range byRole[project.DBRole] {
			if !project.HasInactive(name) {
				fresh = append(fresh, name)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		err := workflow.ExecuteActivity(ctx, "StartPauseDatabases", activity.StartPauseParams{
			ProjectID: project.ID,
			DBNames:   fresh,
			Grace:     params.Grace,
		}).Get(ctx, nil)
		if err != nil {
			logger.Error("failed to start pause pipeline", "projectID", project.ID, "error", err)
			// Keep scanning the remaining projects.
		}
	}
	return sweepOrphans(ctx)
}

// sweepOrphans reports engine databases with no registry record, left behind
// by a crash between the engine and registry writes during provisioning.
// They are surfaced for operators, never dropped automatically.
func sweepOrphans(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)

	var registered []string
	err := workflow.ExecuteActivity(ctx, "ListRegisteredDatabaseNames").Get(ctx, &registered)
	if err != nil {
		logger.Error("failed to list registered databases", "error", err)
		return nil
	}

	var orphans []string
	err = workflow.ExecuteActivity(ctx, "FindOrphanDatabases", registered).Get(ctx, &orphans)
	if err != nil {
		logger.Error("orphan scan failed", "error", err)
		return nil
	}
	if len(orphans) > 0 {
		logger.Warn("engine databases have no registry record", "databases", orphans)
	}
	return nil
}

// PauseDatabasesParams holds the parameters for PauseDatabasesWorkflow.
type PauseDatabasesParams struct {
	ProjectID string        `json:"project_id"`
	DBNames   []string      `json:"db_names"`
	Grace     time.Duration `json:"grace"`
}

// PauseDatabasesWorkflow pauses a batch of idle databases, waits out the
// grace period on a durable timer, and then deletes whatever is still
// paused. The registry is re-read before the delete so a tenant resume
// during the grace period turns the second phase into a no-op.
func PauseDatabasesWorkflow(ctx workflow.Context, params PauseDatabasesParams) error {
	ctx = withDefaultActivityOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var project model.Project
	err := workflow.ExecuteActivity(ctx, "GetProjectByID", params.ProjectID).Get(ctx, &project)
	if err != nil {
		return err
	}
	if project.Status == model.StatusDeleted {
		return nil
	}

	err = workflow.ExecuteActivity(ctx, "SetActionInProgress", activity.SetActionInProgressParams{
		ProjectID: params.ProjectID, InProgress: true,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	err = workflow.ExecuteActivity(ctx, "PauseDatabases", activity.EngineDatabasesParams{
		Role:    project.DBRole,
		DBNames: params.DBNames,
	}).Get(ctx, nil)
	if err != nil {
		_ = setProjectFailed(ctx, params.ProjectID, err)
		return err
	}

	err = workflow.ExecuteActivity(ctx, "MergeInactiveDatabases", activity.MergeInactiveDatabasesParams{
		ProjectID: params.ProjectID,
		DBNames:   params.DBNames,
	}).Get(ctx, nil)
	if err != nil {
		_ = setProjectFailed(ctx, params.ProjectID, err)
		return err
	}

	err = workflow.ExecuteActivity(ctx, "SetActionInProgress", activity.SetActionInProgressParams{
		ProjectID: params.ProjectID, InProgress: false,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	_ = workflow.ExecuteActivity(ctx, "SendNotification", notify.Event{
		Kind:       notify.KindDatabasePaused,
		OwnerID:    project.OwnerID,
		OwnerEmail: project.OwnerEmail,
		ProjectID:  project.ID,
		Project:    project.Title,
		Databases:  params.DBNames,
		OccurredAt: workflow.Now(ctx),
	}).Get(ctx, nil)

	if err := workflow.Sleep(ctx, params.Grace); err != nil {
		return err
	}

	// Delete phase. The paused set is re-read: resuming during the grace
	// period empties it and nothing is dropped.
	err = workflow.ExecuteActivity(ctx, "GetProjectByID", params.ProjectID).Get(ctx, &project)
	if err != nil {
		return err
	}
	if project.Status == model.StatusDeleted {
		return nil
	}
	if len(project.InactiveDatabases) == 0 {
		logger.Info("project resumed during grace period, nothing to delete", "projectID", params.ProjectID)
		return nil
	}

	err = workflow.ExecuteActivity(ctx, "SetActionInProgress", activity.SetActionInProgressParams{
		ProjectID: params.ProjectID, InProgress: true,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	err = workflow.ExecuteActivity(ctx, "DropDatabases", project.InactiveDatabases).Get(ctx, nil)
	if err != nil {
		_ = setProjectFailed(ctx, params.ProjectID, err)
		return err
	}

	err = workflow.ExecuteActivity(ctx, "ClearInactiveDatabases", params.ProjectID).Get(ctx, nil)
	if err != nil {
		_ = setProjectFailed(ctx, params.ProjectID, err)
		return err
	}

	err = workflow.ExecuteActivity(ctx, "SetActionInProgress", activity.SetActionInProgressParams{
		ProjectID: params.ProjectID, InProgress: false,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	_ = workflow.ExecuteActivity(ctx, "SendNotification", notify.Event{
		Kind:       notify.KindDatabaseDeleted,
		OwnerID:    project.OwnerID,
		OwnerEmail: project.OwnerEmail,
		ProjectID:  project.ID,
		Project:    project.Title,
		Databases:  project.InactiveDatabases,
		OccurredAt: workflow.Now(ctx),
	}).Get(ctx, nil)

	return nil
}
