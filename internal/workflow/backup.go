package workflow

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/nimbusdb/controlplane/internal/activity"
	"github.com/nimbusdb/controlplane/internal/model"
	"github.com/nimbusdb/controlplane/internal/notify"
)

// ProjectBackupParams holds the parameters for ProjectBackupWorkflow.
type ProjectBackupParams struct {
	ProjectID string        `json:"project_id"`
	Period    time.Duration `json:"period"`
}

// ProjectBackupWorkflow sleeps for the backup period, then dumps every
// database a project's role owns, uploads the archives, records them, and
// continues-as-new. The first backup lands one period after provisioning,
// not at creation time. Scratch files are removed whether or not the upload
// succeeded. A failure on one database does not stop the others.
func ProjectBackupWorkflow(ctx workflow.Context, params ProjectBackupParams) error {
	ctx = withDefaultActivityOptions(ctx)
	logger := workflow.GetLogger(ctx)

	if err := workflow.Sleep(ctx, params.Period); err != nil {
		return err
	}

	var project model.Project
	err := workflow.ExecuteActivity(ctx, "GetProjectByID", params.ProjectID).Get(ctx, &project)
	if err != nil {
		return err
	}
	if project.Status == model.StatusDeleted {
		return nil
	}

	var dbNames []string
	err = workflow.ExecuteActivity(ctx, "ListOwnedDatabases", project.DBRole).Get(ctx, &dbNames)
	if err != nil {
		return err
	}

	dumpCtx := withDumpActivityOptions(ctx)
	var backedUp []string
	for _, dbName := range dbNames {
		var dump activity.DumpResult
		err := workflow.ExecuteActivity(dumpCtx, "DumpDatabase", activity.DumpDatabaseParams{
			ProjectID: params.ProjectID,
			DBName:    dbName,
		}).Get(ctx, &dump)
		if err != nil {
			logger.Error("dump failed", "database", dbName, "error", err)
			continue
		}

		var size int64
		uploadErr := workflow.ExecuteActivity(dumpCtx, "UploadBackup", activity.UploadBackupParams{
			Path:      dump.Path,
			ObjectKey: dump.ObjectKey,
		}).Get(ctx, &size)

		// The scratch archive goes away regardless of the upload outcome.
		if err := workflow.ExecuteActivity(ctx, "CleanupScratch", dump.Path).Get(ctx, nil); err != nil {
			logger.Error("scratch cleanup failed", "path", dump.Path, "error", err)
		}

		if uploadErr != nil {
			logger.Error("upload failed", "database", dbName, "error", uploadErr)
			continue
		}

		var backupID string
		err = workflow.ExecuteActivity(ctx, "CreateBackupRecord", activity.CreateBackupRecordParams{
			ProjectID: params.ProjectID,
			DBName:    dbName,
			ObjectKey: dump.ObjectKey,
			SizeBytes: size,
		}).Get(ctx, &backupID)
		if err != nil {
			logger.Error("backup record insert failed", "database", dbName, "error", err)
			continue
		}
		backedUp = append(backedUp, dbName)
	}

	if len(backedUp) > 0 {
		_ = workflow.ExecuteActivity(ctx, "SendNotification", notify.Event{
			Kind:       notify.KindBackupCompleted,
			Channels:   []notify.Channel{notify.ChannelMail},
			OwnerID:    project.OwnerID,
			OwnerEmail: project.OwnerEmail,
			ProjectID:  project.ID,
			Project:    project.Title,
			Databases:  backedUp,
			OccurredAt: workflow.Now(ctx),
		}).Get(ctx, nil)
	}

	return workflow.NewContinueAsNewError(ctx, ProjectBackupWorkflow, params)
}

// RestoreBackupWorkflow replays one stored archive into its database.
func RestoreBackupWorkflow(ctx workflow.Context, backupID string) error {
	ctx = withDefaultActivityOptions(ctx)

	var backup model.Backup
	err := workflow.ExecuteActivity(ctx, "GetBackupByID", backupID).Get(ctx, &backup)
	if err != nil {
		return err
	}

	dumpCtx := withDumpActivityOptions(ctx)
	err = workflow.ExecuteActivity(dumpCtx, "RestoreDatabase", activity.RestoreDatabaseParams{
		ObjectKey: backup.ObjectKey,
		DBName:    backup.DBName,
	}).Get(ctx, nil)
	if err != nil {
		_ = setProjectFailed(ctx, backup.ProjectID, err)
		return err
	}
	return nil
}
