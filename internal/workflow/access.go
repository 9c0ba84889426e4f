package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/nimbusdb/controlplane/internal/activity"
	"github.com/nimbusdb/controlplane/internal/model"
	"github.com/nimbusdb/controlplane/internal/pgengine"
)

// SyncAccessRulesParams holds the parameters for SyncAccessRulesWorkflow.
type SyncAccessRulesParams struct {
	HBAPath   string `json:"hba_path"`
	AdminCIDR string `json:"admin_cidr"`
}

// SyncAccessRulesWorkflow rebuilds the engine's host-based authentication
// file from the registry whenever the dirty flag is set. The file is always
// rendered from scratch, so a failed or partial earlier run is repaired by
// the next one. The flag is cleared with a version compare: rule writes that
// raced the rebuild leave it set, and the next run picks them up.
func SyncAccessRulesWorkflow(ctx workflow.Context, params SyncAccessRulesParams) error {
	ctx = withDefaultActivityOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var state activity.SyncState
	err := workflow.ExecuteActivity(ctx, "GetSyncState").Get(ctx, &state)
	if err != nil {
		return err
	}
	if !state.Dirty {
		return nil
	}

	var rules []model.AccessRule
	err = workflow.ExecuteActivity(ctx, "ListAccessRules").Get(ctx, &rules)
	if err != nil {
		return err
	}

	content := pgengine.BuildRuleset(params.AdminCIDR, rules)
	err = workflow.ExecuteActivity(ctx, "WriteRuleset", activity.WriteRulesetParams{
		Path:    params.HBAPath,
		Content: content,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	// Only the rules that went into this file flip to active. Anything
	// inserted after the list was taken waits for its own rebuild.
	var pending []string
	for _, r := range rules {
		if !r.IsActive {
			pending = append(pending, r.ID)
		}
	}
	if len(pending) > 0 {
		err = workflow.ExecuteActivity(ctx, "MarkAccessRulesActive", pending).Get(ctx, nil)
		if err != nil {
			return err
		}
	}

	var cleared bool
	err = workflow.ExecuteActivity(ctx, "ClearDirtyIfVersion", state.Version).Get(ctx, &cleared)
	if err != nil {
		return err
	}
	if !cleared {
		logger.Info("rule writes raced the rebuild, flag left set for the next run")
	}
	return nil
}
