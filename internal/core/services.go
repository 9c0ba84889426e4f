package core

import (
	"time"

	temporalclient "go.temporal.io/sdk/client"
)

type Services struct {
	Project    *ProjectService
	AccessRule *AccessRuleService
	Backup     *BackupService
	Query      *QueryService
}

// Deps carries everything the services need beyond the registry pool.
type Deps struct {
	TC             temporalclient.Client
	Prov           Provisioner
	Engine         EngineAdmin
	Vault          Vault
	Store          Presigner
	DBHost         string
	DBPort         int
	RotationPeriod time.Duration
	BackupPeriod   time.Duration
}

func NewServices(db DB, deps Deps) *Services {
	return &Services{
		Project: NewProjectService(db, deps.TC, deps.Prov, deps.Engine, deps.Vault,
			deps.DBHost, deps.DBPort, deps.RotationPeriod, deps.BackupPeriod),
		AccessRule: NewAccessRuleService(db),
		Backup:     NewBackupService(db, deps.TC, deps.Store),
		Query:      NewQueryService(db, deps.Vault),
	}
}
