package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	temporalmocks "go.temporal.io/sdk/mocks"
)

func TestNewServices(t *testing.T) {
	db := &mockDB{}
	tc := &temporalmocks.Client{}

	svcs := NewServices(db, Deps{
		TC:             tc,
		Prov:           &mockProvisioner{},
		Engine:         &mockEngine{},
		Vault:          &mockVault{},
		Store:          &mockPresigner{},
		DBHost:         "db.internal",
		DBPort:         5432,
		RotationPeriod: 30 * 24 * time.Hour,
		BackupPeriod:   7 * 24 * time.Hour,
	})

	require.NotNil(t, svcs)
	assert.NotNil(t, svcs.Project)
	assert.NotNil(t, svcs.AccessRule)
	assert.NotNil(t, svcs.Backup)
	assert.NotNil(t, svcs.Query)
}
