package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalmocks "go.temporal.io/sdk/mocks"
)

func TestBackupService_SignedDownloadURL(t *testing.T) {
	db := &mockDB{}
	store := &mockPresigner{}
	svc := NewBackupService(db, &temporalmocks.Client{}, store)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*dest[0].(*string) = "backups/p1/myshop_db/20260828.sql.gz"
			return nil
		}})
	store.On("PresignDownload", ctx, "backups/p1/myshop_db/20260828.sql.gz", DownloadURLTTL).
		Return("https://storage.example/signed", nil)

	url, err := svc.SignedDownloadURL(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example/signed", url)
	store.AssertExpectations(t)
}

func TestBackupService_SignedDownloadURL_NotFound(t *testing.T) {
	db := &mockDB{}
	store := &mockPresigner{}
	svc := NewBackupService(db, &temporalmocks.Client{}, store)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			return errors.New("no rows in result set")
		}})

	_, err := svc.SignedDownloadURL(ctx, "missing")
	require.Error(t, err)
	store.AssertNotCalled(t, "PresignDownload", mock.Anything, mock.Anything, mock.Anything)
}

func TestBackupService_Restore_StartsWorkflow(t *testing.T) {
	db := &mockDB{}
	tc := &temporalmocks.Client{}
	svc := NewBackupService(db, tc, &mockPresigner{})
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*dest[0].(*string) = "p1"
			return nil
		}})
	wfRun := &temporalmocks.WorkflowRun{}
	tc.On("ExecuteWorkflow", ctx, mock.Anything, "RestoreBackupWorkflow", mock.Anything).Return(wfRun, nil)

	require.NoError(t, svc.Restore(ctx, "b1"))
	tc.AssertExpectations(t)
}
