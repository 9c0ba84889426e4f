package core

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAccessRuleService_Create_NormalizesAndMarksDirty(t *testing.T) {
	db := &mockDB{}
	svc := NewAccessRuleService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*dest[0].(*string) = "u42_myshop"
			return nil
		}})
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	rule, err := svc.Create(ctx, "p1", "myshop_0a0b0c0d_db", "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7/32", rule.CIDR)
	assert.Equal(t, "u42_myshop", rule.Role)
	assert.False(t, rule.IsActive)

	// insert plus dirty mark
	db.AssertNumberOfCalls(t, "Exec", 2)
}

func TestAccessRuleService_Create_RejectsBadAddress(t *testing.T) {
	db := &mockDB{}
	svc := NewAccessRuleService(db)

	_, err := svc.Create(context.Background(), "p1", "db", "2001:db8::1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid access rule address")
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestAccessRuleService_Delete_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewAccessRuleService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil).Once()

	err := svc.Delete(ctx, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestAccessRuleService_Delete_MarksDirty(t *testing.T) {
	db := &mockDB{}
	svc := NewAccessRuleService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 1"), nil).Once()
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil).Once()

	require.NoError(t, svc.Delete(ctx, "r1"))
	db.AssertNumberOfCalls(t, "Exec", 2)
}

func TestAccessRuleService_MarkDirty_Error(t *testing.T) {
	db := &mockDB{}
	svc := NewAccessRuleService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("db error"))

	err := svc.MarkDirty(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark access rules dirty")
}
