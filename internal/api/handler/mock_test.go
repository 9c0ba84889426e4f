package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// stubVault seals by prefixing, so tests can assert on revealed plaintext.
type stubVault struct {
	decryptErr error
}

func (v *stubVault) Encrypt(plaintext string) (string, error) {
	return "sealed:" + plaintext, nil
}

func (v *stubVault) Decrypt(envelope string) (string, error) {
	if v.decryptErr != nil {
		return "", v.decryptErr
	}
	if !strings.HasPrefix(envelope, "sealed:") {
		return "", fmt.Errorf("malformed envelope %q", envelope)
	}
	return strings.TrimPrefix(envelope, "sealed:"), nil
}

// handlerMockDB implements core.DB for handler tests.
type handlerMockDB struct {
	mock.Mock
}

func (m *handlerMockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *handlerMockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *handlerMockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// mockRow implements pgx.Row for handler tests.
type mockRow struct {
	scanFunc func(dest ...any) error
	err      error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	return m.scanFunc(dest...)
}
