package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-password-vault/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAdmin struct{ mock.Mock }

func (m *mockAdmin) ListUsers(ctx context.Context) ([]domain.Account, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]domain.Account)
	return users, args.Error(1)
}

func (m *mockAdmin) GetUserData(ctx context.Context, username string) (*domain.Account, error) {
	args := m.Called(ctx, username)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAdmin) DeleteUser(ctx context.Context, username, password string) error {
	return m.Called(ctx, username, password).Error(0)
}

func (m *mockAdmin) ListCollections(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *mockAdmin) DropCollection(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *mockAdmin) DropDatabase(ctx context.Context, confirmation string) ([]string, error) {
	args := m.Called(ctx, confirmation)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func runMenu(t *testing.T, svc *mockAdmin, script string) string {
	t.Helper()
	out := &bytes.Buffer{}
	menu := NewAdminMenu(NewConsole(strings.NewReader(script), out), svc)
	require.NoError(t, menu.Run(context.Background()))
	return out.String()
}

func TestAdminMenu_ListUsers(t *testing.T) {
	svc := &mockAdmin{}
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.On("ListUsers", mock.Anything).Return([]domain.Account{
		{Username: "alice", Email: "alice@example.com", Role: domain.RoleUser, EmailVerified: true, CreatedAt: created},
		{Username: "root", Email: "root@example.com", Role: domain.RoleAdmin, CreatedAt: created},
	}, nil)

	out := runMenu(t, svc, "1\n7\n")

	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "2024-03-01")
	svc.AssertExpectations(t)
}

func TestAdminMenu_UserData(t *testing.T) {
	svc := &mockAdmin{}
	svc.On("GetUserData", mock.Anything, "alice").Return(&domain.Account{
		Username: "alice",
		Data:     []domain.DataRecord{{RecordID: "r1", Info: "locker 12"}},
	}, nil)

	out := runMenu(t, svc, "2\nalice\n7\n")
	assert.Contains(t, out, "locker 12")
}

func TestAdminMenu_DeleteUserFailureKeepsMenu(t *testing.T) {
	svc := &mockAdmin{}
	svc.On("DeleteUser", mock.Anything, "alice", "bad").Return(fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized))
	svc.On("ListCollections", mock.Anything).Return([]string{"users", "credentials"}, nil)

	out := runMenu(t, svc, "3\nalice\nbad\n4\n7\n")

	assert.Contains(t, out, "error: invalid credentials")
	assert.Contains(t, out, "credentials")
	svc.AssertExpectations(t)
}

func TestAdminMenu_DropCollectionReportsArchive(t *testing.T) {
	svc := &mockAdmin{}
	svc.On("DropCollection", mock.Anything, "otps").Return("s3://archive/otps/01H.json", nil)

	out := runMenu(t, svc, "5\notps\n7\n")

	assert.Contains(t, out, "collection otps dropped")
	assert.Contains(t, out, "archived to s3://archive/otps/01H.json")
}

func TestAdminMenu_DropDatabaseNeedsYes(t *testing.T) {
	svc := &mockAdmin{}

	out := runMenu(t, svc, "6\nno\n7\n")

	assert.Contains(t, out, "aborted")
	svc.AssertNotCalled(t, "DropDatabase", mock.Anything, mock.Anything)
}

func TestAdminMenu_DropDatabaseConfirmed(t *testing.T) {
	svc := &mockAdmin{}
	svc.On("DropDatabase", mock.Anything, "yes").Return([]string{"users", "credentials", "otps", "sessions"}, nil)

	out := runMenu(t, svc, "6\nyes\n7\n")

	assert.Contains(t, out, "dropped 4 collections")
	svc.AssertExpectations(t)
}

func TestAdminMenu_InvalidOption(t *testing.T) {
	out := runMenu(t, &mockAdmin{}, "9\nabc\n")
	assert.Equal(t, 2, strings.Count(out, "invalid option"))
}
