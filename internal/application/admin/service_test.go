package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-password-vault/internal/config"
	"github.com/go-password-vault/internal/domain"
	"github.com/go-password-vault/internal/infrastructure/memstore"
	"github.com/go-password-vault/internal/infrastructure/sns"
	"github.com/go-password-vault/internal/pkg/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockArchiver struct{ mock.Mock }

func (m *mockArchiver) Archive(ctx context.Context, collection string, rows []map[string]interface{}) (string, error) {
	args := m.Called(ctx, collection, rows)
	return args.String(0), args.Error(1)
}

type mockAudit struct{ mock.Mock }

func (m *mockAudit) Publish(ctx context.Context, ev sns.AuditEvent) error {
	return m.Called(ctx, ev).Error(0)
}

var tables = config.DynamoTables{Users: "users", Credentials: "credentials", OTPs: "otps", Sessions: "sessions"}

func seed(t *testing.T, db *memstore.DB, userID, username, plain string) {
	t.Helper()
	hash, err := password.NewHasher(4).Hash(plain)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, db.Accounts().Put(ctx, &domain.Account{
		UserID: userID, Username: username, Email: username + "@example.com",
		PasswordHash: hash, EncryptionKey: []byte("k"), Role: domain.RoleUser,
	}))
	require.NoError(t, db.Credentials().Put(ctx, &domain.Credential{UserID: userID, CredentialID: userID + "-c", Website: "github.com"}))
	require.NoError(t, db.Sessions().Put(ctx, &domain.Session{SessionID: userID + "-s", UserID: userID, Enable: true}))
}

func newTestService(db *memstore.DB, ar archiver, audit sns.AuditPublisher) Service {
	deps := ServiceDeps{
		AccountRepo:    db.Accounts(),
		CredentialRepo: db.Credentials(),
		SessionRepo:    db.Sessions(),
		OTPRepo:        db.OTPs(),
		Tables:         db.Tables(),
		Hasher:         password.NewHasher(4),
		Now:            func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	}
	if ar != nil {
		deps.Archive = ar
	}
	if audit != nil {
		deps.Audit = audit
	}
	return NewService(deps)
}

func TestListUsers_SortedAndScrubbed(t *testing.T) {
	db := memstore.New(tables)
	seed(t, db, "u2", "zoe", "pw")
	seed(t, db, "u1", "adam", "pw")

	users, err := newTestService(db, nil, nil).ListUsers(context.Background())

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "adam", users[0].Username)
	assert.Equal(t, "zoe", users[1].Username)
	assert.Empty(t, users[0].PasswordHash)
	assert.Nil(t, users[0].EncryptionKey)
}

func TestGetUserData(t *testing.T) {
	db := memstore.New(tables)
	seed(t, db, "u1", "adam", "pw")
	svc := newTestService(db, nil, nil)

	a, err := svc.GetUserData(context.Background(), " ADAM ")
	require.NoError(t, err)
	assert.Equal(t, "u1", a.UserID)
	assert.Empty(t, a.PasswordHash)

	_, err = svc.GetUserData(context.Background(), "ghost")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDeleteUser_RequiresPasswordAndCascades(t *testing.T) {
	db := memstore.New(tables)
	seed(t, db, "u1", "adam", "pw")
	audit := &mockAudit{}
	audit.On("Publish", mock.Anything, mock.MatchedBy(func(ev sns.AuditEvent) bool {
		return ev.Action == ActionDeleteUser && ev.Target == "adam"
	})).Return(nil).Once()
	svc := newTestService(db, nil, audit)
	ctx := context.Background()

	err := svc.DeleteUser(ctx, "adam", "wrong")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	require.NoError(t, svc.DeleteUser(ctx, "adam", "pw"))

	_, err = db.Accounts().Get(ctx, "u1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	creds, err := db.Credentials().ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, creds)
	sess, err := db.Sessions().Get(ctx, "u1-s")
	require.NoError(t, err)
	assert.False(t, sess.Enable)
	audit.AssertExpectations(t)
}

func TestDropCollection_ArchivesFirst(t *testing.T) {
	db := memstore.New(tables)
	seed(t, db, "u1", "adam", "pw")
	ar := &mockArchiver{}
	audit := &mockAudit{}
	ar.On("Archive", mock.Anything, "credentials", mock.MatchedBy(func(rows []map[string]interface{}) bool {
		return len(rows) == 1
	})).Return("s3://bucket/archives/credentials/x.json", nil)
	audit.On("Publish", mock.Anything, mock.MatchedBy(func(ev sns.AuditEvent) bool {
		return ev.Action == ActionDropCollection && ev.Archive == "s3://bucket/archives/credentials/x.json"
	})).Return(errors.New("topic gone"))
	svc := newTestService(db, ar, audit)
	ctx := context.Background()

	loc, err := svc.DropCollection(ctx, "credentials")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/archives/credentials/x.json", loc)

	names, err := svc.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"otps", "sessions", "users"}, names)
	ar.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestDropCollection_ArchiveFailureKeepsData(t *testing.T) {
	db := memstore.New(tables)
	seed(t, db, "u1", "adam", "pw")
	ar := &mockArchiver{}
	ar.On("Archive", mock.Anything, "users", mock.Anything).Return("", domain.ErrUnavailable)
	svc := newTestService(db, ar, nil)

	_, err := svc.DropCollection(context.Background(), "users")

	require.Error(t, err)
	_, err = db.Accounts().Get(context.Background(), "u1")
	assert.NoError(t, err)
}

func TestDropCollection_UnknownName(t *testing.T) {
	svc := newTestService(memstore.New(tables), nil, nil)

	_, err := svc.DropCollection(context.Background(), "payroll")

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestDropDatabase(t *testing.T) {
	db := memstore.New(tables)
	seed(t, db, "u1", "adam", "pw")
	svc := newTestService(db, nil, nil)
	ctx := context.Background()

	_, err := svc.DropDatabase(ctx, "YES please")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	names, err := svc.ListCollections(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 4)

	dropped, err := svc.DropDatabase(ctx, DropConfirmation)
	require.NoError(t, err)
	assert.Equal(t, []string{"credentials", "otps", "sessions", "users"}, dropped)

	names, err = svc.ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}
