package admin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-password-vault/internal/application/auth"
	"github.com/go-password-vault/internal/domain"
	"github.com/go-password-vault/internal/infrastructure/sns"
)

// DropConfirmation must be passed verbatim to DropDatabase.
const DropConfirmation = "yes"

// Audit actions.
const (
	ActionDeleteUser     = "delete_user"
	ActionDropCollection = "drop_collection"
)

type Service interface {
	ListUsers(ctx context.Context) ([]domain.Account, error)
	GetUserData(ctx context.Context, username string) (*domain.Account, error)
	DeleteUser(ctx context.Context, username, password string) error
	ListCollections(ctx context.Context) ([]string, error)
	DropCollection(ctx context.Context, name string) (string, error)
	DropDatabase(ctx context.Context, confirmation string) ([]string, error)
}

type accountStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	ScanAll(ctx context.Context) ([]domain.Account, error)
	Delete(ctx context.Context, userID string) error
}

type credentialStore interface {
	DeleteAllByUser(ctx context.Context, userID string) (int, error)
}

type sessionStore interface {
	DisableByUser(ctx context.Context, userID string) error
}

type otpStore interface {
	Delete(ctx context.Context, email, otpType string) error
}

type tableStore interface {
	ListTables(ctx context.Context) ([]string, error)
	ExportTable(ctx context.Context, name string) ([]map[string]interface{}, error)
	DropTable(ctx context.Context, name string) error
}

type archiver interface {
	Archive(ctx context.Context, collection string, rows []map[string]interface{}) (string, error)
}

type passwordChecker interface {
	Compare(hash, plain string) error
}

type ServiceDeps struct {
	AccountRepo    accountStore
	CredentialRepo credentialStore
	SessionRepo    sessionStore
	OTPRepo        otpStore
	Tables         tableStore
	Hasher         passwordChecker
	Archive        archiver           // optional
	Audit          sns.AuditPublisher // optional
	Now            func() time.Time
}

type service struct {
	accounts    accountStore
	credentials credentialStore
	sessions    sessionStore
	otps        otpStore
	tables      tableStore
	hasher      passwordChecker
	archive     archiver
	audit       sns.AuditPublisher
	now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		accounts:    deps.AccountRepo,
		credentials: deps.CredentialRepo,
		sessions:    deps.SessionRepo,
		otps:        deps.OTPRepo,
		tables:      deps.Tables,
		hasher:      deps.Hasher,
		archive:     deps.Archive,
		audit:       deps.Audit,
		now:         deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ListUsers returns every account ordered by username, without secrets.
func (s *service) ListUsers(ctx context.Context) ([]domain.Account, error) {
	all, err := s.accounts.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		scrub(&all[i])
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	return all, nil
}

func (s *service) GetUserData(ctx context.Context, username string) (*domain.Account, error) {
	a, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	scrub(a)
	return a, nil
}

// DeleteUser requires the account's own password before removing it and everything it owns.
func (s *service) DeleteUser(ctx context.Context, username, password string) error {
	a, err := s.lookup(ctx, username)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(a.PasswordHash, password); err != nil {
		return fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if err := auth.PurgeAccount(ctx, a, auth.PurgeDeps{
		Accounts:    s.accounts,
		Credentials: s.credentials,
		Sessions:    s.sessions,
		OTPs:        s.otps,
	}); err != nil {
		return err
	}
	s.publish(ctx, ActionDeleteUser, a.Username, "")
	return nil
}

func (s *service) lookup(ctx context.Context, username string) (*domain.Account, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", domain.ErrBadRequest)
	}
	return s.accounts.GetByUsername(ctx, username)
}

func (s *service) ListCollections(ctx context.Context) ([]string, error) {
	return s.tables.ListTables(ctx)
}

// DropCollection archives the collection when an archive is configured, then drops it.
// It returns the archive location, or "" when nothing was archived.
func (s *service) DropCollection(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("collection name is required: %w", domain.ErrBadRequest)
	}
	var location string
	if s.archive != nil {
		rows, err := s.tables.ExportTable(ctx, name)
		if err != nil {
			return "", err
		}
		location, err = s.archive.Archive(ctx, name, rows)
		if err != nil {
			return "", err
		}
		slog.Info("collection archived", "collection", name, "items", len(rows), "location", location)
	}
	if err := s.tables.DropTable(ctx, name); err != nil {
		return "", err
	}
	slog.Warn("collection dropped", "collection", name)
	s.publish(ctx, ActionDropCollection, name, location)
	return location, nil
}

// DropDatabase drops every collection. It returns the collections it dropped
// before any failure.
func (s *service) DropDatabase(ctx context.Context, confirmation string) ([]string, error) {
	if confirmation != DropConfirmation {
		return nil, fmt.Errorf("drop not confirmed: %w", domain.ErrBadRequest)
	}
	names, err := s.tables.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	dropped := make([]string, 0, len(names))
	for _, n := range names {
		if _, err := s.DropCollection(ctx, n); err != nil {
			return dropped, fmt.Errorf("drop %s: %w", n, err)
		}
		dropped = append(dropped, n)
	}
	return dropped, nil
}

// publish is best effort; the action already happened.
func (s *service) publish(ctx context.Context, action, target, archive string) {
	if s.audit == nil {
		return
	}
	ev := sns.AuditEvent{Action: action, Target: target, Archive: archive, Occurred: s.now().UTC()}
	if err := s.audit.Publish(ctx, ev); err != nil {
		slog.Warn("failed to publish audit event", "action", action, "target", target, "err", err)
	}
}

func scrub(a *domain.Account) {
	a.PasswordHash = ""
	a.EncryptionKey, a.IV, a.KeySalt = nil, nil, nil
}
