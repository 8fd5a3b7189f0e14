package vault

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-password-vault/internal/domain"
	"github.com/go-password-vault/internal/pkg/id"
	"github.com/go-password-vault/internal/pkg/keyring"
	"github.com/go-password-vault/internal/pkg/validate"
)

// Service manages the saved credentials and data records of a single account.
type Service interface {
	AddPassword(ctx context.Context, website, username, password, notes string) (*domain.Credential, error)
	UpdatePassword(ctx context.Context, website, oldUsername, newUsername, newPassword, notes string) (bool, error)
	DeletePassword(ctx context.Context, website, username string) (bool, error)
	SearchPasswords(ctx context.Context, query string) ([]domain.Credential, error)
	ListPasswords(ctx context.Context) ([]domain.Credential, error)
	GetCategories(ctx context.Context) ([]string, error)
	GetWebsites(ctx context.Context) ([]string, error)
	GetPasswordsByCategory(ctx context.Context, website string) ([]domain.Credential, error)
	GetPasswordsByWebsite(ctx context.Context, website string) ([]domain.LoginEntry, error)

	ListData(ctx context.Context) ([]domain.DataRecord, error)
	AddData(ctx context.Context, info string) (*domain.DataRecord, error)
	UpdateData(ctx context.Context, recordID, info string) (bool, error)
	DeleteData(ctx context.Context, recordID string) (bool, error)
}

type credentialStore interface {
	Put(ctx context.Context, c *domain.Credential) error
	ListByUser(ctx context.Context, userID string) ([]domain.Credential, error)
	UpdateEntry(ctx context.Context, userID, credentialID string, index int, oldUsername string, e domain.LoginEntry) (bool, error)
	Delete(ctx context.Context, userID, credentialID string) (bool, error)
}

type accountStore interface {
	Get(ctx context.Context, userID string) (*domain.Account, error)
	AppendData(ctx context.Context, userID string, rec domain.DataRecord) error
	UpdateData(ctx context.Context, userID, recordID, info string) (bool, error)
	RemoveData(ctx context.Context, userID, recordID string) (bool, error)
}

type keyUnwrapper interface {
	Unwrap(w keyring.WrappedKey) (*keyring.DataKey, error)
}

type ServiceDeps struct {
	AccountRepo    accountStore
	CredentialRepo credentialStore
	Keyring        keyUnwrapper
	Now            func() time.Time
}

type service struct {
	userID      string
	accounts    accountStore
	credentials credentialStore
	keys        keyUnwrapper
	now         func() time.Time

	keyMu   sync.Mutex
	dataKey *keyring.DataKey
}

// NewService returns a Service bound to userID for its whole lifetime.
func NewService(deps ServiceDeps, userID string) (Service, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required: %w", domain.ErrBadRequest)
	}
	s := &service{
		userID:      userID,
		accounts:    deps.AccountRepo,
		credentials: deps.CredentialRepo,
		keys:        deps.Keyring,
		now:         deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func required(pairs ...string) error {
	if err := validate.Required(pairs...); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	return nil
}

// key unwraps the account data key once. Failures are not cached.
func (s *service) key(ctx context.Context) (*keyring.DataKey, error) {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	if s.dataKey != nil {
		return s.dataKey, nil
	}
	a, err := s.accounts.Get(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	k, err := s.keys.Unwrap(keyring.WrappedKey{Ciphertext: a.EncryptionKey, Nonce: a.IV, Salt: a.KeySalt})
	if err != nil {
		return nil, fmt.Errorf("unlock account key: %w", err)
	}
	s.dataKey = k
	return k, nil
}

func (s *service) seal(ctx context.Context, e *domain.LoginEntry) error {
	k, err := s.key(ctx)
	if err != nil {
		return err
	}
	ct, nonce, err := k.Seal([]byte(e.Password))
	if err != nil {
		return err
	}
	e.PasswordCipher, e.PasswordNonce = ct, nonce
	return nil
}

// open decrypts every entry in place and drops the ciphertext.
func (s *service) open(ctx context.Context, creds []domain.Credential) error {
	if len(creds) == 0 {
		return nil
	}
	k, err := s.key(ctx)
	if err != nil {
		return err
	}
	for i := range creds {
		for j := range creds[i].LoginEntries {
			e := &creds[i].LoginEntries[j]
			if len(e.PasswordCipher) == 0 {
				continue
			}
			pt, err := k.Open(e.PasswordCipher, e.PasswordNonce)
			if err != nil {
				return fmt.Errorf("credential %s: %w", creds[i].CredentialID, err)
			}
			e.Password = string(pt)
			e.PasswordCipher, e.PasswordNonce = nil, nil
		}
	}
	return nil
}

func (s *service) AddPassword(ctx context.Context, website, username, password, notes string) (*domain.Credential, error) {
	website = strings.TrimSpace(website)
	if err := required("website", website, "username", username, "password", password); err != nil {
		return nil, err
	}
	created := s.now().UTC()
	entry := domain.LoginEntry{
		Username:  username,
		Password:  password,
		Notes:     notes,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := s.seal(ctx, &entry); err != nil {
		return nil, err
	}
	c := &domain.Credential{
		UserID:       s.userID,
		CredentialID: id.New(),
		Website:      website,
		LoginEntries: []domain.LoginEntry{entry},
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	if err := s.credentials.Put(ctx, c); err != nil {
		return nil, err
	}
	c.LoginEntries[0].PasswordCipher, c.LoginEntries[0].PasswordNonce = nil, nil
	return c, nil
}

// UpdatePassword rewrites the first entry matching website and oldUsername.
// It reports false without writing when nothing matches or the entry changed underneath.
func (s *service) UpdatePassword(ctx context.Context, website, oldUsername, newUsername, newPassword, notes string) (bool, error) {
	website = strings.TrimSpace(website)
	if err := required("website", website, "old username", oldUsername, "new username", newUsername, "new password", newPassword); err != nil {
		return false, err
	}
	creds, err := s.credentials.ListByUser(ctx, s.userID)
	if err != nil {
		return false, err
	}
	c, idx := findEntry(creds, website, oldUsername)
	if c == nil {
		return false, nil
	}
	entry := domain.LoginEntry{
		Username:  newUsername,
		Password:  newPassword,
		Notes:     notes,
		CreatedAt: c.LoginEntries[idx].CreatedAt,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.seal(ctx, &entry); err != nil {
		return false, err
	}
	return s.credentials.UpdateEntry(ctx, s.userID, c.CredentialID, idx, oldUsername, entry)
}

// DeletePassword removes the whole credential holding the first matching entry.
func (s *service) DeletePassword(ctx context.Context, website, username string) (bool, error) {
	website = strings.TrimSpace(website)
	if err := required("website", website, "username", username); err != nil {
		return false, err
	}
	creds, err := s.credentials.ListByUser(ctx, s.userID)
	if err != nil {
		return false, err
	}
	c, _ := findEntry(creds, website, username)
	if c == nil {
		return false, nil
	}
	return s.credentials.Delete(ctx, s.userID, c.CredentialID)
}

func findEntry(creds []domain.Credential, website, username string) (*domain.Credential, int) {
	for i := range creds {
		if creds[i].Website != website {
			continue
		}
		for j, e := range creds[i].LoginEntries {
			if e.Username == username {
				return &creds[i], j
			}
		}
	}
	return nil, -1
}

// SearchPasswords matches query literally and case-insensitively against the
// website and every entry username.
func (s *service) SearchPasswords(ctx context.Context, query string) ([]domain.Credential, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if err := required("query", q); err != nil {
		return nil, err
	}
	creds, err := s.credentials.ListByUser(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Credential, 0)
	for _, c := range creds {
		if matches(c, q) {
			out = append(out, c)
		}
	}
	if err := s.open(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func matches(c domain.Credential, q string) bool {
	if strings.Contains(strings.ToLower(c.Website), q) {
		return true
	}
	for _, e := range c.LoginEntries {
		if strings.Contains(strings.ToLower(e.Username), q) {
			return true
		}
	}
	return false
}

func (s *service) ListPasswords(ctx context.Context) ([]domain.Credential, error) {
	creds, err := s.credentials.ListByUser(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	if err := s.open(ctx, creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// GetCategories is an alias of GetWebsites.
func (s *service) GetCategories(ctx context.Context) ([]string, error) {
	return s.GetWebsites(ctx)
}

func (s *service) GetWebsites(ctx context.Context) ([]string, error) {
	creds, err := s.credentials.ListByUser(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(creds))
	out := make([]string, 0, len(creds))
	for _, c := range creds {
		if _, ok := seen[c.Website]; ok {
			continue
		}
		seen[c.Website] = struct{}{}
		out = append(out, c.Website)
	}
	sort.Strings(out)
	return out, nil
}

func (s *service) GetPasswordsByCategory(ctx context.Context, website string) ([]domain.Credential, error) {
	website = strings.TrimSpace(website)
	if err := required("website", website); err != nil {
		return nil, err
	}
	creds, err := s.credentials.ListByUser(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Credential, 0)
	for _, c := range creds {
		if c.Website == website {
			out = append(out, c)
		}
	}
	if err := s.open(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPasswordsByWebsite flattens the entries of every credential for website.
func (s *service) GetPasswordsByWebsite(ctx context.Context, website string) ([]domain.LoginEntry, error) {
	creds, err := s.GetPasswordsByCategory(ctx, website)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LoginEntry, 0)
	for _, c := range creds {
		out = append(out, c.LoginEntries...)
	}
	return out, nil
}

func (s *service) ListData(ctx context.Context) ([]domain.DataRecord, error) {
	a, err := s.accounts.Get(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	if a.Data == nil {
		return []domain.DataRecord{}, nil
	}
	return a.Data, nil
}

func (s *service) AddData(ctx context.Context, info string) (*domain.DataRecord, error) {
	if err := required("info", info); err != nil {
		return nil, err
	}
	created := s.now().UTC()
	rec := domain.DataRecord{
		RecordID:  id.NewRecordID(),
		Info:      info,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := s.accounts.AppendData(ctx, s.userID, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *service) UpdateData(ctx context.Context, recordID, info string) (bool, error) {
	if err := required("record id", recordID, "info", info); err != nil {
		return false, err
	}
	return s.accounts.UpdateData(ctx, s.userID, recordID, info)
}

func (s *service) DeleteData(ctx context.Context, recordID string) (bool, error) {
	if err := required("record id", recordID); err != nil {
		return false, err
	}
	return s.accounts.RemoveData(ctx, s.userID, recordID)
}
