// Package memstore is an in-process stand-in for the DynamoDB repositories.
// It backs STORE_BACKEND=memory and end-to-end tests. Every value is copied on
// the way in and out so callers never alias stored state.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/go-password-vault/internal/config"
	"github.com/go-password-vault/internal/domain"
)

// DB holds all tables behind one lock.
type DB struct {
	mu          sync.RWMutex
	tables      config.DynamoTables
	dropped     map[string]bool
	accounts    map[string]domain.Account
	credentials map[string]map[string]domain.Credential // user_id -> credential_id -> credential
	otps        map[string]domain.OTP                   // email|type
	sessions    map[string]domain.Session
}

func New(tables config.DynamoTables) *DB {
	db := &DB{tables: tables, dropped: map[string]bool{}}
	db.reset()
	return db
}

func (db *DB) reset() {
	db.accounts = map[string]domain.Account{}
	db.credentials = map[string]map[string]domain.Credential{}
	db.otps = map[string]domain.OTP{}
	db.sessions = map[string]domain.Session{}
}

func (db *DB) Accounts() *AccountRepo       { return &AccountRepo{db: db} }
func (db *DB) Credentials() *CredentialRepo { return &CredentialRepo{db: db} }
func (db *DB) OTPs() *OTPRepo               { return &OTPRepo{db: db} }
func (db *DB) Sessions() *SessionRepo       { return &SessionRepo{db: db} }
func (db *DB) Tables() *TableAdmin          { return &TableAdmin{db: db} }

func notFound(what string) error { return fmt.Errorf("%s not found: %w", what, domain.ErrNotFound) }

func copyAccount(a domain.Account) domain.Account {
	a.Data = slices.Clone(a.Data)
	a.EncryptionKey = slices.Clone(a.EncryptionKey)
	a.IV = slices.Clone(a.IV)
	a.KeySalt = slices.Clone(a.KeySalt)
	return a
}

func copyCredential(c domain.Credential) domain.Credential {
	c.LoginEntries = slices.Clone(c.LoginEntries)
	for i := range c.LoginEntries {
		c.LoginEntries[i].Password = ""
		c.LoginEntries[i].PasswordCipher = slices.Clone(c.LoginEntries[i].PasswordCipher)
		c.LoginEntries[i].PasswordNonce = slices.Clone(c.LoginEntries[i].PasswordNonce)
	}
	return c
}

// AccountRepo mirrors dynamo.AccountRepo.
type AccountRepo struct{ db *DB }

func (r *AccountRepo) Put(_ context.Context, a *domain.Account) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.accounts[a.UserID]; ok {
		return fmt.Errorf("account %s already exists: %w", a.UserID, domain.ErrConflict)
	}
	r.db.accounts[a.UserID] = copyAccount(*a)
	return nil
}

func (r *AccountRepo) Get(_ context.Context, userID string) (*domain.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a, ok := r.db.accounts[userID]
	if !ok {
		return nil, notFound("account")
	}
	out := copyAccount(a)
	return &out, nil
}

func (r *AccountRepo) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool { return a.Username == username })
}

func (r *AccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool { return a.Email == email })
}

func (r *AccountRepo) find(match func(domain.Account) bool) (*domain.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, a := range r.db.accounts {
		if match(a) {
			out := copyAccount(a)
			return &out, nil
		}
	}
	return nil, notFound("account")
}

// Update supports the attributes the services write.
func (r *AccountRepo) Update(_ context.Context, userID string, updates map[string]interface{}) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.accounts[userID]
	if !ok {
		return notFound("account")
	}
	for k, v := range updates {
		var err error
		switch k {
		case "password_hash":
			err = assign(&a.PasswordHash, k, v)
		case "email_verified":
			err = assign(&a.EmailVerified, k, v)
		case "role":
			err = assign(&a.Role, k, v)
		case "encryption_key":
			err = assign(&a.EncryptionKey, k, v)
		case "iv":
			err = assign(&a.IV, k, v)
		case "key_salt":
			err = assign(&a.KeySalt, k, v)
		default:
			err = fmt.Errorf("memstore: unsupported account field %q", k)
		}
		if err != nil {
			return err
		}
	}
	a.UpdatedAt = time.Now().UTC()
	r.db.accounts[userID] = copyAccount(a)
	return nil
}

func assign[T any](dst *T, field string, v interface{}) error {
	t, ok := v.(T)
	if !ok {
		return fmt.Errorf("memstore: field %q has type %T", field, v)
	}
	*dst = t
	return nil
}

func (r *AccountRepo) Delete(_ context.Context, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.accounts, userID)
	return nil
}

func (r *AccountRepo) ScanAll(_ context.Context) ([]domain.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]domain.Account, 0, len(r.db.accounts))
	for _, a := range r.db.accounts {
		out = append(out, copyAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *AccountRepo) AppendData(_ context.Context, userID string, rec domain.DataRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.accounts[userID]
	if !ok {
		return notFound("account")
	}
	a.Data = append(slices.Clone(a.Data), rec)
	a.UpdatedAt = time.Now().UTC()
	r.db.accounts[userID] = a
	return nil
}

func (r *AccountRepo) UpdateData(_ context.Context, userID, recordID, info string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.accounts[userID]
	if !ok {
		return false, notFound("account")
	}
	for i := range a.Data {
		if a.Data[i].RecordID == recordID {
			a = copyAccount(a)
			a.Data[i].Info = info
			a.Data[i].UpdatedAt = time.Now().UTC()
			a.UpdatedAt = a.Data[i].UpdatedAt
			r.db.accounts[userID] = a
			return true, nil
		}
	}
	return false, nil
}

func (r *AccountRepo) RemoveData(_ context.Context, userID, recordID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.accounts[userID]
	if !ok {
		return false, notFound("account")
	}
	for i := range a.Data {
		if a.Data[i].RecordID == recordID {
			a.Data = slices.Delete(slices.Clone(a.Data), i, i+1)
			a.UpdatedAt = time.Now().UTC()
			r.db.accounts[userID] = a
			return true, nil
		}
	}
	return false, nil
}

// TableAdmin mirrors dynamo.TableAdmin over the in-memory tables.
type TableAdmin struct{ db *DB }

func (t *TableAdmin) ListTables(_ context.Context) ([]string, error) {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	var names []string
	for _, n := range t.db.tables.Names() {
		if !t.db.dropped[n] {
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (t *TableAdmin) ExportTable(_ context.Context, name string) ([]map[string]interface{}, error) {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	if err := t.check(name); err != nil {
		return nil, err
	}
	var rows []interface{}
	switch name {
	case t.db.tables.Users:
		for _, a := range t.db.accounts {
			rows = append(rows, a)
		}
	case t.db.tables.Credentials:
		for _, byID := range t.db.credentials {
			for _, c := range byID {
				rows = append(rows, c)
			}
		}
	case t.db.tables.OTPs:
		for _, o := range t.db.otps {
			rows = append(rows, o)
		}
	case t.db.tables.Sessions:
		for _, s := range t.db.sessions {
			rows = append(rows, s)
		}
	}
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		b, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}
		var m map[string]interface{}
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (t *TableAdmin) DropTable(_ context.Context, name string) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if err := t.check(name); err != nil {
		return err
	}
	switch name {
	case t.db.tables.Users:
		t.db.accounts = map[string]domain.Account{}
	case t.db.tables.Credentials:
		t.db.credentials = map[string]map[string]domain.Credential{}
	case t.db.tables.OTPs:
		t.db.otps = map[string]domain.OTP{}
	case t.db.tables.Sessions:
		t.db.sessions = map[string]domain.Session{}
	}
	t.db.dropped[name] = true
	return nil
}

func (t *TableAdmin) check(name string) error {
	if !slices.Contains(t.db.tables.Names(), name) {
		return fmt.Errorf("unknown collection %q: %w", name, domain.ErrBadRequest)
	}
	if t.db.dropped[name] {
		return fmt.Errorf("table %s: %w", name, domain.ErrNotFound)
	}
	return nil
}
