package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-password-vault/internal/config"
	"github.com/go-password-vault/internal/domain"
	jwtinfra "github.com/go-password-vault/internal/infrastructure/jwt"
	"github.com/go-password-vault/internal/infrastructure/memstore"
	"github.com/go-password-vault/internal/pkg/keyring"
	"github.com/go-password-vault/internal/pkg/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMailer struct{}

func (nopMailer) SendEmail(string, string, string) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *memstore.DB) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	kr, err := keyring.New("router-secret", keyring.WithArgon2(1, 8*1024, 1))
	require.NoError(t, err)

	cfg := &config.Config{
		AllowedOrigins:    []string{"*"},
		OTPTTL:            10 * time.Minute,
		OTPResendCooldown: 30 * time.Second,
		RefreshTokenTTL:   time.Hour,
		DynamoTables:      config.DynamoTables{Users: "users", Credentials: "credentials", OTPs: "otps", Sessions: "sessions"},
	}
	db := memstore.New(cfg.DynamoTables)
	h, err := NewRouter(cfg, &Deps{
		AccountRepo:    db.Accounts(),
		CredentialRepo: db.Credentials(),
		OTPRepo:        db.OTPs(),
		SessionRepo:    db.Sessions(),
		Tables:         db.Tables(),
		Mailer:         nopMailer{},
		JWTProvider:    jwtinfra.NewProviderFromKeys(priv, &priv.PublicKey, time.Hour),
		Keyring:        kr,
		Hasher:         password.NewHasher(4),
	})
	require.NoError(t, err)
	return h, db
}

func do(t *testing.T, h http.Handler, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func login(t *testing.T, h http.Handler, username, pw string) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/sessions/login", "", map[string]string{"username": username, "password": pw})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp struct {
		Bearer string `json:"Bearer"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotEmpty(t, resp.Bearer)
	return resp.Bearer
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/health-check/ping", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/health-check/ready", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/health-check/nope", "", nil).Code)
}

func TestRouter_CredentialLifecycle(t *testing.T) {
	h, _ := newTestRouter(t)

	rr := do(t, h, http.MethodPost, "/v1/users", "", domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "Secret123!"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "password_hash")

	rr = do(t, h, http.MethodPost, "/v1/users", "", domain.RegisterRequest{Username: "ALICE", Email: "x@example.com", Password: "pw"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	bearer := login(t, h, "alice", "Secret123!")

	rr = do(t, h, http.MethodPost, "/v1/credentials", bearer, domain.AddCredentialRequest{Website: "github.com", Username: "alice-gh", Password: "p@ss"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/v1/credentials?q=GIT", bearer, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Data []domain.Credential `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "p@ss", list.Data[0].LoginEntries[0].Password)

	rr = do(t, h, http.MethodPut, "/v1/credentials", bearer, domain.UpdateCredentialRequest{
		Website: "github.com", OldUsername: "nobody", NewUsername: "x", NewPassword: "y",
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/credentials/websites", bearer, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":["github.com"]}`, rr.Body.String())

	rr = do(t, h, http.MethodDelete, "/v1/credentials", bearer, domain.DeleteCredentialRequest{Website: "github.com", Username: "alice-gh"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/credentials/websites", bearer, nil)
	assert.JSONEq(t, `{"data":[]}`, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/v1/sessions/logout", bearer, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	// The bearer dies with its session.
	rr = do(t, h, http.MethodGet, "/v1/credentials", bearer, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_LoginFailureIsGeneric(t *testing.T) {
	h, _ := newTestRouter(t)
	do(t, h, http.MethodPost, "/v1/users", "", domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw"})

	wrong := do(t, h, http.MethodPost, "/v1/sessions/login", "", map[string]string{"username": "alice", "password": "bad"})
	unknown := do(t, h, http.MethodPost, "/v1/sessions/login", "", map[string]string{"username": "ghost", "password": "bad"})

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestRouter_AdminRoutesNeedAdminRole(t *testing.T) {
	h, db := newTestRouter(t)
	do(t, h, http.MethodPost, "/v1/users", "", domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw"})
	do(t, h, http.MethodPost, "/v1/users", "", domain.RegisterRequest{Username: "root", Email: "root@example.com", Password: "pw"})

	userBearer := login(t, h, "alice", "pw")
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/v1/admin/users", userBearer, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/admin/users", "", nil).Code)

	root, err := db.Accounts().GetByUsername(context.Background(), "root")
	require.NoError(t, err)
	require.NoError(t, db.Accounts().Update(context.Background(), root.UserID, map[string]interface{}{"role": domain.RoleAdmin}))

	adminBearer := login(t, h, "root", "pw")
	rr := do(t, h, http.MethodGet, "/v1/admin/users", adminBearer, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"username":"alice"`)

	rr = do(t, h, http.MethodDelete, "/v1/admin/users/alice", adminBearer, map[string]string{"password": "pw"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/sessions", userBearer, nil).Code)
}

func TestRouter_DataRecords(t *testing.T) {
	h, _ := newTestRouter(t)
	do(t, h, http.MethodPost, "/v1/users", "", domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw"})
	bearer := login(t, h, "alice", "pw")

	rr := do(t, h, http.MethodPost, "/v1/data", bearer, map[string]string{"info": "locker 12"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		Data domain.DataRecord `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))

	rr = do(t, h, http.MethodPut, "/v1/data/"+created.Data.RecordID, bearer, map[string]string{"info": "locker 13"})
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, http.MethodPut, "/v1/data/missing", bearer, map[string]string{"info": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodDelete, "/v1/data/"+created.Data.RecordID, bearer, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
