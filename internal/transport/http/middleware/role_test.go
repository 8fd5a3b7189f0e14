package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-password-vault/internal/domain"
	jwtinfra "github.com/go-password-vault/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
)

func requestAs(role string) *http.Request {
	sess := &domain.Session{SessionID: "s1", UserID: "u1", Role: role, Enable: true}
	claims := &jwtinfra.Claims{UserID: "u1", Role: role, SessionID: "s1"}
	return httptest.NewRequest(http.MethodGet, "/", nil).WithContext(WithSession(context.Background(), claims, sess))
}

func TestRequireRole_NoSessionInContext(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireRole(domain.RoleAdmin)(http.HandlerFunc(okHandler)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"unauthorized","error_code":401}`, rr.Body.String())
}

func TestRequireRole_WrongRole(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireRole(domain.RoleAdmin)(http.HandlerFunc(okHandler)).ServeHTTP(rr, requestAs(domain.RoleUser))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireRole_Admin(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireRole(domain.RoleAdmin)(http.HandlerFunc(okHandler)).ServeHTTP(rr, requestAs(domain.RoleAdmin))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireRole_AnyOfSeveral(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireRole(domain.RoleAdmin, domain.RoleUser)(http.HandlerFunc(okHandler)).ServeHTTP(rr, requestAs(domain.RoleUser))
	assert.Equal(t, http.StatusOK, rr.Code)
}
