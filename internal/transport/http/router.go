package http

import (
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-password-vault/internal/application/admin"
	"github.com/go-password-vault/internal/application/auth"
	"github.com/go-password-vault/internal/application/vault"
	"github.com/go-password-vault/internal/config"
	"github.com/go-password-vault/internal/domain"
	jwtinfra "github.com/go-password-vault/internal/infrastructure/jwt"
	"github.com/go-password-vault/internal/infrastructure/smtp"
	"github.com/go-password-vault/internal/infrastructure/sns"
	"github.com/go-password-vault/internal/pkg/keyring"
	"github.com/go-password-vault/internal/pkg/password"
	"github.com/go-password-vault/internal/transport/http/handler"
	appmiddleware "github.com/go-password-vault/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	AccountRepo    AccountRepository
	CredentialRepo CredentialRepository
	OTPRepo        OTPRepository
	SessionRepo    SessionRepository
	Tables         TableAdmin
	Mailer         smtp.Mailer
	JWTProvider    *jwtinfra.Provider
	Keyring        *keyring.Keyring
	Hasher         *password.Hasher
	Archive        Archiver           // optional
	Audit          sns.AuditPublisher // optional
}

// maxCachedVaults bounds the per-user vault cache; it is flushed when full.
const maxCachedVaults = 1024

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, error) {
	if deps.JWTProvider == nil {
		return nil, errors.New("router: JWT provider is required")
	}
	if deps.Keyring == nil || deps.Hasher == nil {
		return nil, errors.New("router: keyring and hasher are required")
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authSvc := auth.NewService(auth.ServiceDeps{
		AccountRepo:              deps.AccountRepo,
		CredentialRepo:           deps.CredentialRepo,
		OTPRepo:                  deps.OTPRepo,
		SessionRepo:              deps.SessionRepo,
		Mailer:                   deps.Mailer,
		JWTProvider:              deps.JWTProvider,
		Keyring:                  deps.Keyring,
		Hasher:                   deps.Hasher,
		RequireEmailVerification: cfg.RequireEmailVerification,
		OTPTTL:                   cfg.OTPTTL,
		OTPResendCooldown:        cfg.OTPResendCooldown,
		RefreshTokenDur:          cfg.RefreshTokenTTL,
	})
	adminDeps := admin.ServiceDeps{
		AccountRepo:    deps.AccountRepo,
		CredentialRepo: deps.CredentialRepo,
		SessionRepo:    deps.SessionRepo,
		OTPRepo:        deps.OTPRepo,
		Tables:         deps.Tables,
		Hasher:         deps.Hasher,
		Audit:          deps.Audit,
	}
	if deps.Archive != nil {
		adminDeps.Archive = deps.Archive
	}
	adminSvc := admin.NewService(adminDeps)
	vaults := cachedVaults(vault.ServiceDeps{
		AccountRepo:    deps.AccountRepo,
		CredentialRepo: deps.CredentialRepo,
		Keyring:        deps.Keyring,
	})

	authMw := appmiddleware.Auth(deps.JWTProvider, authSvc)

	// 5 requests/second, burst of 10, applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler(deps.Tables)
	userH := handler.NewUserHandler(authSvc)
	sessionH := handler.NewSessionHandler(authSvc)
	pwH := handler.NewPasswordRecoveryHandler(authSvc)
	accountH := handler.NewAccountHandler(authSvc)
	credH := handler.NewCredentialHandler(vaults)
	dataH := handler.NewDataHandler(vaults)
	adminH := handler.NewAdminHandler(adminSvc)

	r.Route("/v1", func(r chi.Router) {
		// Public
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/users/otp", userH.RequestOTP)
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)
		r.With(sensitiveRL.Limit).Post("/users/verify-email", userH.VerifyEmail)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.With(sensitiveRL.Limit).Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/password-recovery/{action}", pwH.Action)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)
			r.Put("/account/password", accountH.ChangePassword)
			r.Delete("/account", accountH.Delete)

			r.Get("/credentials", credH.List)
			r.Post("/credentials", credH.Create)
			r.Put("/credentials", credH.Update)
			r.Delete("/credentials", credH.Delete)
			r.Get("/credentials/websites", credH.Websites)
			r.Get("/credentials/websites/{website}", credH.ByWebsite)

			r.Get("/data", dataH.List)
			r.Post("/data", dataH.Create)
			r.Put("/data/{recordID}", dataH.Update)
			r.Delete("/data/{recordID}", dataH.Delete)

			// Admin only
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/admin/users", adminH.ListUsers)
				r.Get("/admin/users/{username}", adminH.GetUser)
				r.Delete("/admin/users/{username}", adminH.DeleteUser)
			})
		})
	})

	return r, nil
}

// cachedVaults keeps one vault service per user so the data key is unwrapped
// once rather than on every request.
func cachedVaults(deps vault.ServiceDeps) handler.VaultProvider {
	var mu sync.Mutex
	cache := make(map[string]vault.Service)
	return func(userID string) (vault.Service, error) {
		mu.Lock()
		defer mu.Unlock()
		if svc, ok := cache[userID]; ok {
			return svc, nil
		}
		svc, err := vault.NewService(deps, userID)
		if err != nil {
			return nil, err
		}
		if len(cache) >= maxCachedVaults {
			clear(cache)
		}
		cache[userID] = svc
		return svc, nil
	}
}
