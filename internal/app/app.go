// Package app builds the shared infrastructure for the api, vault and admin binaries.
package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/go-password-vault/internal/application/admin"
	"github.com/go-password-vault/internal/application/auth"
	"github.com/go-password-vault/internal/application/vault"
	"github.com/go-password-vault/internal/config"
	"github.com/go-password-vault/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-password-vault/internal/infrastructure/jwt"
	"github.com/go-password-vault/internal/infrastructure/memstore"
	s3infra "github.com/go-password-vault/internal/infrastructure/s3"
	"github.com/go-password-vault/internal/infrastructure/smtp"
	"github.com/go-password-vault/internal/infrastructure/sns"
	"github.com/go-password-vault/internal/pkg/keyring"
	"github.com/go-password-vault/internal/pkg/password"
	transporthttp "github.com/go-password-vault/internal/transport/http"
)

// Build opens the configured store and creates every shared dependency.
// The JWT provider is left nil when its keys cannot be loaded.
func Build(ctx context.Context, cfg *config.Config) (*transporthttp.Deps, error) {
	deps := &transporthttp.Deps{
		Mailer: smtp.NewMailer(cfg),
		Hasher: password.NewHasher(cfg.BcryptCost),
	}
	kr, err := newKeyring(cfg)
	if err != nil {
		return nil, err
	}
	deps.Keyring = kr

	if err := openStore(ctx, cfg, deps); err != nil {
		return nil, err
	}

	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		deps.JWTProvider = p
	} else {
		slog.Warn("JWT provider not available", "err", err)
	}

	if cfg.S3ArchiveBucket != "" {
		client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		deps.Archive = s3infra.NewArchiveStore(client, cfg.S3ArchiveBucket)
	}
	if cfg.SNSAuditTopicARN != "" {
		pub, err := sns.NewPublisher(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("sns publisher: %w", err)
		}
		deps.Audit = pub
	}
	return deps, nil
}

func openStore(ctx context.Context, cfg *config.Config, deps *transporthttp.Deps) error {
	switch cfg.StoreBackend {
	case "memory":
		db := memstore.New(cfg.DynamoTables)
		deps.AccountRepo = db.Accounts()
		deps.CredentialRepo = db.Credentials()
		deps.OTPRepo = db.OTPs()
		deps.SessionRepo = db.Sessions()
		deps.Tables = db.Tables()
		slog.Warn("using in-memory store; data is lost on exit")
	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("dynamo client: %w", err)
		}
		// Creates the tables if they don't exist.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		deps.AccountRepo = dynamo.NewAccountRepo(client, cfg.DynamoTables.Users)
		deps.CredentialRepo = dynamo.NewCredentialRepo(client, cfg.DynamoTables.Credentials)
		deps.OTPRepo = dynamo.NewOTPRepo(client, cfg.DynamoTables.OTPs)
		deps.SessionRepo = dynamo.NewSessionRepo(client, cfg.DynamoTables.Sessions)
		deps.Tables = dynamo.NewTableAdmin(client, cfg.DynamoTables.Names())
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	return nil
}

// newKeyring requires VAULT_SECRET for every durable store, whatever APP_ENV says.
// Only the in-memory store, whose data dies with the process anyway, may run on a
// random secret.
func newKeyring(cfg *config.Config) (*keyring.Keyring, error) {
	secret := cfg.VaultSecret
	if secret == "" {
		if cfg.StoreBackend != "memory" {
			return nil, fmt.Errorf("VAULT_SECRET is required with STORE_BACKEND=%s", cfg.StoreBackend)
		}
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, err
		}
		secret = base64.StdEncoding.EncodeToString(b)
		slog.Warn("VAULT_SECRET not set; using an ephemeral secret")
	}
	return keyring.New(secret)
}

// AuthService builds the auth service from shared dependencies.
func AuthService(cfg *config.Config, deps *transporthttp.Deps) auth.Service {
	sd := auth.ServiceDeps{
		AccountRepo:              deps.AccountRepo,
		CredentialRepo:           deps.CredentialRepo,
		OTPRepo:                  deps.OTPRepo,
		SessionRepo:              deps.SessionRepo,
		Mailer:                   deps.Mailer,
		Keyring:                  deps.Keyring,
		Hasher:                   deps.Hasher,
		RequireEmailVerification: cfg.RequireEmailVerification,
		OTPTTL:                   cfg.OTPTTL,
		OTPResendCooldown:        cfg.OTPResendCooldown,
		RefreshTokenDur:          cfg.RefreshTokenTTL,
	}
	if deps.JWTProvider != nil {
		sd.JWTProvider = deps.JWTProvider
	}
	return auth.NewService(sd)
}

// VaultOpener returns a constructor for per-user vault services.
func VaultOpener(deps *transporthttp.Deps) func(userID string) (vault.Service, error) {
	vd := vault.ServiceDeps{
		AccountRepo:    deps.AccountRepo,
		CredentialRepo: deps.CredentialRepo,
		Keyring:        deps.Keyring,
	}
	return func(userID string) (vault.Service, error) {
		return vault.NewService(vd, userID)
	}
}

func AdminService(deps *transporthttp.Deps) admin.Service {
	ad := admin.ServiceDeps{
		AccountRepo:    deps.AccountRepo,
		CredentialRepo: deps.CredentialRepo,
		SessionRepo:    deps.SessionRepo,
		OTPRepo:        deps.OTPRepo,
		Tables:         deps.Tables,
		Hasher:         deps.Hasher,
		Audit:          deps.Audit,
	}
	if deps.Archive != nil {
		ad.Archive = deps.Archive
	}
	return admin.NewService(ad)
}
