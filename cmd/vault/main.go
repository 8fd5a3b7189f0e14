package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-password-vault/internal/app"
	"github.com/go-password-vault/internal/application/auth"
	"github.com/go-password-vault/internal/config"
	"github.com/go-password-vault/internal/transport/cli"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	mgr := auth.NewManager(app.AuthService(cfg, deps))
	repl := cli.NewVaultREPL(cli.NewConsole(os.Stdin, os.Stdout), mgr, app.VaultOpener(deps))
	if err := repl.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("vault: %v", err)
	}
}
