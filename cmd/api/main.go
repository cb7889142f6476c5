package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"authgrid.org/internal/audit"
	"authgrid.org/internal/config"
	"authgrid.org/internal/httpapi"
	"authgrid.org/internal/idp"
	"authgrid.org/internal/idp/dev"
	"authgrid.org/internal/idp/oidc"
	"authgrid.org/internal/obs"
	"authgrid.org/internal/rbac"
	"authgrid.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Storage: Postgres when a DSN is configured, seeded in-memory otherwise.
	var (
		store rbac.Store
		probe httpapi.ReadyProbe
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		mem := rbac.NewMemoryStore()
		mem.Seed()
		store = mem
		log.Printf("no AUTHGRID_PG_DSN set, using in-memory store")
	}

	tokens, err := rbac.NewTokenCodec(rbac.TokenConfig{
		Secret:   cfg.Token.Secret,
		Issuer:   cfg.Token.Issuer,
		Audience: cfg.Token.Audience,
		TTL:      cfg.Token.TTL,
		Leeway:   cfg.Token.Leeway,
	})
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	ledger, err := audit.NewLedger(store)
	if err != nil {
		log.Fatalf("audit ledger: %v", err)
	}
	authorizer, err := rbac.NewAuthorizer(store)
	if err != nil {
		log.Fatalf("authorizer: %v", err)
	}
	provisioner, err := rbac.NewProvisioner(store, ledger, tokens)
	if err != nil {
		log.Fatalf("provisioner: %v", err)
	}
	assigner, err := rbac.NewRoleAssigner(store)
	if err != nil {
		log.Fatalf("role assigner: %v", err)
	}

	identity, err := buildIdentityProvider(cfg)
	if err != nil {
		log.Fatalf("identity provider: %v", err)
	}

	api := httpapi.New(httpapi.Deps{
		Store:       store,
		Tokens:      tokens,
		Authorizer:  authorizer,
		Provisioner: provisioner,
		Assigner:    assigner,
		Ledger:      ledger,
		Identity:    identity,
		ReadyProbe:  probe,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting authgrid-api %s on %s (identity mode: %s)", version, srv.Addr, cfg.IdentityMode)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

func buildIdentityProvider(cfg config.Config) (idp.Provider, error) {
	switch cfg.IdentityMode {
	case config.IdentityModeOIDC:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return oidc.New(ctx, oidc.Config{
			ProviderName: cfg.OIDC.ProviderName,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURL:  cfg.OIDC.RedirectURL,
			IssuerURL:    cfg.OIDC.IssuerURL,
			Scope:        cfg.OIDC.Scope,
		})
	default:
		return dev.New(dev.Config{
			Subject:  cfg.Dev.Subject,
			Email:    cfg.Dev.Email,
			Provider: cfg.Dev.Provider,
		})
	}
}
