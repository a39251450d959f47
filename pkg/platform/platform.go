package platform

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/tokengate/tokengate/pkg/audit"
	auditpg "github.com/tokengate/tokengate/pkg/audit/postgres"
	"github.com/tokengate/tokengate/pkg/authority"
	"github.com/tokengate/tokengate/pkg/credential"
	"github.com/tokengate/tokengate/pkg/database/migrate"
	"github.com/tokengate/tokengate/pkg/health"
	"github.com/tokengate/tokengate/pkg/policy"
	"github.com/tokengate/tokengate/pkg/principal"
	principalpg "github.com/tokengate/tokengate/pkg/principal/postgres"
	"github.com/tokengate/tokengate/pkg/refresh"
	refreshpg "github.com/tokengate/tokengate/pkg/refresh/postgres"
	"github.com/tokengate/tokengate/pkg/revocation"
	revocationpg "github.com/tokengate/tokengate/pkg/revocation/postgres"
	"github.com/tokengate/tokengate/pkg/session"
	sessionpg "github.com/tokengate/tokengate/pkg/session/postgres"
	"github.com/tokengate/tokengate/pkg/token"

	// PostgreSQL driver, registered for database/sql.
	_ "github.com/lib/pq"
)

// Platform assembles the session authority's components from configuration
// and owns their lifecycle.
type Platform struct {
	Config    *Config
	Authority *authority.Authority
	Verifier  token.Verifier
	Sessions  session.Store
	Gate      policy.Gate
	Auditor   audit.Logger
	Health    *health.Checker

	principals  principal.Store
	refreshes   refresh.Store
	revocations revocation.Store

	db      *sql.DB
	closers []func() error
}

// New builds a Platform from the given configuration. Postgres-backed
// deployments get their schema migrated before any store touches it.
func New(ctx context.Context, cfg *Config) (*Platform, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Platform{
		Config: cfg,
		Health: health.NewChecker(),
	}

	if err := p.buildStores(ctx, cfg); err != nil {
		_ = p.closeAll()
		return nil, err
	}

	key, err := cfg.LoadSigningKey()
	if err != nil {
		_ = p.closeAll()
		return nil, err
	}

	issuer, err := token.NewIssuer(key, p.revocations)
	if err != nil {
		_ = p.closeAll()
		return nil, fmt.Errorf("building token issuer: %w", err)
	}
	p.Verifier = issuer

	hasher := credential.NewBcryptHasher(cfg.Token.BcryptCost)

	p.Authority = authority.New(p.principals, hasher, issuer, p.refreshes, p.Auditor, authority.Config{
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
	})

	p.Gate = policy.NewOwnerGate(cfg.Policy.ElevatedRoles...)

	p.Health.SetReady()
	return p, nil
}

// buildStores constructs the auditing and storage backends and starts their
// sweep routines.
func (p *Platform) buildStores(ctx context.Context, cfg *Config) error {
	if needsDatabase(cfg) {
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		p.db = db
		p.onClose(db.Close)

		if err := migrate.Run(db); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}

		p.Health.AddProbe("database", func(ctx context.Context) error {
			return db.PingContext(ctx)
		})
	}

	switch cfg.Audit.Backend {
	case "postgres":
		p.Auditor = auditpg.New(p.db)
	case "none":
		p.Auditor = &audit.NopLogger{}
	default:
		p.Auditor = audit.NewSlogLogger(slog.Default())
	}
	p.onClose(p.Auditor.Close)

	switch cfg.Session.Backend {
	case BackendPostgres:
		revocations := revocationpg.New(p.db)
		revocations.StartCleanupRoutine(cfg.Session.SweepInterval)
		p.revocations = revocations

		refreshes := refreshpg.New(p.db)
		refreshes.StartCleanupRoutine(cfg.Session.SweepInterval)
		p.refreshes = refreshes

		p.principals = principalpg.New(p.db)

		sessions := sessionpg.New(p.db, sessionpg.Config{
			TTL:          cfg.Session.TTL,
			QueryTimeout: cfg.Session.QueryTimeout,
		})
		sessions.StartSweepRoutine(cfg.Session.SweepInterval)
		p.Sessions = sessions
	default:
		revocations := revocation.NewMemoryStore()
		revocations.StartCleanupRoutine(cfg.Session.SweepInterval)
		p.revocations = revocations

		refreshes := refresh.NewMemoryStore()
		refreshes.StartCleanupRoutine(cfg.Session.SweepInterval)
		p.refreshes = refreshes

		p.principals = principal.NewMemoryStore()

		sessions := session.NewMemoryStore(cfg.Session.TTL)
		sessions.StartSweepRoutine(cfg.Session.SweepInterval)
		p.Sessions = sessions
	}

	p.onClose(p.revocations.Close)
	p.onClose(p.refreshes.Close)
	p.onClose(p.principals.Close)
	p.onClose(p.Sessions.Close)

	return nil
}

func needsDatabase(cfg *Config) bool {
	return cfg.Session.Backend == BackendPostgres || cfg.Audit.Backend == "postgres"
}

func openDatabase(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

// Close releases all resources in reverse construction order. The platform
// is unusable afterwards.
func (p *Platform) Close() error {
	p.Health.SetDraining()
	return p.closeAll()
}

func (p *Platform) closeAll() error {
	var firstErr error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.closers = nil
	return firstErr
}

func (p *Platform) onClose(fn func() error) {
	p.closers = append(p.closers, fn)
}
