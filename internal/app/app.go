// Package app wires configuration into the services shared by the API
// server, the worker and the operator CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/pdfmate/internal/api"
	"github.com/nikhilbhutani/pdfmate/internal/api/handlers"
	"github.com/nikhilbhutani/pdfmate/internal/auth"
	"github.com/nikhilbhutani/pdfmate/internal/billing"
	"github.com/nikhilbhutani/pdfmate/internal/cache"
	"github.com/nikhilbhutani/pdfmate/internal/chat"
	"github.com/nikhilbhutani/pdfmate/internal/config"
	"github.com/nikhilbhutani/pdfmate/internal/database"
	"github.com/nikhilbhutani/pdfmate/internal/deletion"
	"github.com/nikhilbhutani/pdfmate/internal/document"
	"github.com/nikhilbhutani/pdfmate/internal/embedding"
	"github.com/nikhilbhutani/pdfmate/internal/ingestion"
	"github.com/nikhilbhutani/pdfmate/internal/llm"
	"github.com/nikhilbhutani/pdfmate/internal/quota"
	"github.com/nikhilbhutani/pdfmate/internal/storage"
	"github.com/nikhilbhutani/pdfmate/internal/store"
	"github.com/nikhilbhutani/pdfmate/internal/vectorstore"
)

type App struct {
	Config    *config.Config
	DB        *sql.DB // nil when running on the in-memory store
	Redis     *redis.Client
	Store     *store.Store
	Objects   storage.ObjectStore
	Vectors   vectorstore.VectorStore
	Embedder  embedding.Embedder
	LLM       llm.Gateway
	Admins    auth.StaticAdmins
	Plans     *billing.Resolver
	Billing   *billing.Service
	Quota     *quota.Checker
	Ingestion *ingestion.Coordinator
	Deletion  *deletion.Coordinator
	Chat      *chat.Service

	closers []func()
}

// New connects every backend named in cfg. On error, whatever was already
// opened is closed.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Admins: auth.NewStaticAdmins(cfg.Auth.AdminIDs...)}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) (err error) {
	cfg := a.Config

	if err := a.openRecords(ctx); err != nil {
		return err
	}
	a.openRedis(ctx)

	maxBlob := int64(cfg.Ingest.MaxBlobMB) << 20
	switch cfg.Storage.Backend {
	case "supabase":
		a.Objects = storage.NewSupabaseStore(cfg.Storage, maxBlob)
	default:
		s3, err := storage.NewS3Store(ctx, cfg.Storage, maxBlob)
		if err != nil {
			return err
		}
		a.Objects = s3
	}

	if err := a.openVectors(ctx); err != nil {
		return err
	}

	a.LLM = llm.NewGateway(cfg.LLM)
	if a.Embedder, err = embedding.New(cfg.Embedding, a.LLM); err != nil {
		return err
	}

	var gw billing.Gateway
	if cfg.Billing.StripeSecretKey != "" {
		gw = billing.NewStripeGateway(cfg.Billing.StripeSecretKey, cfg.Billing.StripeWebhookSecret)
	} else {
		slog.Warn("STRIPE_SECRET_KEY not set, billing sessions and webhooks are disabled")
	}
	var planCache billing.Cache
	if a.Redis != nil {
		planCache = cache.NewCache(a.Redis)
	}
	a.Plans = billing.NewResolver(a.Store.Users, gw, planCache, cfg.Billing.PlanCacheTTL)
	a.Billing = billing.NewService(a.Plans, gw, a.Store.Users, cfg.Billing.AppURL, cfg.Billing.Production)
	a.Quota = quota.NewChecker(a.Store.Files, a.Plans)

	observers := ingestion.Observers{ingestion.LogObserver{}}
	if a.Redis != nil {
		observers = append(observers, cache.NewStatusPublisher(a.Redis))
	}
	a.Ingestion = ingestion.NewCoordinator(ingestion.Deps{
		Files:    a.Store.Files,
		Objects:  a.Objects,
		Loader:   document.NewPDFLoader(),
		Embedder: a.Embedder,
		Vectors:  a.Vectors,
		Plans:    a.Plans,
		Admins:   a.Admins,
		Observer: observers,
	})
	a.Deletion = deletion.NewCoordinator(a.Store.Files, a.Objects, a.Vectors)
	a.Chat = chat.NewService(a.Store, a.Embedder, a.Vectors, a.LLM, cfg.Chat.HistorySize, cfg.Chat.ContextPages)
	return nil
}

func (a *App) openRecords(ctx context.Context) error {
	if a.Config.Database.URL == "" {
		slog.Warn("DATABASE_URL not set, using the in-memory record store")
		a.Store = store.NewMemory()
		return nil
	}
	pool, err := database.NewPool(ctx, a.Config.Database)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pool.Close)
	a.DB = database.OpenDB(pool)
	a.Store = store.NewPostgres(a.DB)
	return nil
}

// openRedis is best effort: without Redis the plan cache and status push
// are skipped, and queue mode will fail at dispatch.
func (a *App) openRedis(ctx context.Context) {
	rdb := cache.NewClient(a.Config.Redis)
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without cache", "error", err)
		rdb.Close()
		return
	}
	a.Redis = rdb
	a.closers = append(a.closers, func() { rdb.Close() })
}

func (a *App) openVectors(ctx context.Context) error {
	switch a.Config.Vector.Backend {
	case "qdrant":
		qs, client, err := vectorstore.NewQdrantStore(a.Config.Vector)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { client.Close() })
		if err := qs.EnsureCollection(ctx, a.Config.Embedding.Dimensions); err != nil {
			return err
		}
		a.Vectors = qs
	default:
		if a.DB == nil {
			return fmt.Errorf("pgvector backend needs DATABASE_URL")
		}
		a.Vectors = vectorstore.NewPgVectorStore(a.DB)
	}
	return nil
}

// Checks are the readiness probes for the backends this process opened.
func (a *App) Checks() map[string]handlers.Check {
	checks := map[string]handlers.Check{}
	if a.DB != nil {
		checks["database"] = a.DB.PingContext
	}
	if a.Redis != nil {
		checks["redis"] = cache.NewCache(a.Redis).Ping
	}
	return checks
}

func (a *App) Services() api.Services {
	return api.Services{
		Store:     a.Store,
		Objects:   a.Objects,
		Ingestion: a.Ingestion,
		Deletion:  a.Deletion,
		Quota:     a.Quota,
		Plans:     a.Plans,
		Billing:   a.Billing,
		Chat:      a.Chat,
		Admins:    a.Admins,
		Checks:    a.Checks(),
	}
}

// Close releases backends in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
