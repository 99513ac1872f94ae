package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"visadoc-backend/internal/analysis"
	"visadoc-backend/internal/checklist"
	"visadoc-backend/internal/followup"
	"visadoc-backend/internal/kv"
	"visadoc-backend/internal/llm"
	"visadoc-backend/internal/llm/gemini"
	"visadoc-backend/internal/llm/openai"
	"visadoc-backend/internal/session"
	"visadoc-backend/internal/shared/config"
	"visadoc-backend/internal/shared/server"
	"visadoc-backend/internal/shared/storage/db"
	"visadoc-backend/internal/workspace"
)

// App holds shared dependencies.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Store     kv.Store
	LLM       llm.Client
	Pipeline  *analysis.Pipeline
	Sessions  *session.Manager
	Workspace *workspace.Handler

	closers []func() error
}

// Build prepares dependencies and routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	app := &App{Config: cfg}

	client, err := BuildLLM(cfg)
	if err != nil {
		if !isDevLike(cfg.Env) {
			return nil, err
		}
		log.Printf("bootstrap: llm unavailable; analysis requests will fail: %v", err)
		client = llm.PlaceholderClient{}
	}
	app.LLM = client

	if err := buildStore(ctx, app); err != nil {
		if !isDevLike(cfg.Env) {
			app.Close()
			return nil, err
		}
		log.Printf("bootstrap: checklist store %s failed; using in-memory store: %v", cfg.ChecklistStore, err)
		app.Store = kv.NewMemory()
	}

	app.Pipeline = analysis.NewPipeline(app.LLM, cfg.AnalysisTimeout)
	app.Sessions = session.NewManager(session.Deps{
		Analyzer:   app.Pipeline,
		Translator: &followup.Translator{LLM: app.LLM, Timeout: cfg.FollowupTimeout},
		Answerer:   &followup.Answerer{LLM: app.LLM, Timeout: cfg.FollowupTimeout},
		Store:      checklist.NewStore(app.Store),
	}, cfg.SessionIdleTTL)
	app.Workspace = workspace.NewHandler(app.Sessions, cfg.CORSAllowOrigin)
	app.Router = server.NewRouter(cfg, app.Workspace)

	return app, nil
}

// BuildLLM returns the client for LLM_PROVIDER with transport retries.
func BuildLLM(cfg config.Config) (llm.Client, error) {
	var (
		completer llm.Completer
		err       error
	)
	switch cfg.LLMProvider {
	case config.ProviderNone:
		return llm.PlaceholderClient{}, nil
	case config.ProviderOpenAI:
		completer, err = openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, openai.Options{
			Timeout:             cfg.LLMTimeout,
			NoTemperatureModels: cfg.LLMNoTempModels,
		})
	default:
		completer, err = gemini.NewClient(cfg.GeminiAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	}
	if err != nil {
		return nil, err
	}
	return llm.NewClient(llm.WithRetry(completer)), nil
}

func buildStore(ctx context.Context, app *App) error {
	cfg := app.Config
	switch cfg.ChecklistStore {
	case config.StoreMemory:
		app.Store = kv.NewMemory()
	case config.StoreRedis:
		store, err := kv.NewRedisStore(cfg.RedisURL, cfg.RedisTTL)
		if err != nil {
			return err
		}
		app.Store = store
		app.closers = append(app.closers, store.Close)
	case config.StoreSQLite, config.StorePostgres:
		sqlDB, driver, err := OpenDB(ctx, cfg, db.OptionsFromEnv(DefaultOptionsFor(cfg)))
		if err != nil {
			return err
		}
		app.closers = append(app.closers, sqlDB.Close)
		if err := db.RunMigrations(ctx, sqlDB, driver); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		app.DB = sqlDB
		app.Store = kv.NewSQLStore(sqlDB, driver)
	default:
		store, err := kv.NewFileStore(filepath.Join(cfg.LocalStoreDir, "checklists"))
		if err != nil {
			return err
		}
		app.Store = store
	}
	return nil
}

// DefaultOptionsFor picks pool defaults for the configured SQL backend.
func DefaultOptionsFor(cfg config.Config) db.Options {
	if cfg.ChecklistStore == config.StoreSQLite {
		return db.DefaultSQLiteOptions()
	}
	return db.DefaultServerOptions()
}

// OpenDB connects to the SQL backend named by CHECKLIST_STORE and reports
// the driver used.
func OpenDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, string, error) {
	switch cfg.ChecklistStore {
	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, "", fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		sqlDB, err := db.Connect(ctx, db.DriverSQLite, db.SQLiteDSN(cfg.SQLitePath), opts)
		return sqlDB, db.DriverSQLite, err
	case config.StorePostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, "", errors.New("DATABASE_URL is required")
		}
		sqlDB, err := db.Connect(ctx, db.DriverPostgres, cfg.DatabaseURL, opts)
		return sqlDB, db.DriverPostgres, err
	default:
		return nil, "", fmt.Errorf("checklist store %q is not SQL-backed", cfg.ChecklistStore)
	}
}

// Close stops sessions and releases storage connections.
func (a *App) Close() error {
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
