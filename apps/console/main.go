package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"brims/libs/mailer"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	defaultBackendTimeout      = 10 * time.Second
	defaultBackendRatePerSec   = 10.0
	defaultWorkspaceIdleTTL    = 2 * time.Hour
	workspacePruneInterval     = time.Minute
	journalWriteTimeout        = 3 * time.Second
	recentJournalEntries       = 10
	trustedProxyLoopbackIPv4   = "127.0.0.1"
	trustedProxyLoopbackIPv6   = "::1"
	minSigningSecretCharacters = 16
)

type Config struct {
	Addr                 string
	Env                  string
	AppSigningSecret     string
	BackendBaseURL       string
	BackendAPIToken      string
	BackendTimeout       time.Duration
	BackendRatePerSecond float64
	DatabaseURL          string
	ResendAPIKey         string
	MailerFromAddresses  map[string]string
	ExportEmailTo        string
	WorkspaceIdleTTL     time.Duration
	SettingsFile         string
	Settings             consoleSettings
}

type App struct {
	cfg *Config
	db  *sql.DB
	log *slog.Logger

	backend    *BackendClient
	mailer     *mailer.Mailer
	journal    actionJournal
	templates  *consoleTemplateRenderer
	workspaces *workspaceRegistry

	// hooks backed by the BRIMS API client, swapped in tests
	consoleListPendingUsers       func(ctx context.Context) ([]PendingUser, error)
	consoleApproveUser            func(ctx context.Context, id string) error
	consoleRejectUser             func(ctx context.Context, id, reason string) error
	consoleListIncidents          func(ctx context.Context) ([]Incident, error)
	consoleUpdateIncidentStatus   func(ctx context.Context, id, status, remarks string) (*Incident, error)
	consoleArchiveIncident        func(ctx context.Context, id, reason string) (*Incident, error)
	consoleUnarchiveIncident      func(ctx context.Context, id, reason string) (*Incident, error)
	consoleListPopulation         func(ctx context.Context) ([]PopulationRecord, error)
	consoleListIncidentPopulation func(ctx context.Context, incidentID string) ([]PopulationRecord, error)
	consoleAddIncidentPopulation  func(ctx context.Context, incidentID string, entry PopulationEntry) (*PopulationRecord, error)
	consoleGetProfile             func(ctx context.Context) (*Profile, error)
	consoleUpdateProfile          func(ctx context.Context, profile Profile) (*Profile, error)
}

type apiError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string][]string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if messages := fieldMessages(e.Fields); len(messages) > 0 {
		return strings.Join(messages, " ")
	}
	return fmt.Sprintf("backend request failed with status %d", e.Status)
}

// UserMessage prefers field errors over the generic message because
// validation responses pair a vague message with precise field errors.
func (e *apiError) UserMessage() string {
	if messages := fieldMessages(e.Fields); len(messages) > 0 {
		return strings.Join(messages, " ")
	}
	return e.Message
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newApp wires every collaborator from cfg. The database is optional; without
// it the action journal only logs.
func newApp(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	app := &App{
		cfg:       cfg,
		log:       logger,
		backend:   NewBackendClient(cfg.BackendBaseURL, cfg.BackendAPIToken, cfg.BackendTimeout, cfg.BackendRatePerSecond),
		templates: newConsoleTemplateRenderer(cfg.Env),
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("database ping: %w", err)
		}
		app.db = db
		app.journal = newSQLJournal(db)
		logger.Info("action journal initialized", "store", "postgres")
	} else {
		app.journal = newLogJournal(logger, recentJournalEntries*5)
		logger.Info("action journal initialized", "store", "log")
	}

	var mailProvider mailer.Provider
	if cfg.ResendAPIKey != "" {
		mailProvider = mailer.NewResendProvider(cfg.ResendAPIKey)
		logger.Info("mailer initialized", "provider", "resend")
	} else {
		mailProvider = mailer.NewLogProvider(logger)
		logger.Info("mailer initialized", "provider", "log")
	}
	app.mailer = mailer.New(mailProvider, cfg.MailerFromAddresses[mailProvider.Name()])

	app.wireBackendHooks(app.backend)
	app.workspaces = newWorkspaceRegistry(cfg.WorkspaceIdleTTL, app.newWorkspace)
	return app, nil
}

func (a *App) wireBackendHooks(backend *BackendClient) {
	a.consoleListPendingUsers = backend.ListPendingUsers
	a.consoleApproveUser = backend.ApproveUser
	a.consoleRejectUser = backend.RejectUser
	a.consoleListIncidents = backend.ListIncidents
	a.consoleUpdateIncidentStatus = backend.UpdateIncidentStatus
	a.consoleArchiveIncident = backend.ArchiveIncident
	a.consoleUnarchiveIncident = backend.UnarchiveIncident
	a.consoleListPopulation = backend.ListPopulation
	a.consoleListIncidentPopulation = backend.ListIncidentPopulation
	a.consoleAddIncidentPopulation = backend.AddIncidentPopulation
	a.consoleGetProfile = backend.GetProfile
	a.consoleUpdateProfile = backend.UpdateProfile
}

func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *App) newRouter() (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies([]string{trustedProxyLoopbackIPv4, trustedProxyLoopbackIPv6}); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery())
	r.Use(a.loggingMiddleware())

	r.GET("/healthz", a.healthHandler)
	r.NoRoute(func(c *gin.Context) {
		writeAPIError(c, &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "route not found"})
	})
	if err := a.registerConsoleRoutes(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (a *App) serve(ctx context.Context) error {
	if a.db != nil {
		if err := a.runMigrations(ctx); err != nil {
			return err
		}
	}

	pruneCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.workspaces.startPruning(pruneCtx, workspacePruneInterval, a.log)

	r, err := a.newRouter()
	if err != nil {
		return err
	}

	a.log.Info(
		"runtime configuration",
		"env",
		a.cfg.Env,
		"addr",
		a.cfg.Addr,
		"backend",
		a.cfg.BackendBaseURL,
		"workspace_idle_ttl",
		a.cfg.WorkspaceIdleTTL.String(),
	)
	a.log.Info("starting console", "addr", a.cfg.Addr)
	return r.Run(a.cfg.Addr)
}

func loadConfig() (*Config, error) {
	secret := strings.TrimSpace(os.Getenv("APP_SIGNING_SECRET"))
	if len(secret) < minSigningSecretCharacters {
		return nil, fmt.Errorf("APP_SIGNING_SECRET must be at least %d characters", minSigningSecretCharacters)
	}

	backendURL := strings.TrimRight(strings.TrimSpace(os.Getenv("BACKEND_BASE_URL")), "/")
	if backendURL == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL must be configured")
	}
	parsed, err := url.Parse(backendURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL must be an absolute http(s) URL")
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	cfg := &Config{
		Addr:                 valueOrDefault("GIN_ADDR", ":8080"),
		Env:                  env,
		AppSigningSecret:     secret,
		BackendBaseURL:       backendURL,
		BackendAPIToken:      strings.TrimSpace(os.Getenv("BACKEND_API_TOKEN")),
		BackendTimeout:       defaultBackendTimeout,
		BackendRatePerSecond: defaultBackendRatePerSec,
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ResendAPIKey:         strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		MailerFromAddresses: map[string]string{
			"resend": valueOrDefault("MAILER_FROM_ADDRESS_RESEND", "noreply@mail.brims.ph"),
			"log":    valueOrDefault("MAILER_FROM_ADDRESS_LOG", "noreply@brims.local"),
		},
		ExportEmailTo:    valueOrDefault("EXPORT_EMAIL_TO", "ops@brims.local"),
		WorkspaceIdleTTL: defaultWorkspaceIdleTTL,
		SettingsFile:     strings.TrimSpace(os.Getenv("CONSOLE_CONFIG_FILE")),
	}

	if raw := strings.TrimSpace(os.Getenv("BACKEND_TIMEOUT")); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return nil, fmt.Errorf("BACKEND_TIMEOUT must be a positive duration")
		}
		cfg.BackendTimeout = timeout
	}

	if raw := strings.TrimSpace(os.Getenv("BACKEND_RATE_PER_SECOND")); raw != "" {
		perSecond, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("BACKEND_RATE_PER_SECOND must be a valid number")
		}
		if perSecond < 0 {
			return nil, fmt.Errorf("BACKEND_RATE_PER_SECOND must be >= 0")
		}
		cfg.BackendRatePerSecond = perSecond
	}

	if raw := strings.TrimSpace(os.Getenv("WORKSPACE_IDLE_TTL")); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl < time.Minute {
			return nil, fmt.Errorf("WORKSPACE_IDLE_TTL must be a duration of at least 1m")
		}
		cfg.WorkspaceIdleTTL = ttl
	}

	settings, err := loadConsoleSettings(cfg.SettingsFile, defaultConsoleSettings())
	if err != nil {
		return nil, err
	}
	cfg.Settings = settings

	return cfg, nil
}

func loadDotEnvFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.Trim(strings.TrimSpace(line[idx+1:]), "\"")
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func (a *App) runMigrations(ctx context.Context) error {
	if a.db == nil {
		return errors.New("DATABASE_URL must be configured to run migrations")
	}
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return err
	}

	if _, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		var exists bool
		if err := a.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, file).Scan(&exists); err != nil {
			return err
		}
		if exists {
			continue
		}

		content, err := migrationFiles.ReadFile(filepath.ToSlash(filepath.Join("migrations", file)))
		if err != nil {
			return err
		}

		tx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, file); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		a.log.Info("applied migration", "file", file)
	}

	return nil
}

func (a *App) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		workspaceID := ""
		if ws, ok := c.Get(workspaceContextKey); ok {
			if stored, castOK := ws.(*workspace); castOK {
				workspaceID = stored.id
			}
		}
		a.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"workspace", workspaceID,
		)
	}
}

// healthHandler reports degraded when the journal database stops answering.
func (a *App) healthHandler(c *gin.Context) {
	if a.db != nil {
		if err := a.db.PingContext(c.Request.Context()); err != nil {
			writeAPIError(c, &apiError{Status: http.StatusServiceUnavailable, Code: "database_unavailable", Message: err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "workspaces": a.workspaces.Len()})
}

func writeAPIError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Code, "message": apiErr.Error()})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
}
