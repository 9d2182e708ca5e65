// Package app wires the application: configuration, storage, model provider,
// prompt and tool assembly, and the conversation sync layer.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/meetnote/meetnote/internal/chat"
	"github.com/meetnote/meetnote/internal/config"
	"github.com/meetnote/meetnote/internal/conversation"
	"github.com/meetnote/meetnote/internal/database"
	"github.com/meetnote/meetnote/internal/generate"
	"github.com/meetnote/meetnote/internal/notes"
	"github.com/meetnote/meetnote/internal/prompt"
	"github.com/meetnote/meetnote/internal/template"
	"github.com/meetnote/meetnote/internal/tools"
)

// App holds the wired application.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *chat.Store
	Sync      *conversation.Sync
	Transport *generate.Transport

	db *sql.DB
}

// New builds the application from configuration. The returned App must be
// closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := chat.NewStore(db, logger)

	renderer, err := template.New()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	streamer := generate.NewGenkitStreamer(g, cfg.FullModelName(), logger)
	limiter := rate.NewLimiter(rate.Limit(cfg.GenerateRPS), cfg.GenerateBurst)
	transport := generate.NewTransport(streamer, limiter, logger)

	// The notes directory is empty until the host application links its own
	// store; the chat core degrades to context-free prompts.
	directory := notes.Empty{}

	prompts := prompt.NewAssembler(directory, renderer, logger)
	license := tools.StaticLicense{Key: cfg.LicenseKey}
	toolAssembler := tools.NewAssembler(cfg.EnabledProviders(), cfg.Premium.URL, license, directory, logger)

	sync := conversation.NewSync(store, transport, prompts, toolAssembler, conversation.Settings{
		Model:          cfg.FullModelName(),
		Endpoint:       cfg.Endpoint,
		ConnectionType: cfg.ConnectionType,
		MaxSteps:       cfg.MaxSteps,
	}, logger)

	logger.Info("application initialized",
		"model", cfg.FullModelName(),
		"database", cfg.DatabasePath,
		"tool_providers", len(cfg.EnabledProviders()))

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Sync:      sync,
		Transport: transport,
		db:        db,
	}, nil
}

// Close releases the application's resources.
func (a *App) Close() error {
	a.Transport.Cleanup()
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// provideGenkit initializes Genkit with the configured model provider plugin.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderGoogleAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))

	default: // openai
		plugin := &openai.OpenAI{}
		if cfg.Endpoint != "" {
			plugin.Opts = append(plugin.Opts, option.WithBaseURL(cfg.Endpoint))
		}
		g = genkit.Init(ctx, genkit.WithPlugins(plugin))
	}

	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}
