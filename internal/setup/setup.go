package setup

import (
	"context"
	"fmt"
	"log"

	"github.com/robalyx/sentinel/internal/guildconfig"
	"github.com/robalyx/sentinel/internal/setup/config"
	"github.com/robalyx/sentinel/internal/setup/logger"
	"github.com/robalyx/sentinel/internal/storage"
	"go.uber.org/zap"
)

// App bundles all core dependencies needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config        *config.Config     // Application configuration
	Logger        *zap.Logger        // Main application logger
	StorageLogger *zap.Logger        // Storage-specific logger
	Backend       storage.Backend    // Settings document backend
	Store         *guildconfig.Store // Guild settings cache
	LogManager    *logger.Manager    // Log management system
	tracing       bool               // Whether spans are exported
}

// InitializeApp bootstraps all application dependencies in the correct order.
// The config is read from configPath when it is set and searched for otherwise.
func InitializeApp(ctx context.Context, logDir, configPath string) (*App, error) {
	// Load app configuration
	var (
		cfg *config.Config
		err error
	)

	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, _, err = config.LoadConfig()
	}

	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := logger.NewManager(logDir, &cfg.Debug)
	app := &App{Config: cfg, LogManager: logManager}

	app.Logger, app.StorageLogger, err = logManager.GetLoggers()
	if err != nil {
		app.Cleanup(ctx)
		return nil, err
	}

	app.tracing = configureTracing(&cfg.Telemetry, app.Logger)

	app.Backend, err = storage.Open(ctx, &cfg.Storage, app.StorageLogger)
	if err != nil {
		app.Logger.Error("Failed to open storage backend", zap.Error(err))
		app.Cleanup(ctx)
		return nil, err
	}

	app.Store, err = guildconfig.NewStore(ctx, app.Backend, app.Logger)
	if err != nil {
		app.Logger.Error("Failed to load guild settings", zap.Error(err))
		app.Cleanup(ctx)
		return nil, fmt.Errorf("failed to load guild settings: %w", err)
	}

	return app, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
// It also releases a partially initialized App.
func (s *App) Cleanup(ctx context.Context) {
	if s.tracing {
		shutdownTracing(ctx, s.Logger)
	}

	// Close storage connections
	if s.Backend != nil {
		if err := s.Backend.Close(); err != nil {
			s.Logger.Error("Failed to close storage backend", zap.Error(err))
		}
	}

	// Sync buffered logs before shutdown
	for _, l := range []*zap.Logger{s.Logger, s.StorageLogger} {
		if l == nil {
			continue
		}

		if err := l.Sync(); err != nil {
			log.Printf("Failed to sync logger: %v", err)
		}
	}

	if err := s.LogManager.Close(); err != nil {
		log.Printf("Failed to close log files: %v", err)
	}
}
