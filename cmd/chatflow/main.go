// Package main is the entry point for the chatflow backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/chatflow-ai/chatflow/pkg/api"
	"github.com/chatflow-ai/chatflow/pkg/config"
	"github.com/chatflow-ai/chatflow/pkg/logging"
	"github.com/chatflow-ai/chatflow/pkg/registry"
	"github.com/chatflow-ai/chatflow/pkg/services"
	"github.com/chatflow-ai/chatflow/pkg/storage"
)

var (
	// Command-line flags
	configPath = flag.String("config", "", "Path to config file")
	version    = flag.Bool("version", false, "Print version information")
)

// Version information
const (
	AppVersion = "0.1.0"
	AppName    = "chatflow"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Application failed: %v", err)
		}
	case <-stop:
		log.Println("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			log.Fatalf("Error during shutdown: %v", err)
		}
	}
}

// loadConfig loads the configuration from the specified path or falls back
// to standard locations, creating a default file on first run.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config

	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", *configPath, err)
		}
	} else {
		locations := []string{
			"./config.json",
			"./config.yaml",
			"./configs/config.json",
			filepath.Join(os.Getenv("HOME"), ".chatflow", "config.json"),
			"/etc/chatflow/config.json",
		}

		for _, path := range locations {
			if loadedCfg, err := config.LoadConfig(path); err == nil {
				cfg = loadedCfg
				break
			}
		}

		if cfg == nil {
			cfg = config.DefaultConfig()

			defaultPath := filepath.Join(os.Getenv("HOME"), ".chatflow", "config.json")
			if err := config.SaveConfig(cfg, defaultPath); err != nil {
				return nil, fmt.Errorf("failed to save default config: %w", err)
			}

			fmt.Printf("Created default configuration at %s\n", defaultPath)
		}
	}

	overrideConfigFromEnv(cfg)

	return cfg, nil
}

// overrideConfigFromEnv overrides configuration values from environment variables
func overrideConfigFromEnv(cfg *config.Config) {
	// Server configuration
	if host := os.Getenv("CHATFLOW_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("CHATFLOW_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	// Storage configuration
	if storageType := os.Getenv("CHATFLOW_STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}

	// Redis configuration
	if addr := os.Getenv("CHATFLOW_REDIS_ADDRESS"); addr != "" {
		cfg.Storage.Redis.Address = addr
	}
	if password := os.Getenv("CHATFLOW_REDIS_PASSWORD"); password != "" {
		cfg.Storage.Redis.Password = password
	}

	// PostgreSQL configuration
	if host := os.Getenv("CHATFLOW_POSTGRES_HOST"); host != "" {
		cfg.Storage.Postgres.Host = host
	}
	if port := os.Getenv("CHATFLOW_POSTGRES_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Storage.Postgres.Port = p
		}
	}
	if database := os.Getenv("CHATFLOW_POSTGRES_DATABASE"); database != "" {
		cfg.Storage.Postgres.Database = database
	}
	if user := os.Getenv("CHATFLOW_POSTGRES_USER"); user != "" {
		cfg.Storage.Postgres.User = user
	}
	if password := os.Getenv("CHATFLOW_POSTGRES_PASSWORD"); password != "" {
		cfg.Storage.Postgres.Password = password
	}
	if sslMode := os.Getenv("CHATFLOW_POSTGRES_SSL_MODE"); sslMode != "" {
		cfg.Storage.Postgres.SSLMode = sslMode
	}

	// DynamoDB configuration
	if region := os.Getenv("CHATFLOW_DYNAMODB_REGION"); region != "" {
		cfg.Storage.DynamoDB.Region = region
	}
	if endpoint := os.Getenv("CHATFLOW_DYNAMODB_ENDPOINT"); endpoint != "" {
		cfg.Storage.DynamoDB.Endpoint = endpoint
	}
	if tablePrefix := os.Getenv("CHATFLOW_DYNAMODB_TABLE_PREFIX"); tablePrefix != "" {
		cfg.Storage.DynamoDB.TablePrefix = tablePrefix
	}

	// Proxy configuration
	if upstream := os.Getenv("CHATFLOW_PROXY_UPSTREAM"); upstream != "" {
		cfg.Proxy.Upstream = upstream
	}

	// CORS
	if origin := os.Getenv("CHATFLOW_CLIENT_ORIGIN"); origin != "" {
		cfg.ClientOrigin = origin
	}
}

// App represents the chatflow application
type App struct {
	config          *config.Config
	logger          *zap.Logger
	server          *api.Server
	storageProvider storage.StorageProvider
	retention       *services.RetentionService
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	storageProvider, err := storage.NewProvider(storage.ProviderConfig{
		Type: storage.ProviderType(cfg.Storage.Type),
		Redis: &storage.RedisProviderConfig{
			Address:  cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		},
		Postgres: &storage.PostgresProviderConfig{
			Host:     cfg.Storage.Postgres.Host,
			Port:     cfg.Storage.Postgres.Port,
			Database: cfg.Storage.Postgres.Database,
			User:     cfg.Storage.Postgres.User,
			Password: cfg.Storage.Postgres.Password,
			SSLMode:  cfg.Storage.Postgres.SSLMode,
		},
		DynamoDB: &storage.DynamoDBProviderConfig{
			Region:      cfg.Storage.DynamoDB.Region,
			Endpoint:    cfg.Storage.DynamoDB.Endpoint,
			TablePrefix: cfg.Storage.DynamoDB.TablePrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage provider: %w", err)
	}

	if err := storageProvider.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage provider: %w", err)
	}
	logger.Info("storage initialized", zap.String("type", cfg.Storage.Type))

	flowRegistry := registry.NewFlowRegistry(storageProvider.GetFlowStore())
	contacts := storageProvider.GetContactStore()
	messages := storageProvider.GetMessageStore()

	messenger := &services.LogMessenger{Logger: logger}
	responder := services.EchoResponder{}

	engine := services.NewEngineService(flowRegistry, contacts, messages, messenger, responder, logger)
	broadcast := services.NewBroadcastService(contacts, messages, messenger, logger)
	dashboard := services.NewDashboardService(contacts, messages)

	var retention *services.RetentionService
	if cfg.Retention.Enabled {
		retention = services.NewRetentionService(messages, cfg.Retention.Schedule, cfg.Retention.MaxAgeDays, logger)
	}

	server := api.NewServer(cfg, flowRegistry, contacts, engine, broadcast, dashboard, logger)

	return &App{
		config:          cfg,
		logger:          logger,
		server:          server,
		storageProvider: storageProvider,
		retention:       retention,
	}, nil
}

// Start starts the application
func (a *App) Start() error {
	if a.retention != nil {
		if err := a.retention.Start(); err != nil {
			return fmt.Errorf("failed to start retention sweep: %w", err)
		}
	}
	return a.server.Start()
}

// Stop stops the application gracefully
func (a *App) Stop(ctx context.Context) error {
	if a.retention != nil {
		a.retention.Stop()
	}
	if err := a.server.Stop(ctx); err != nil {
		return err
	}
	return a.storageProvider.Close()
}
