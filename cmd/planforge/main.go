package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/planforge/planforge/internal/api"
	"github.com/planforge/planforge/internal/flow"
	"github.com/planforge/planforge/internal/genai"
	"github.com/planforge/planforge/internal/lockfile"
	"github.com/planforge/planforge/internal/rag"
	"github.com/planforge/planforge/internal/store"
	"github.com/planforge/planforge/internal/util"
	"github.com/planforge/planforge/internal/webanalyze"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for PlanForge state data
	DefaultStateDir = "/var/lib/planforge"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "planforge.db"
	// DefaultHealthInterval is the default provider health probe interval
	DefaultHealthInterval = 60 * time.Second
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Acquire the state directory lock to prevent concurrent instances
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Build the storage backend
	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Build LLM providers and the reliability wrapper
	providers, err := buildProviders(flags)
	if err != nil {
		slog.Error("Failed to initialize LLM providers", "error", err)
		os.Exit(1)
	}
	health := genai.NewHealthRegistry(providerNames(providers), *flags.healthInterval)
	health.SetLogger(st)
	go health.Run(ctx, providers)
	reliable := genai.NewReliable(providers, health)

	// Build the orchestrator and its collaborators
	primary := providers[0].Client
	orchOpts := []flow.OrchestratorOption{
		flow.WithPlanGenerator(reliable),
		flow.WithStore(st),
	}
	if *flags.embeddingModel != "" {
		orchOpts = append(orchOpts, flow.WithDocStore(rag.NewStore(primary)))
	}
	orchestrator := flow.NewOrchestrator(reliable, orchOpts...)

	// Start the API server
	server := api.NewServer(orchestrator, *flags.apiAddr,
		api.WithAnalyzer(webanalyze.NewAnalyzer()),
		api.WithStore(st),
		api.WithHealthRegistry(health),
	)

	slog.Info("Bootstrapping PlanForge with configured modules",
		"providers", len(providers),
		"store", store.DetectDSNType(*flags.dbDSN),
		"api_addr", *flags.apiAddr)
	if err := server.Run(ctx); err != nil {
		slog.Error("PlanForge failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("PlanForge exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	StateDir        string
	GenAIKey        string
	GenAIBaseURL    string
	GenAIModel      string
	EmbeddingModel  string
	FallbackKey     string
	FallbackBaseURL string
	FallbackModel   string
	APIAddr         string
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	genaiKey       *string
	genaiBaseURL   *string
	genaiModel     *string
	embeddingModel *string
	apiAddr        *string
	healthInterval *time.Duration

	// fallback provider comes from the environment only
	fallbackKey     string
	fallbackBaseURL string
	fallbackModel   string
}

// initializeLogger sets up structured logging. PLANFORGE_DEBUG=true enables
// debug-level output.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("PLANFORGE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("PLANFORGE_STATE_DIR"),
		GenAIKey:        os.Getenv("GENAI_API_KEY"),
		GenAIBaseURL:    os.Getenv("GENAI_BASE_URL"),
		GenAIModel:      os.Getenv("GENAI_MODEL"),
		EmbeddingModel:  os.Getenv("GENAI_EMBEDDING_MODEL"),
		FallbackKey:     os.Getenv("GENAI_FALLBACK_API_KEY"),
		FallbackBaseURL: os.Getenv("GENAI_FALLBACK_BASE_URL"),
		FallbackModel:   os.Getenv("GENAI_FALLBACK_MODEL"),
		APIAddr:         os.Getenv("API_ADDR"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No PLANFORGE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"PLANFORGE_STATE_DIR", config.StateDir,
		"GENAI_API_KEY_SET", config.GenAIKey != "",
		"GENAI_BASE_URL", config.GenAIBaseURL,
		"GENAI_MODEL", config.GenAIModel,
		"GENAI_FALLBACK_SET", config.FallbackKey != "",
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for PlanForge data (overrides $PLANFORGE_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN or SQLite path (overrides $DATABASE_URL)"),
		genaiKey:       flag.String("genai-api-key", config.GenAIKey, "LLM provider API key (overrides $GENAI_API_KEY)"),
		genaiBaseURL:   flag.String("genai-base-url", config.GenAIBaseURL, "LLM provider base URL (overrides $GENAI_BASE_URL)"),
		genaiModel:     flag.String("genai-model", config.GenAIModel, "chat model identifier (overrides $GENAI_MODEL)"),
		embeddingModel: flag.String("embedding-model", config.EmbeddingModel, "embedding model for document retrieval (overrides $GENAI_EMBEDDING_MODEL)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		healthInterval: flag.Duration("health-interval", DefaultHealthInterval, "LLM provider health probe interval"),

		fallbackKey:     config.FallbackKey,
		fallbackBaseURL: config.FallbackBaseURL,
		fallbackModel:   config.FallbackModel,
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"genaiKeySet", *flags.genaiKey != "",
		"genaiBaseURL", *flags.genaiBaseURL,
		"genaiModel", *flags.genaiModel,
		"embeddingModel", *flags.embeddingModel,
		"apiAddr", *flags.apiAddr,
		"healthInterval", *flags.healthInterval)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == filepath.Join(DefaultStateDir, DefaultDBFileName) && *flags.stateDir != DefaultStateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStore constructs the storage backend from the configured DSN
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildProviders constructs the primary and optional fallback LLM clients
func buildProviders(flags Flags) ([]*genai.Provider, error) {
	primaryOpts := []genai.Option{genai.WithName("primary")}
	if *flags.genaiKey != "" {
		primaryOpts = append(primaryOpts, genai.WithAPIKey(*flags.genaiKey))
	}
	if *flags.genaiBaseURL != "" {
		primaryOpts = append(primaryOpts, genai.WithBaseURL(*flags.genaiBaseURL))
	}
	if *flags.genaiModel != "" {
		primaryOpts = append(primaryOpts, genai.WithModel(*flags.genaiModel))
	}
	if *flags.embeddingModel != "" {
		primaryOpts = append(primaryOpts, genai.WithEmbeddingModel(*flags.embeddingModel))
	}
	primary, err := genai.NewClient(primaryOpts...)
	if err != nil {
		return nil, err
	}
	providers := []*genai.Provider{{Name: primary.Name(), Client: primary}}

	if flags.fallbackKey == "" {
		slog.Debug("No fallback LLM provider configured")
		return providers, nil
	}

	fallbackOpts := []genai.Option{
		genai.WithName("fallback"),
		genai.WithAPIKey(flags.fallbackKey),
	}
	if flags.fallbackBaseURL != "" {
		fallbackOpts = append(fallbackOpts, genai.WithBaseURL(flags.fallbackBaseURL))
	}
	if flags.fallbackModel != "" {
		fallbackOpts = append(fallbackOpts, genai.WithModel(flags.fallbackModel))
	}
	fallback, err := genai.NewClient(fallbackOpts...)
	if err != nil {
		return nil, err
	}
	return append(providers, &genai.Provider{Name: fallback.Name(), Client: fallback}), nil
}

func providerNames(providers []*genai.Provider) []string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name
	}
	return names
}
