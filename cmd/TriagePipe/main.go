package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BTreeMap/TriagePipe/internal/api"
	"github.com/BTreeMap/TriagePipe/internal/genai"
	"github.com/BTreeMap/TriagePipe/internal/lockfile"
	"github.com/BTreeMap/TriagePipe/internal/store"
	"github.com/BTreeMap/TriagePipe/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for TriagePipe state data
	DefaultStateDir = "/var/lib/triagepipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "triagepipe.db"
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

	// File-backed databases live in the state directory; hold it so a second
	// instance cannot write the same journal.
	if store.DetectDSNType(*flags.dbDSN) != "postgres" {
		lock, err := lockfile.AcquireLock(*flags.stateDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags, config)
	apiOpts := buildAPIOptions(flags)

	// Start the service
	slog.Info("Bootstrapping TriagePipe with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(storeOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("TriagePipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("TriagePipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseDSN  string
	StateDir     string
	Provider     string
	Model        string
	OpenAIKey    string
	AnthropicKey string
	APIAddr      string
	CacheSize    int
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	provider  *string
	model     *string
	apiKey    *string
	apiAddr   *string
	cacheSize *int
}

// initializeLogger sets up structured logging. Debug level is opt-in via
// TRIAGEPIPE_DEBUG.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("TRIAGEPIPE_DEBUG", false) {
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
		DatabaseDSN:  os.Getenv("DATABASE_DSN"),
		StateDir:     os.Getenv("TRIAGEPIPE_STATE_DIR"),
		Provider:     os.Getenv("TRIAGEPIPE_PROVIDER"),
		Model:        os.Getenv("TRIAGEPIPE_MODEL"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
		APIAddr:      os.Getenv("API_ADDR"),
		CacheSize:    util.ParseIntEnv("TRIAGEPIPE_CACHE_SIZE", 0),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No TRIAGEPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("TRIAGEPIPE_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// Fall back to the legacy DATABASE_URL name if DATABASE_DSN is not set
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("DATABASE_URL")
		if config.DatabaseDSN != "" {
			slog.Debug("Using DATABASE_URL as DATABASE_DSN", "dsn_set", true)
		}
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_DSN_SET", config.DatabaseDSN != "",
		"TRIAGEPIPE_STATE_DIR", config.StateDir,
		"TRIAGEPIPE_PROVIDER", config.Provider,
		"TRIAGEPIPE_MODEL", config.Model,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"ANTHROPIC_API_KEY_SET", config.AnthropicKey != "",
		"API_ADDR", config.APIAddr,
		"TRIAGEPIPE_CACHE_SIZE", config.CacheSize)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for TriagePipe data (overrides $TRIAGEPIPE_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseDSN, "database DSN for the analysis journal (overrides $DATABASE_DSN or $DATABASE_URL)"),
		provider:  flag.String("provider", config.Provider, "AI provider, openai or anthropic (overrides $TRIAGEPIPE_PROVIDER)"),
		model:     flag.String("model", config.Model, "AI model override (overrides $TRIAGEPIPE_MODEL)"),
		apiKey:    flag.String("api-key", "", "AI provider API key (overrides $OPENAI_API_KEY / $ANTHROPIC_API_KEY)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		cacheSize: flag.Int("cache-size", config.CacheSize, "analysis result cache capacity, 0 for the built-in default (overrides $TRIAGEPIPE_CACHE_SIZE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"provider", *flags.provider,
		"model", *flags.model,
		"apiKeySet", *flags.apiKey != "",
		"apiAddr", *flags.apiAddr,
		"cacheSize", *flags.cacheSize)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseDSN && config.DatabaseDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	// Ensure state directory exists if we're using a file-based DSN
	if store.DetectDSNType(*flags.dbDSN) != "postgres" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
		slog.Debug("State directory created successfully", "state_dir", stateDir)
	}
	return nil
}

// buildStoreOptions constructs journal configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		// Check if it's a PostgreSQL DSN using the shared detection function
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL journal", "dsn_type", "postgresql", "dsn_set", true)
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			// Assume SQLite for file paths
			slog.Debug("Detected SQLite DSN, configuring SQLite journal", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory journal")
	}
	return storeOpts
}

// resolveProvider picks the provider backend and its credential. An unset
// provider follows the available keys, preferring OpenAI.
func resolveProvider(provider, openaiKey, anthropicKey string) (string, string) {
	if provider == "" {
		if openaiKey == "" && anthropicKey != "" {
			return genai.ProviderAnthropic, anthropicKey
		}
		return genai.ProviderOpenAI, openaiKey
	}
	if provider == genai.ProviderAnthropic {
		return provider, anthropicKey
	}
	return provider, openaiKey
}

// buildGenAIOptions constructs AI provider configuration options
func buildGenAIOptions(flags Flags, config Config) []genai.Option {
	provider, key := resolveProvider(*flags.provider, config.OpenAIKey, config.AnthropicKey)
	if *flags.apiKey != "" {
		key = *flags.apiKey
	}

	genaiOpts := []genai.Option{genai.WithProvider(provider)}
	if key != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(key))
	}
	if *flags.model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.model))
	}
	slog.Debug("GenAI options built", "provider", provider, "key_set", key != "", "model", *flags.model)
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.cacheSize > 0 {
		apiOpts = append(apiOpts, api.WithCacheSize(*flags.cacheSize))
	}
	return apiOpts
}
