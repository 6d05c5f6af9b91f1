package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/setavenger/blindbit-explorer/internal/logging"
	"github.com/spf13/viper"
)

var (
	ErrUnknownChain       = errors.New("chain undefined")
	ErrUnknownBlockSource = errors.New("block source must be rpc or rest")
)

// LoadConfigs reads the toml file at pathToConfig, applies defaults and env
// overrides and sets the package level variables.
func LoadConfigs(pathToConfig string) error {
	// Set the file name of the configurations file
	viper.SetConfigFile(pathToConfig)

	// Handle errors reading the config file
	if err := viper.ReadInConfig(); err != nil {
		logging.L.Warn().Err(err).Msg("No config file detected")
	}

	/* set defaults */
	viper.SetDefault("chain", "signet")
	viper.SetDefault("block_source", BlockSource)
	viper.SetDefault("rpc_endpoint", RpcEndpoint)
	viper.SetDefault("rest_endpoint", RestEndpoint)
	viper.SetDefault("fetch_parallelism", FetchParallelism)
	viper.SetDefault("min_batch_weight", MinBatchWeight)
	viper.SetDefault("indexing_enabled", IndexingEnabled)
	viper.SetDefault("http_enabled", HTTPEnabled)
	viper.SetDefault("http_host", HTTPHost)
	viper.SetDefault("poll_interval_seconds", int(PollInterval/time.Second))
	viper.SetDefault("max_reorg_depth", MaxReorgDepth)
	viper.SetDefault("pebble_cache_mb", PebbleCacheMB)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_path", "")
	viper.SetDefault("log_to_console", true)

	// Bind viper keys to environment variables (optional, for backup)
	viper.AutomaticEnv()
	viper.BindEnv("chain", "CHAIN")
	viper.BindEnv("block_source", "BLOCK_SOURCE")
	viper.BindEnv("rpc_endpoint", "RPC_ENDPOINT")
	viper.BindEnv("rest_endpoint", "REST_ENDPOINT")
	viper.BindEnv("cookie_path", "COOKIE_PATH")
	viper.BindEnv("rpc_user", "RPC_USER")
	viper.BindEnv("rpc_pass", "RPC_PASS")
	viper.BindEnv("fetch_parallelism", "FETCH_PARALLELISM")
	viper.BindEnv("min_batch_weight", "MIN_BATCH_WEIGHT")
	viper.BindEnv("indexing_enabled", "INDEXING_ENABLED")
	viper.BindEnv("http_enabled", "HTTP_ENABLED")
	viper.BindEnv("http_host", "HTTP_HOST")
	viper.BindEnv("poll_interval_seconds", "POLL_INTERVAL_SECONDS")
	viper.BindEnv("max_reorg_depth", "MAX_REORG_DEPTH")
	viper.BindEnv("pebble_cache_mb", "PEBBLE_CACHE_MB")
	viper.BindEnv("log_level", "LOG_LEVEL")

	/* read and set config variables */
	// General
	HTTPHost = viper.GetString("http_host")
	HTTPEnabled = viper.GetBool("http_enabled")
	IndexingEnabled = viper.GetBool("indexing_enabled")
	LogLevel = viper.GetString("log_level")
	LogsPath = viper.GetString("log_path")
	LogToConsole = viper.GetBool("log_to_console")

	// Performance
	FetchParallelism = viper.GetInt("fetch_parallelism")
	if FetchParallelism < 1 {
		FetchParallelism = 1
	}
	MinBatchWeight = viper.GetUint64("min_batch_weight")
	PollInterval = time.Duration(viper.GetInt("poll_interval_seconds")) * time.Second
	MaxReorgDepth = viper.GetInt("max_reorg_depth")
	PebbleCacheMB = viper.GetInt64("pebble_cache_mb")

	// Node
	BlockSource = viper.GetString("block_source")
	RpcEndpoint = viper.GetString("rpc_endpoint")
	RestEndpoint = viper.GetString("rest_endpoint")
	CookiePath = viper.GetString("cookie_path")
	RpcUser = viper.GetString("rpc_user")
	RpcPass = viper.GetString("rpc_pass")

	Chain = parseChain(viper.GetString("chain"))
	if Chain == Unknown {
		return fmt.Errorf("%w: %q", ErrUnknownChain, viper.GetString("chain"))
	}

	logging.SetLogLevel(logging.ParseLevel(LogLevel))

	switch BlockSource {
	case BlockSourceREST:
		if RestEndpoint == "" {
			return errors.New("rest endpoint not set")
		}
	case BlockSourceRPC:
		if err := loadRPCCredentials(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBlockSource, BlockSource)
	}

	logging.L.Info().
		Str("chain", ChainToString(Chain)).
		Str("block_source", BlockSource).
		Int("fetch_parallelism", FetchParallelism).
		Uint64("min_batch_weight", MinBatchWeight).
		Bool("indexing_enabled", IndexingEnabled).
		Bool("http_enabled", HTTPEnabled).
		Msg("config loaded")

	return nil
}

func loadRPCCredentials() error {
	if CookiePath != "" {
		data, err := os.ReadFile(ResolvePath(CookiePath))
		if err != nil {
			logging.L.Err(err).Str("path", CookiePath).Msg("error reading cookie file")
			return err
		}

		credentials := strings.Split(strings.TrimSpace(string(data)), ":")
		if len(credentials) != 2 {
			return errors.New("cookie file is invalid")
		}
		RpcUser = credentials[0]
		RpcPass = credentials[1]
	}

	if RpcUser == "" {
		return errors.New("rpc user not set")
	}

	if RpcPass == "" {
		return errors.New("rpc pass not set")
	}
	return nil
}
