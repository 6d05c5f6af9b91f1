package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

var (
	LogLevel     = "info"
	LogToConsole = true
)

const (
	ConfigFileName       string = "blindbit-explorer.toml"
	DefaultBaseDirectory string = "~/.blindbit-explorer"
)

const (
	BlockSourceRPC  = "rpc"
	BlockSourceREST = "rest"
)

var (
	BlockSource  = BlockSourceRPC
	RpcEndpoint  = "http://127.0.0.1:8332" // default local node
	RestEndpoint = "http://127.0.0.1:8332"
	CookiePath   = ""
	RpcUser      = ""
	RpcPass      = ""

	BaseDirectory = ""
	DBPath        = ""
	LogsPath      = ""

	HTTPHost = "127.0.0.1:8000"
)

type chain int

const (
	Unknown chain = iota
	Mainnet
	Signet
	Regtest
	Testnet3
)

// control vars
var (
	Chain = Unknown

	// FetchParallelism is the number of blocks requested from the node concurrently.
	// It also bounds how many blocks are held in memory by the pipeline.
	FetchParallelism = 8
	// MinBatchWeight closes an ingestion batch once the summed inputs+outputs reach it.
	MinBatchWeight uint64 = 50_000

	IndexingEnabled = true
	HTTPEnabled     = true

	PollInterval = 10 * time.Second
	// MaxReorgDepth bounds the walk back to the fork point.
	MaxReorgDepth = 100

	PebbleCacheMB int64 = 256
)

// one has to call SetDirectories otherwise config.DBPath will be empty
func SetDirectories() {
	BaseDirectory = ResolvePath(BaseDirectory)

	DBPath = filepath.Join(BaseDirectory, "data", "explorer")
	if LogsPath == "" {
		LogsPath = filepath.Join(BaseDirectory, "logs")
	}
}

// ResolvePath expands a leading ~ to the home directory.
func ResolvePath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func ChainParams() *chaincfg.Params {
	switch Chain {
	case Mainnet:
		return &chaincfg.MainNetParams
	case Signet:
		return &chaincfg.SigNetParams
	case Regtest:
		return &chaincfg.RegressionNetParams
	case Testnet3:
		return &chaincfg.TestNet3Params
	default:
		return &chaincfg.MainNetParams
	}
}

func ChainToString(c chain) string {
	switch c {
	case Mainnet:
		return "main"
	case Signet:
		return "signet"
	case Regtest:
		return "regtest"
	case Testnet3:
		return "testnet"
	default:
		return "unknown"
	}
}

func parseChain(s string) chain {
	switch s {
	case "main", "mainnet":
		return Mainnet
	case "signet":
		return Signet
	case "regtest":
		return Regtest
	case "testnet", "testnet3":
		return Testnet3
	default:
		return Unknown
	}
}
