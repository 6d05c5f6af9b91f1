package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/setavenger/blindbit-explorer/internal/config"
	"github.com/setavenger/blindbit-explorer/internal/dataexport"
	"github.com/setavenger/blindbit-explorer/internal/logging"
	"github.com/spf13/cobra"
)

var (
	Version = "0.0.0"

	// Global flags
	datadir    string
	configFile string
	dbPath     string

	// export flags
	exportPath string
	address    string

	dumpLimit int
)

func init() {
	rootCmd.PersistentFlags().StringVar(
		&datadir,
		"datadir",
		config.DefaultBaseDirectory,
		"Set the base directory for blindbit explorer. Default directory is ~/.blindbit-explorer",
	)
	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Path to config file (default: datadir/blindbit-explorer.toml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&dbPath,
		"db",
		"",
		"Path to the pebble database directory (default: datadir/data/explorer)",
	)

	dumpCmd.Flags().IntVar(&dumpLimit, "limit", 20, "Maximum number of entries to print, 0 for all")

	exportSQLiteCmd.Flags().StringVar(&exportPath, "out", "", "Path of the sqlite file (default: datadir/data-export/explorer.sqlite)")
	exportCSVCmd.Flags().StringVar(&exportPath, "out", "", "Path of the csv file (default: datadir/data-export/<kind>.csv)")
	exportCSVCmd.Flags().StringVar(&address, "address", "", "Export the outputs of this address instead of the headers")
}

var rootCmd = &cobra.Command{
	Use:   "explorer-db",
	Short: "BlindBit Explorer Database Explorer",
	Long: `BlindBit Explorer Database Explorer provides tools to inspect and export
the pebble database written by the blindbit-explorer indexer.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.BaseDirectory = datadir
		config.SetDirectories()

		logging.L.Info().Msgf("base directory %s", config.BaseDirectory)

		if configFile == "" {
			configFile = filepath.Join(config.BaseDirectory, config.ConfigFileName)
		}
		// node settings are irrelevant for offline inspection
		if err := config.LoadConfigs(configFile); err != nil {
			logging.L.Debug().Err(err).Msg("config incomplete")
		}

		if dbPath == "" {
			dbPath = config.DBPath
		}
	},
}

func withExplorer(fn func(cmd *cobra.Command, de *DatabaseExplorer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Opening database at: %s\n", dbPath)

		explorer, err := NewDatabaseExplorer(dbPath)
		if err != nil {
			return fmt.Errorf("error opening database: %w", err)
		}
		defer explorer.Close()

		return fn(cmd, explorer, args)
	}
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show database information",
	Long: `Show database information including:
- Height range and best block
- Key counts per key space
- Database metrics (memtable size, cache size, WAL info, etc.)`,
	RunE: withExplorer(func(_ *cobra.Command, de *DatabaseExplorer, _ []string) error {
		return de.PrintDatabaseInfo()
	}),
}

var listKeysCmd = &cobra.Command{
	Use:   "list-keys",
	Short: "List all key types in the database",
	RunE: withExplorer(func(_ *cobra.Command, de *DatabaseExplorer, _ []string) error {
		return de.PrintKeyTypeSummary()
	}),
}

var countCmd = &cobra.Command{
	Use:   "count <key-type>",
	Short: "Count keys of one key space",
	Long:  "Count keys of one key space, e.g. header, tx, utxo, input, spent-by, addr-dict.",
	Args:  cobra.ExactArgs(1),
	RunE: withExplorer(func(_ *cobra.Command, de *DatabaseExplorer, args []string) error {
		prefix, ok := prefixByName(args[0])
		if !ok {
			return fmt.Errorf("unsupported key type: %s", args[0])
		}
		count, err := de.store.CountKeys(prefix)
		if err != nil {
			return fmt.Errorf("error counting keys: %w", err)
		}
		fmt.Printf("Found %d %s keys\n", count, args[0])
		return nil
	}),
}

var dumpCmd = &cobra.Command{
	Use:   "dump <key-type>",
	Short: "Print raw keys and values of one key space as hex",
	Args:  cobra.ExactArgs(1),
	RunE: withExplorer(func(_ *cobra.Command, de *DatabaseExplorer, args []string) error {
		prefix, ok := prefixByName(args[0])
		if !ok {
			return fmt.Errorf("unsupported key type: %s", args[0])
		}
		return de.DumpKeys(prefix, dumpLimit)
	}),
}

var headerCmd = &cobra.Command{
	Use:   "header <height|hash>",
	Short: "Print a stored header by height or block hash",
	Args:  cobra.ExactArgs(1),
	RunE: withExplorer(func(_ *cobra.Command, de *DatabaseExplorer, args []string) error {
		if height, err := strconv.ParseUint(args[0], 10, 32); err == nil {
			return de.PrintHeaderByHeight(uint32(height))
		}
		hash, err := chainhash.NewHashFromStr(args[0])
		if err != nil {
			return fmt.Errorf("neither a height nor a block hash: %s", args[0])
		}
		return de.PrintHeadersByHash(*hash)
	}),
}

var txCmd = &cobra.Command{
	Use:   "tx <txid>",
	Short: "Print every stored occurrence of a transaction",
	Args:  cobra.ExactArgs(1),
	RunE: withExplorer(func(_ *cobra.Command, de *DatabaseExplorer, args []string) error {
		txid, err := chainhash.NewHashFromStr(args[0])
		if err != nil {
			return fmt.Errorf("invalid txid: %w", err)
		}
		return de.PrintTransaction(*txid)
	}),
}

var exportSQLiteCmd = &cobra.Command{
	Use:   "export-sqlite",
	Short: "Export the indexed chain into a sqlite file",
	RunE: withExplorer(func(cmd *cobra.Command, de *DatabaseExplorer, _ []string) error {
		if exportPath == "" {
			exportPath = filepath.Join(config.BaseDirectory, "data-export", "explorer.sqlite")
		}
		return dataexport.ExportSQLite(cmd.Context(), de.store, exportPath)
	}),
}

var exportCSVCmd = &cobra.Command{
	Use:   "export-csv",
	Short: "Export headers, or the outputs of one address, as csv",
	RunE: withExplorer(func(_ *cobra.Command, de *DatabaseExplorer, _ []string) error {
		if address != "" {
			if exportPath == "" {
				exportPath = filepath.Join(config.BaseDirectory, "data-export", "utxos-"+address+".csv")
			}
			return dataexport.ExportAddressUtxosCSV(de.store, address, exportPath)
		}
		if exportPath == "" {
			exportPath = filepath.Join(config.BaseDirectory, "data-export", "headers.csv")
		}
		return dataexport.ExportHeadersCSV(de.store, exportPath)
	}),
}

var exportAllCmd = &cobra.Command{
	Use:   "export-all",
	Short: "Export headers csv and sqlite into datadir/data-export",
	RunE: withExplorer(func(cmd *cobra.Command, de *DatabaseExplorer, _ []string) error {
		return dataexport.ExportAll(cmd.Context(), de.store, config.BaseDirectory)
	}),
}

func main() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(listKeysCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(headerCmd)
	rootCmd.AddCommand(txCmd)
	rootCmd.AddCommand(exportSQLiteCmd)
	rootCmd.AddCommand(exportCSVCmd)
	rootCmd.AddCommand(exportAllCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
