package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/setavenger/blindbit-explorer/internal/config"
	"github.com/setavenger/blindbit-explorer/internal/database/dbpebble"
	"github.com/setavenger/blindbit-explorer/internal/indexer"
	"github.com/setavenger/blindbit-explorer/internal/logging"
	"github.com/setavenger/blindbit-explorer/internal/server"
)

var (
	displayVersion bool
	Version        = "0.0.0"
)

func init() {
	flag.StringVar(
		&config.BaseDirectory,
		"datadir",
		config.DefaultBaseDirectory,
		"Set the base directory for blindbit explorer. Default directory is ~/.blindbit-explorer",
	)
	flag.BoolVar(
		&displayVersion,
		"version",
		false,
		"show version of blindbit-explorer",
	)
}

func setup() error {
	config.SetDirectories()

	err := os.MkdirAll(config.BaseDirectory, 0750)
	if err != nil && !errors.Is(err, os.ErrExist) {
		logging.L.Err(err).Msg("error creating base directory")
		return err
	}

	logging.L.Info().Msgf("base directory %s", config.BaseDirectory)

	if err = config.LoadConfigs(filepath.Join(config.BaseDirectory, config.ConfigFileName)); err != nil {
		logging.L.Err(err).Msg("invalid config")
		return err
	}

	if err = os.MkdirAll(config.DBPath, 0750); err != nil {
		logging.L.Err(err).Msg("error creating db path")
		return err
	}

	if config.LogsPath != "" {
		if err = logging.SetLogOutput(config.LogsPath, "blindbit-explorer.log", config.LogToConsole); err != nil {
			logging.L.Warn().Err(err).Msg("Failed to initialize file logging")
		}
	}
	return nil
}

func newBlockSource() indexer.BlockSource {
	if config.BlockSource == config.BlockSourceREST {
		return indexer.NewRESTSource(config.RestEndpoint)
	}
	return indexer.NewRPCSource(config.RpcEndpoint, config.RpcUser, config.RpcPass)
}

func main() {
	flag.Parse()
	if displayVersion {
		fmt.Println("blindbit-explorer version:", Version) // using fmt because loggers are not initialised
		os.Exit(0)
	}

	if err := setup(); err != nil {
		os.Exit(1)
	}
	defer logging.Close()
	defer logging.L.Info().Msg("Program shut down")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.L.Info().Msg("Program Started")

	store, err := dbpebble.Open(config.DBPath, config.PebbleCacheMB)
	if err != nil {
		logging.L.Err(err).Msg("failed opening db")
		logging.Close()
		os.Exit(1)
	}

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	// so we can start serving data while not fully synced.
	if config.HTTPEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.RunServer(ctx, server.NewApiHandler(store), config.HTTPHost); err != nil {
				errChan <- err
			}
		}()
	}

	if config.IndexingEnabled {
		pipeline := &indexer.Pipeline{
			Source:           newBlockSource(),
			Params:           config.ChainParams(),
			FetchParallelism: config.FetchParallelism,
			MinBatchWeight:   config.MinBatchWeight,
		}
		builder := indexer.NewBuilder(store, pipeline)
		builder.PollInterval = config.PollInterval
		builder.MaxReorgDepth = config.MaxReorgDepth

		wg.Add(1)
		go func() {
			defer wg.Done()
			// do initial sync then move towards steady state sync
			if err := builder.InitialSyncToTip(ctx); err != nil {
				logging.L.Err(err).Msg("failed initial sync")
				errChan <- err
				return
			}
			logging.L.Info().Msg("initial sync done")

			if err := builder.ContinuousSync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.L.Err(err).Msg("error indexing blocks")
				errChan <- err
			}
		}()
	}

	var fatal error
	select {
	case <-ctx.Done():
		logging.L.Info().Msg("Program interrupted")
	case fatal = <-errChan:
		logging.L.Err(fatal).Msg("program failed")
	}

	// the store is closed only after the indexer and server returned
	stop()
	wg.Wait()

	if err := store.Close(); err != nil {
		logging.L.Err(err).Msg("db close failed")
	} else {
		logging.L.Debug().Msg("db closed successfully")
	}

	if fatal != nil {
		logging.L.Info().Msg("Program shut down")
		logging.Close()
		os.Exit(1)
	}
}
