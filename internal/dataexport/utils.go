package dataexport

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/setavenger/blindbit-explorer/internal/database"
	"github.com/setavenger/blindbit-explorer/internal/logging"
)

// ExportAll writes the sqlite export and the header csv into dir/data-export.
func ExportAll(ctx context.Context, store database.BlockReader, dir string) error {
	logging.L.Info().Msg("Exporting data")
	timestamp := time.Now().Unix()
	exportDir := filepath.Join(dir, "data-export")

	logging.L.Info().Msg("Exporting Headers")
	err := ExportHeadersCSV(store, filepath.Join(exportDir, fmt.Sprintf("headers-%d.csv", timestamp)))
	if err != nil {
		logging.L.Err(err).Msg("error exporting headers")
		return err
	}
	logging.L.Info().Msg("Finished Headers")

	logging.L.Info().Msg("Exporting SQLite")
	err = ExportSQLite(ctx, store, filepath.Join(exportDir, fmt.Sprintf("explorer-%d.sqlite", timestamp)))
	if err != nil {
		logging.L.Err(err).Msg("error exporting sqlite")
		return err
	}
	logging.L.Info().Msg("Finished SQLite")

	logging.L.Info().Msg("Export Done")
	return nil
}
