package dataexport

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/setavenger/blindbit-explorer/internal/database"
	"github.com/setavenger/blindbit-explorer/internal/logging"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

// BlocksPerCommit is the number of heights written per sqlite transaction.
var BlocksPerCommit = 1000

// ExportSQLite copies every indexed height into a sqlite file at path.
// Existing rows for the exported heights are overwritten.
func ExportSQLite(ctx context.Context, store database.BlockReader, path string) error {
	first, last, err := heightRange(store)
	if err != nil {
		return err
	}
	if first == nil {
		logging.L.Info().Msg("store is empty, nothing to export")
		return nil
	}

	db, err := OpenSQLite(path)
	if err != nil {
		logging.L.Err(err).Str("path", path).Msg("failed to open sqlite")
		return err
	}
	defer db.Close()

	if err = DropIndexes(ctx, db); err != nil {
		return err
	}

	start := time.Now()
	from, to := first.Height, last.Height
	for height := uint64(from); height <= uint64(to); {
		end := min(height+uint64(BlocksPerCommit)-1, uint64(to))
		if err = exportRange(ctx, store, db, types.BlockHeight(height), types.BlockHeight(end)); err != nil {
			logging.L.Err(err).
				Uint64("from", height).
				Uint64("to", end).
				Msg("failed to export range")
			return err
		}
		logging.L.Info().Uint64("height", end).Uint32("tip", uint32(to)).Msg("exported")
		height = end + 1
	}

	if err = CreateIndexes(ctx, db); err != nil {
		return err
	}
	logging.L.Info().Dur("duration", time.Since(start)).Str("path", path).Msg("sqlite export done")
	return nil
}

func exportRange(ctx context.Context, store database.BlockReader, db *sql.DB, from, to types.BlockHeight) error {
	batch, err := BeginBatch(ctx, db)
	if err != nil {
		return err
	}

	for h := uint64(from); h <= uint64(to); h++ {
		if err = ctx.Err(); err != nil {
			_ = batch.Rollback()
			return err
		}
		height := types.BlockHeight(h)
		header, err := store.HeaderByHeight(height)
		if err != nil {
			_ = batch.Rollback()
			return err
		}
		txs, err := store.BlockTransactions(height)
		if err != nil {
			_ = batch.Rollback()
			return err
		}
		if err = batch.InsertBlock(ctx, *header, txs); err != nil {
			_ = batch.Rollback()
			return fmt.Errorf("insert block %d: %w", height, err)
		}
	}
	return batch.Commit()
}

func heightRange(store database.BlockReader) (first, last *types.BlockHeader, err error) {
	first, err = store.FirstHeader()
	if err != nil {
		logging.L.Err(err).Msg("failed to pull first header")
		return nil, nil, err
	}
	last, err = store.LastHeader()
	if err != nil {
		logging.L.Err(err).Msg("failed to pull last header")
		return nil, nil, err
	}
	return first, last, nil
}
