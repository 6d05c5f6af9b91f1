package indexer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-explorer/internal/database"
	"github.com/setavenger/blindbit-explorer/internal/logging"
	"github.com/setavenger/blindbit-explorer/internal/metrics"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

var (
	ErrReorgTooDeep = errors.New("fork point deeper than max reorg depth")
	errForkMismatch = errors.New("node returned a parent at an unexpected height")
)

// Builder keeps the store in line with the node's best chain.
type Builder struct {
	store    database.BlockPersistence
	source   BlockSource
	pipeline *Pipeline

	PollInterval  time.Duration
	MaxReorgDepth int
}

func NewBuilder(store database.BlockPersistence, pipeline *Pipeline) *Builder {
	return &Builder{
		store:         store,
		source:        pipeline.Source,
		pipeline:      pipeline,
		PollInterval:  10 * time.Second,
		MaxReorgDepth: 100,
	}
}

func (b *Builder) InitialSyncToTip(ctx context.Context) error {
	last, err := b.store.LastHeader()
	if err != nil {
		logging.L.Err(err).Msg("failed to pull chain tip from db")
		return err
	}

	event := logging.L.Info()
	if last != nil {
		event = event.Uint32("sync_tip", uint32(last.Height))
	}
	event.Msg("Starting initial sync")

	return b.SyncOnce(ctx)
}

func (b *Builder) ContinuousSync(ctx context.Context) error {
	tickerBlockCheck := time.NewTicker(b.PollInterval)
	defer tickerBlockCheck.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tickerBlockCheck.C:
			if err := b.SyncOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// SyncOnce repairs a reorg if the stored tip left the best chain and then
// indexes up to the node's tip.
func (b *Builder) SyncOnce(ctx context.Context) error {
	tipHeight, tipBlock, err := b.source.FetchBestBlock(ctx)
	if err != nil {
		logging.L.Err(err).Msg("failed to pull best block")
		return err
	}
	metrics.ChainTip.Set(float64(tipHeight))

	last, err := b.store.LastHeader()
	if err != nil {
		logging.L.Err(err).Msg("failed to pull chain tip from db")
		return err
	}

	if last != nil {
		if tipHeight < last.Height {
			logging.L.Debug().
				Uint32("node_height", uint32(tipHeight)).
				Uint32("indexed_height", uint32(last.Height)).
				Msg("node behind index, waiting")
			return nil
		}

		replaced, err := b.repairReorg(ctx, last)
		if err != nil {
			return err
		}
		if replaced {
			if last, err = b.store.LastHeader(); err != nil {
				return err
			}
		}
		logging.L.Debug().
			Str("best_blockhash", last.Hash.String()).
			Uint32("height", uint32(last.Height)).
			Msg("state_update")
	}

	tip := types.BlockHeader{
		Height:    tipHeight,
		Hash:      tipBlock.BlockHash(),
		PrevHash:  tipBlock.Header.PrevBlock,
		Timestamp: uint32(tipBlock.Header.Timestamp.Unix()),
	}
	return b.pipeline.Stream(ctx, tip, last, b.storeBatch)
}

func (b *Builder) storeBatch(_ context.Context, batch []*types.Block) error {
	return b.store.StoreBlocks(batch)
}

// repairReorg compares the stored tip with the node's block at the same height.
// On a mismatch it walks back along the node's chain until the parent is a
// stored header and replaces everything above it.
func (b *Builder) repairReorg(ctx context.Context, last *types.BlockHeader) (bool, error) {
	raw, err := b.source.FetchByHeight(ctx, last.Height)
	if err != nil {
		return false, err
	}
	if raw.BlockHash() == last.Hash {
		return false, nil
	}

	metrics.Reorgs.Inc()
	logging.L.Warn().
		Uint32("height", uint32(last.Height)).
		Str("stored_hash", last.Hash.String()).
		Str("node_hash", raw.BlockHash().String()).
		Msg("reorg detected")

	var replacements []*types.Block
	height := last.Height
	for depth := 0; ; depth++ {
		if depth >= b.MaxReorgDepth {
			return false, fmt.Errorf("%w: %d", ErrReorgTooDeep, b.MaxReorgDepth)
		}

		block, err := DecomposeBlock(height, raw, b.pipeline.Params)
		if err != nil {
			return false, err
		}
		replacements = append(replacements, block)

		if height == 0 {
			break
		}
		known, err := b.isStoredAt(raw, height-1)
		if err != nil {
			return false, err
		}
		if known {
			break
		}

		prevHeight, prevRaw, err := b.source.FetchByHash(ctx, raw.Header.PrevBlock)
		if err != nil {
			return false, err
		}
		if prevHeight != height-1 {
			return false, fmt.Errorf("%w: %d, expected %d", errForkMismatch, prevHeight, height-1)
		}
		height, raw = prevHeight, prevRaw
	}

	slices.Reverse(replacements)
	logging.L.Info().
		Uint32("fork_height", uint32(replacements[0].Height)).
		Int("depth", len(replacements)).
		Msg("replacing orphaned blocks")

	if err = b.store.ReplaceBlocks(replacements); err != nil {
		logging.L.Err(err).Msg("failed to replace blocks")
		return false, err
	}
	return true, nil
}

func (b *Builder) isStoredAt(raw *wire.MsgBlock, height types.BlockHeight) (bool, error) {
	headers, err := b.store.HeadersByHash(raw.Header.PrevBlock)
	if err != nil {
		return false, err
	}
	for _, h := range headers {
		if h.Height == height {
			return true, nil
		}
	}
	return false, nil
}
