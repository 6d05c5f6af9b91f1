package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-explorer/internal/logging"
	"github.com/setavenger/blindbit-explorer/internal/metrics"
	"github.com/setavenger/blindbit-explorer/internal/types"
	"golang.org/x/sync/errgroup"
)

// BatchConsumer receives decomposed blocks in ascending height order.
// The pipeline waits for it to return before the next batch is handed over.
type BatchConsumer func(ctx context.Context, batch []*types.Block) error

// Pipeline turns a height range into ordered, weight bounded batches.
type Pipeline struct {
	Source BlockSource
	Params *chaincfg.Params

	// FetchParallelism bounds concurrent fetches and the number of raw blocks
	// held between fetch and decomposition.
	FetchParallelism int
	// MinBatchWeight closes a batch once its summed weight reaches it.
	MinBatchWeight uint64
}

type fetchResult struct {
	height types.BlockHeight
	raw    *wire.MsgBlock
}

// ResumeHeight is the first height that still needs indexing.
func (p *Pipeline) ResumeHeight(last *types.BlockHeader) types.BlockHeight {
	if last == nil {
		return 0
	}
	return last.Height + 1
}

// Stream indexes everything between the stored last header and tip.
func (p *Pipeline) Stream(
	ctx context.Context, tip types.BlockHeader, last *types.BlockHeader, consume BatchConsumer,
) error {
	from := p.ResumeHeight(last)
	if last != nil && last.Height >= tip.Height {
		return nil
	}
	return p.Run(ctx, from, tip.Height, consume)
}

// Run fetches [from, to] and hands batches to consume. The first error of a
// fetch, a decomposition or the consumer ends the run and is returned.
func (p *Pipeline) Run(ctx context.Context, from, to types.BlockHeight, consume BatchConsumer) error {
	if from > to {
		return nil
	}
	parallelism := max(p.FetchParallelism, 1)

	g, gctx := errgroup.WithContext(ctx)

	// a slot is held from the start of a fetch until the block left the reorder buffer
	pullSemaphore := make(chan struct{}, parallelism)
	results := make(chan fetchResult, parallelism)

	g.Go(func() error {
		for h := uint64(from); h <= uint64(to); h++ {
			select {
			case pullSemaphore <- struct{}{}:
			case <-gctx.Done():
				return nil
			}

			height := types.BlockHeight(h)
			g.Go(func() error {
				return p.fetch(gctx, height, results)
			})
		}
		return nil
	})

	g.Go(func() error {
		return p.assemble(gctx, from, to, results, pullSemaphore, consume)
	})

	return g.Wait()
}

func (p *Pipeline) fetch(ctx context.Context, height types.BlockHeight, results chan<- fetchResult) error {
	start := time.Now()
	logging.L.Trace().Uint32("height", uint32(height)).Msg("pulling block")

	raw, err := p.Source.FetchByHeight(ctx, height)
	if err != nil {
		logging.L.Err(err).Uint32("height", uint32(height)).Msg("failed to pull block")
		return fmt.Errorf("fetch block %d: %w", height, err)
	}
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	// never blocks, the channel holds as many results as there are slots
	results <- fetchResult{height: height, raw: raw}
	return nil
}

// assemble restores height order, decomposes and cuts batches.
func (p *Pipeline) assemble(
	ctx context.Context,
	from, to types.BlockHeight,
	results <-chan fetchResult,
	pullSemaphore <-chan struct{},
	consume BatchConsumer,
) error {
	nextHeight := uint64(from)
	blockBuffer := make(map[types.BlockHeight]*wire.MsgBlock)

	var batch []*types.Block
	var batchWeight uint64

	emit := func() error {
		if len(batch) == 0 {
			return nil
		}
		start := time.Now()
		first, last := batch[0].Height, batch[len(batch)-1].Height
		if err := consume(ctx, batch); err != nil {
			logging.L.Err(err).
				Uint32("from", uint32(first)).
				Uint32("to", uint32(last)).
				Msg("batch consumer failed")
			return err
		}
		metrics.Batches.Inc()
		metrics.BatchBlocks.Observe(float64(len(batch)))
		logging.L.Info().
			Uint32("from", uint32(first)).
			Uint32("to", uint32(last)).
			Uint64("weight", batchWeight).
			Dur("duration", time.Since(start)).
			Msg("batch stored")
		batch = nil
		batchWeight = 0
		return nil
	}

	for nextHeight <= uint64(to) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-results:
			blockBuffer[res.height] = res.raw
		}

		// Process any buffered blocks that are now in sequence
		for nextHeight <= uint64(to) {
			height := types.BlockHeight(nextHeight)
			raw, ok := blockBuffer[height]
			if !ok {
				break
			}
			delete(blockBuffer, height)
			<-pullSemaphore
			nextHeight++

			block, err := DecomposeBlock(height, raw, p.Params)
			if err != nil {
				logging.L.Err(err).Uint32("height", uint32(height)).Msg("failed to decompose block")
				return err
			}
			batch = append(batch, block)
			batchWeight += uint64(block.Weight)

			if batchWeight >= p.MinBatchWeight {
				if err = emit(); err != nil {
					return err
				}
			}
		}
	}

	return emit()
}
