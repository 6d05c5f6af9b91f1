package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-explorer/internal/testhelpers"
	"github.com/setavenger/blindbit-explorer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	batches [][]types.BlockHeight
	weights []uint64
}

func (c *collector) consume(_ context.Context, batch []*types.Block) error {
	var heights []types.BlockHeight
	var weight uint64
	for _, b := range batch {
		heights = append(heights, b.Height)
		weight += uint64(b.Weight)
	}
	c.batches = append(c.batches, heights)
	c.weights = append(c.weights, weight)
	return nil
}

func (c *collector) heights() []types.BlockHeight {
	var all []types.BlockHeight
	for _, b := range c.batches {
		all = append(all, b...)
	}
	return all
}

// weightFiveChain builds n blocks of weight 5: a coinbase (1 in, 1 out) and a
// spend with 1 input and 2 outputs.
func weightFiveChain(n int) []*wire.MsgBlock {
	var blocks []*wire.MsgBlock
	var prev chainhash.Hash
	for i := 0; i < n; i++ {
		h := uint32(i)
		block := testhelpers.NewBlock(prev, h, 0,
			testhelpers.CoinbaseTx(h, 0, 50, testhelpers.P2PKHScript(1)),
			testhelpers.SpendTx(
				[]wire.OutPoint{{Hash: testhelpers.Hash(byte(i + 1)), Index: 0}},
				wire.NewTxOut(1, testhelpers.P2PKHScript(2)),
				wire.NewTxOut(2, testhelpers.P2PKHScript(3)),
			),
		)
		blocks = append(blocks, block)
		prev = block.BlockHash()
	}
	return blocks
}

func TestPipelineKeepsHeightOrder(t *testing.T) {
	source := testhelpers.NewMemorySource(testhelpers.Chain(25, 1))
	source.MaxLatency = 5 * time.Millisecond

	p := &Pipeline{
		Source:           source,
		Params:           testhelpers.Params,
		FetchParallelism: 4,
		MinBatchWeight:   3,
	}

	var c collector
	require.NoError(t, p.Run(context.Background(), 10, 20, c.consume))

	want := make([]types.BlockHeight, 0, 11)
	for h := types.BlockHeight(10); h <= 20; h++ {
		want = append(want, h)
	}
	assert.Equal(t, want, c.heights())
	assert.LessOrEqual(t, source.MaxInFlight(), 4)
	assert.Equal(t, 11, source.Fetched())
}

func TestPipelineBatchesByWeight(t *testing.T) {
	source := testhelpers.NewMemorySource(weightFiveChain(4))
	p := &Pipeline{Source: source, Params: testhelpers.Params, FetchParallelism: 3, MinBatchWeight: 10}

	var c collector
	require.NoError(t, p.Run(context.Background(), 0, 3, c.consume))

	assert.Equal(t, [][]types.BlockHeight{{0, 1}, {2, 3}}, c.batches)
	assert.Equal(t, []uint64{10, 10}, c.weights)
}

func TestPipelineEmitsTrailingBatch(t *testing.T) {
	source := testhelpers.NewMemorySource(weightFiveChain(5))
	p := &Pipeline{Source: source, Params: testhelpers.Params, FetchParallelism: 2, MinBatchWeight: 10}

	var c collector
	require.NoError(t, p.Run(context.Background(), 0, 4, c.consume))

	assert.Equal(t, [][]types.BlockHeight{{0, 1}, {2, 3}, {4}}, c.batches)
	assert.Equal(t, []uint64{10, 10, 5}, c.weights)
}

func TestPipelineFetchErrorStopsStream(t *testing.T) {
	source := testhelpers.NewMemorySource(testhelpers.Chain(10, 1))
	failAt := types.BlockHeight(6)
	source.FailAt = &failAt
	p := &Pipeline{Source: source, Params: testhelpers.Params, FetchParallelism: 3, MinBatchWeight: 1}

	var c collector
	err := p.Run(context.Background(), 0, 9, c.consume)
	require.Error(t, err)

	for _, h := range c.heights() {
		assert.Less(t, h, failAt)
	}
}

func TestPipelineConsumerErrorStopsStream(t *testing.T) {
	source := testhelpers.NewMemorySource(testhelpers.Chain(10, 1))
	p := &Pipeline{Source: source, Params: testhelpers.Params, FetchParallelism: 2, MinBatchWeight: 1}

	errBoom := errors.New("boom")
	calls := 0
	err := p.Run(context.Background(), 0, 9, func(_ context.Context, batch []*types.Block) error {
		calls++
		if batch[0].Height == 3 {
			return errBoom
		}
		return nil
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 4, calls)
}

func TestPipelineStreamResumesAfterLast(t *testing.T) {
	chain := testhelpers.Chain(8, 1)
	source := testhelpers.NewMemorySource(chain)
	p := &Pipeline{Source: source, Params: testhelpers.Params, FetchParallelism: 2, MinBatchWeight: 100}

	assert.Equal(t, types.BlockHeight(0), p.ResumeHeight(nil))

	last := &types.BlockHeader{Height: 4, Hash: chain[4].BlockHash()}
	assert.Equal(t, types.BlockHeight(5), p.ResumeHeight(last))

	var c collector
	tip := types.BlockHeader{Height: 7, Hash: chain[7].BlockHash()}
	require.NoError(t, p.Stream(context.Background(), tip, last, c.consume))
	assert.Equal(t, []types.BlockHeight{5, 6, 7}, c.heights())

	// nothing to do once the tip is stored
	var none collector
	require.NoError(t, p.Stream(context.Background(), tip, &tip, none.consume))
	assert.Empty(t, none.batches)
}
