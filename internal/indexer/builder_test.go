package indexer

import (
	"context"
	"slices"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-explorer/internal/database/dbpebble"
	"github.com/setavenger/blindbit-explorer/internal/testhelpers"
	"github.com/setavenger/blindbit-explorer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T, chain []*wire.MsgBlock) (*Builder, *dbpebble.Store, *testhelpers.MemorySource) {
	t.Helper()
	store, err := dbpebble.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	source := testhelpers.NewMemorySource(chain)
	pipeline := &Pipeline{
		Source:           source,
		Params:           testhelpers.Params,
		FetchParallelism: 3,
		MinBatchWeight:   5,
	}
	return NewBuilder(store, pipeline), store, source
}

func requireChainStored(t *testing.T, store *dbpebble.Store, chain []*wire.MsgBlock) {
	t.Helper()
	last, err := store.LastHeader()
	require.NoError(t, err)
	require.NotNil(t, last)
	require.Equal(t, types.BlockHeight(len(chain)-1), last.Height)

	for h, raw := range chain {
		header, err := store.HeaderByHeight(types.BlockHeight(h))
		require.NoError(t, err)
		assert.Equal(t, raw.BlockHash(), header.Hash, "height %d", h)
		assert.Equal(t, raw.Header.PrevBlock, header.PrevHash, "height %d", h)
	}
}

// forkAt copies chain[:height] and builds n blocks on top of it. The first
// fork block also spends the coinbase of spendFrom.
func forkAt(chain []*wire.MsgBlock, height uint32, n int, spendFrom int) []*wire.MsgBlock {
	fork := slices.Clone(chain[:height])
	prev := chain[height-1].BlockHash()

	first := testhelpers.NewBlock(prev, height, 7,
		testhelpers.CoinbaseTx(height, 7, 50, testhelpers.P2PKHScript(7)),
		testhelpers.SpendTx(
			[]wire.OutPoint{testhelpers.OutPoint(chain[spendFrom].Transactions[0], 0)},
			wire.NewTxOut(40, testhelpers.P2PKHScript(8)),
		),
	)
	fork = append(fork, first)
	return testhelpers.Extend(fork, first.BlockHash(), height+1, n-1, 7)
}

func TestInitialSyncToTip(t *testing.T) {
	chain := testhelpers.Chain(12, 1)
	builder, store, _ := newTestBuilder(t, chain)

	require.NoError(t, builder.InitialSyncToTip(context.Background()))
	requireChainStored(t, store, chain)

	// a second pass finds nothing to do
	require.NoError(t, builder.SyncOnce(context.Background()))
	requireChainStored(t, store, chain)
}

func TestSyncOnceFollowsNewBlocks(t *testing.T) {
	chain := testhelpers.Chain(6, 1)
	builder, store, source := newTestBuilder(t, chain)
	require.NoError(t, builder.SyncOnce(context.Background()))

	longer := testhelpers.Extend(slices.Clone(chain), chain[5].BlockHash(), 6, 4, 1)
	source.SetChain(longer)
	require.NoError(t, builder.SyncOnce(context.Background()))
	requireChainStored(t, store, longer)
}

func TestSyncOnceWaitsForLaggingNode(t *testing.T) {
	chain := testhelpers.Chain(8, 1)
	builder, store, source := newTestBuilder(t, chain)
	require.NoError(t, builder.SyncOnce(context.Background()))

	source.SetChain(chain[:5])
	require.NoError(t, builder.SyncOnce(context.Background()))
	requireChainStored(t, store, chain)
}

func TestSyncOnceReplacesReorgedBlocks(t *testing.T) {
	chain := testhelpers.Chain(10, 1)
	builder, store, source := newTestBuilder(t, chain)
	require.NoError(t, builder.InitialSyncToTip(context.Background()))

	fork := forkAt(chain, 6, 6, 2)
	source.SetChain(fork)
	require.NoError(t, builder.SyncOnce(context.Background()))
	requireChainStored(t, store, fork)

	// orphaned transactions are gone
	for _, raw := range chain[6:] {
		ptrs, err := store.TxPointersByHash(raw.Transactions[0].TxHash())
		require.NoError(t, err)
		assert.Empty(t, ptrs)
	}

	// the fork's spend resolves into the shared part of the chain
	spend, err := store.Transaction(types.NewTxPointer(6, 1))
	require.NoError(t, err)
	require.Len(t, spend.Inputs, 1)
	assert.Equal(t, types.ResolutionResolved, spend.Inputs[0].Resolution)
	assert.Equal(t, types.NewTxPointer(2, 0).Utxo(0), spend.Inputs[0].Spent)

	spenders, err := store.SpentBy(types.NewTxPointer(2, 0).Utxo(0))
	require.NoError(t, err)
	assert.Equal(t, []types.InputPointer{spend.Inputs[0].ID}, spenders)
}

func TestSyncOnceRejectsDeepReorg(t *testing.T) {
	chain := testhelpers.Chain(10, 1)
	builder, store, source := newTestBuilder(t, chain)
	builder.MaxReorgDepth = 2
	require.NoError(t, builder.InitialSyncToTip(context.Background()))

	source.SetChain(forkAt(chain, 4, 6, 1))
	err := builder.SyncOnce(context.Background())
	require.ErrorIs(t, err, ErrReorgTooDeep)

	// the store is untouched
	requireChainStored(t, store, chain)
}
