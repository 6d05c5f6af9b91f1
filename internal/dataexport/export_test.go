package dataexport

import (
	"context"
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-explorer/internal/database/dbpebble"
	"github.com/setavenger/blindbit-explorer/internal/indexer"
	"github.com/setavenger/blindbit-explorer/internal/testhelpers"
	"github.com/setavenger/blindbit-explorer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// indexedStore holds five coinbase only blocks plus one block spending the
// coinbase at height 1.
func indexedStore(t *testing.T) (*dbpebble.Store, []*wire.MsgBlock) {
	t.Helper()
	store, err := dbpebble.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	chain := testhelpers.Chain(5, 1)
	chain = append(chain, testhelpers.NewBlock(chain[4].BlockHash(), 5, 0,
		testhelpers.CoinbaseTx(5, 0, 50, testhelpers.P2PKHScript(2)),
		testhelpers.SpendTx(
			[]wire.OutPoint{testhelpers.OutPoint(chain[1].Transactions[0], 0)},
			wire.NewTxOut(10, []byte{0x6a}),
		),
	))

	var blocks []*types.Block
	for h, raw := range chain {
		block, err := indexer.DecomposeBlock(types.BlockHeight(h), raw, testhelpers.Params)
		require.NoError(t, err)
		blocks = append(blocks, block)
	}
	require.NoError(t, store.StoreBlocks(blocks))
	return store, chain
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func TestExportSQLite(t *testing.T) {
	store, chain := indexedStore(t)
	path := filepath.Join(t.TempDir(), "out", "explorer.sqlite")

	BlocksPerCommit = 4
	t.Cleanup(func() { BlocksPerCommit = 1000 })

	require.NoError(t, ExportSQLite(context.Background(), store, path))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 6, countRows(t, db, "SELECT COUNT(*) FROM headers"))
	assert.Equal(t, 7, countRows(t, db, "SELECT COUNT(*) FROM transactions"))
	assert.Equal(t, 7, countRows(t, db, "SELECT COUNT(*) FROM outputs"))
	assert.Equal(t, 7, countRows(t, db, "SELECT COUNT(*) FROM inputs"))
	assert.Equal(t, 6, countRows(t, db, "SELECT COUNT(*) FROM inputs WHERE resolution = 'coinbase'"))

	var hash []byte
	require.NoError(t, db.QueryRow("SELECT block_hash FROM headers WHERE block_height = 3").Scan(&hash))
	want := chain[3].BlockHash()
	assert.Equal(t, want[:], hash)

	var spentHeight, spentPos, spentVout int
	var resolution string
	require.NoError(t, db.QueryRow(
		"SELECT spent_height, spent_position, spent_vout, resolution FROM inputs WHERE block_height = 5 AND position = 1",
	).Scan(&spentHeight, &spentPos, &spentVout, &resolution))
	assert.Equal(t, []int{1, 0, 0}, []int{spentHeight, spentPos, spentVout})
	assert.Equal(t, "resolved", resolution)

	// OP_RETURN has no address
	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM outputs WHERE address IS NULL"))
	addr := testhelpers.P2PKHAddress(1).EncodeAddress()
	assert.Equal(t, 5, countRows(t, db, "SELECT COUNT(*) FROM outputs WHERE address = ?", addr))

	// exporting again overwrites instead of duplicating
	require.NoError(t, ExportSQLite(context.Background(), store, path))
	assert.Equal(t, 6, countRows(t, db, "SELECT COUNT(*) FROM headers"))
}

func TestExportSQLiteEmptyStore(t *testing.T) {
	store, err := dbpebble.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	path := filepath.Join(t.TempDir(), "empty.sqlite")
	require.NoError(t, ExportSQLite(context.Background(), store, path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestExportHeadersCSV(t *testing.T) {
	store, chain := indexedStore(t)
	path := filepath.Join(t.TempDir(), "headers.csv")

	require.NoError(t, ExportHeadersCSV(store, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7)
	assert.Equal(t, []string{"blockHeight", "blockHash", "prevHash", "timestamp"}, records[0])
	assert.Equal(t, "2", records[3][0])
	assert.Equal(t, chain[2].BlockHash().String(), records[3][1])
	assert.Equal(t, chain[1].BlockHash().String(), records[3][2])
}

func TestExportAddressUtxosCSV(t *testing.T) {
	store, _ := indexedStore(t)
	path := filepath.Join(t.TempDir(), "utxos.csv")

	require.NoError(t, ExportAddressUtxosCSV(store, testhelpers.P2PKHAddress(1).EncodeAddress(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, "1:0:0", records[2][0])
	assert.Equal(t, "5:1:0", records[2][3])
	assert.Empty(t, records[3][3])
}
