package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/gin-gonic/gin"
	"github.com/setavenger/blindbit-explorer/internal/database/dbpebble"
	"github.com/setavenger/blindbit-explorer/internal/indexer"
	"github.com/setavenger/blindbit-explorer/internal/testhelpers"
	"github.com/setavenger/blindbit-explorer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router *gin.Engine
	chain  []*wire.MsgBlock
	spend  *wire.MsgTx
}

// newFixture indexes three coinbase only blocks paying to seed 1 and a fourth
// block whose second tx spends the coinbase of height 1.
func newFixture(t *testing.T) fixture {
	t.Helper()
	store, err := dbpebble.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	chain := testhelpers.Chain(3, 1)
	spend := testhelpers.SpendTx(
		[]wire.OutPoint{testhelpers.OutPoint(chain[1].Transactions[0], 0)},
		wire.NewTxOut(30*btcutil.SatoshiPerBitcoin, testhelpers.P2PKHScript(3)),
		wire.NewTxOut(19*btcutil.SatoshiPerBitcoin, testhelpers.P2PKHScript(1)),
	)
	chain = append(chain, testhelpers.NewBlock(chain[2].BlockHash(), 3, 0,
		testhelpers.CoinbaseTx(3, 0, 50*btcutil.SatoshiPerBitcoin, testhelpers.P2PKHScript(2)),
		spend,
	))

	var blocks []*types.Block
	for h, raw := range chain {
		block, err := indexer.DecomposeBlock(types.BlockHeight(h), raw, testhelpers.Params)
		require.NoError(t, err)
		blocks = append(blocks, block)
	}
	require.NoError(t, store.StoreBlocks(blocks))

	return fixture{router: NewRouter(NewApiHandler(store)), chain: chain, spend: spend}
}

func (f fixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	f.router.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func TestBlockHeightAndInfo(t *testing.T) {
	f := newFixture(t)

	var height BlockHeightResponse
	require.Equal(t, http.StatusOK, f.get(t, "/block-height", &height))
	assert.Equal(t, uint32(3), height.BlockHeight)

	var info InfoResponse
	require.Equal(t, http.StatusOK, f.get(t, "/info", &info))
	assert.Equal(t, uint32(0), info.FirstHeight)
	assert.Equal(t, uint32(3), info.Height)
	assert.Equal(t, f.chain[3].BlockHash().String(), info.BestHash)
}

func TestHeaderRoutes(t *testing.T) {
	f := newFixture(t)

	var header HeaderResponse
	require.Equal(t, http.StatusOK, f.get(t, "/header/2", &header))
	assert.Equal(t, f.chain[2].BlockHash().String(), header.Hash)
	assert.Equal(t, f.chain[1].BlockHash().String(), header.PrevHash)
	assert.Equal(t, uint32(f.chain[2].Header.Timestamp.Unix()), header.Timestamp)

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/header/abc", nil))
	assert.Equal(t, http.StatusNotFound, f.get(t, "/header/99", nil))

	var byHash []HeaderResponse
	require.Equal(t, http.StatusOK, f.get(t, "/header-by-hash/"+f.chain[1].BlockHash().String(), &byHash))
	require.Len(t, byHash, 1)
	assert.Equal(t, uint32(1), byHash[0].Height)

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/header-by-hash/zz", nil))
	assert.Equal(t, http.StatusNotFound, f.get(t, "/header-by-hash/"+testhelpers.Hash(0x44).String(), nil))
}

func TestTransactionRoutes(t *testing.T) {
	f := newFixture(t)

	var txs []TxResponse
	require.Equal(t, http.StatusOK, f.get(t, "/block/3/txs", &txs))
	require.Len(t, txs, 2)
	assert.Equal(t, "3:0", txs[0].Pointer)
	require.Len(t, txs[0].Inputs, 1)
	assert.Equal(t, "coinbase", txs[0].Inputs[0].Resolution)

	var byID []TxResponse
	require.Equal(t, http.StatusOK, f.get(t, "/tx/"+f.spend.TxHash().String(), &byID))
	require.Len(t, byID, 1)
	tx := byID[0]
	assert.Equal(t, "3:1", tx.Pointer)
	require.Len(t, tx.Inputs, 1)
	assert.Equal(t, "resolved", tx.Inputs[0].Resolution)
	assert.Equal(t, "1:0:0", tx.Inputs[0].Spends)
	require.Len(t, tx.Outputs, 2)
	assert.Equal(t, "30.00000000", tx.Outputs[0].AmountBTC)
	assert.Equal(t, testhelpers.P2PKHAddress(3).EncodeAddress(), tx.Outputs[0].Address)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/tx/"+testhelpers.Hash(0x45).String(), nil))
}

func TestAddressUtxos(t *testing.T) {
	f := newFixture(t)
	addr := testhelpers.P2PKHAddress(1).EncodeAddress()

	var utxos []UtxoResponse
	require.Equal(t, http.StatusOK, f.get(t, "/address/"+addr+"/utxos", &utxos))
	require.Len(t, utxos, 4)
	assert.Equal(t, "1:0:0", utxos[1].Pointer)
	assert.Equal(t, []string{"3:1:0"}, utxos[1].SpentBy)
	assert.Equal(t, f.chain[1].Transactions[0].TxHash().String(), utxos[1].Txid)
	assert.Equal(t, "50.00000000", utxos[1].AmountBTC)
	assert.Equal(t, "19.00000000", utxos[3].AmountBTC)

	var unspent []UtxoResponse
	require.Equal(t, http.StatusOK, f.get(t, "/address/"+addr+"/utxos?unspent=true", &unspent))
	assert.Len(t, unspent, 3)
	for _, u := range unspent {
		assert.Empty(t, u.SpentBy)
	}

	var none []UtxoResponse
	require.Equal(t, http.StatusOK, f.get(t, "/address/unknown/utxos", &none))
	assert.Empty(t, none)
}

func TestFormatBTC(t *testing.T) {
	assert.Equal(t, "0.00000000", formatBTC(0))
	assert.Equal(t, "0.00000546", formatBTC(546))
	assert.Equal(t, "21000000.00000000", formatBTC(21_000_000*btcutil.SatoshiPerBitcoin))
}
