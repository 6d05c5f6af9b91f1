package testhelpers

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

// BlockOf builds an already decomposed block with the given tx hashes. Each tx
// gets outputs many outputs and the inputs passed in spends, keyed by tx index.
func BlockOf(
	height types.BlockHeight, hash chainhash.Hash, txHashes []chainhash.Hash, outputs int,
	spends map[int][]types.TransientInput,
) *types.Block {
	block := &types.Block{
		Height: height,
		Header: types.BlockHeader{
			Height:    height,
			Hash:      hash,
			Timestamp: uint32(GenesisTime.Unix()) + uint32(height)*600,
		},
		Transactions: make([]types.Transaction, len(txHashes)),
	}
	for i, txHash := range txHashes {
		ptr := types.NewTxPointer(height, uint16(i))
		tx := types.Transaction{ID: ptr, Hash: txHash}
		for j := 0; j < outputs; j++ {
			tx.Utxos = append(tx.Utxos, types.Utxo{
				ID:         ptr.Utxo(uint16(j)),
				Amount:     uint64(1000 * (j + 1)),
				ScriptHash: []byte{0x51},
			})
		}
		tx.TransientInputs = spends[i]
		block.Transactions[i] = tx
		block.Weight += uint32(len(tx.Utxos) + len(tx.TransientInputs))
	}
	return block
}

// Hash returns a recognisable hash filled with b.
func Hash(b byte) chainhash.Hash {
	var h chainhash.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

// CoinbaseInput is the null outpoint.
func CoinbaseInput() types.TransientInput {
	return types.TransientInput{Index: wire.MaxPrevOutIndex}
}
