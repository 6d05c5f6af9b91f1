package indexer

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

// ErrPointerOverflow is returned for blocks whose transactions, outputs or
// inputs cannot be addressed with 16 bit indices.
var ErrPointerOverflow = errors.New("block does not fit the pointer layout")

// DecomposeBlock splits a raw block into the entities stored by the explorer.
// Inputs are left as TransientInputs, the store resolves them.
func DecomposeBlock(height types.BlockHeight, raw *wire.MsgBlock, params *chaincfg.Params) (*types.Block, error) {
	if !types.FitsPointerCount(len(raw.Transactions)) {
		return nil, fmt.Errorf("%w: %d transactions at height %d", ErrPointerOverflow, len(raw.Transactions), height)
	}

	block := &types.Block{
		Height: height,
		Header: types.BlockHeader{
			Height:    height,
			Hash:      raw.BlockHash(),
			PrevHash:  raw.Header.PrevBlock,
			Timestamp: uint32(raw.Header.Timestamp.Unix()),
		},
		Transactions: make([]types.Transaction, len(raw.Transactions)),
	}

	var weight uint32
	for i, msgTx := range raw.Transactions {
		if !types.FitsPointerCount(len(msgTx.TxOut)) || !types.FitsPointerCount(len(msgTx.TxIn)) {
			return nil, fmt.Errorf(
				"%w: tx %d at height %d has %d inputs and %d outputs",
				ErrPointerOverflow, i, height, len(msgTx.TxIn), len(msgTx.TxOut),
			)
		}

		txPtr := types.NewTxPointer(height, uint16(i))
		tx := types.Transaction{
			ID:              txPtr,
			Hash:            msgTx.TxHash(),
			Utxos:           make([]types.Utxo, len(msgTx.TxOut)),
			TransientInputs: make([]types.TransientInput, len(msgTx.TxIn)),
		}

		for j, out := range msgTx.TxOut {
			tx.Utxos[j] = types.Utxo{
				ID:         txPtr.Utxo(uint16(j)),
				Amount:     uint64(out.Value),
				ScriptHash: out.PkScript,
				Address:    deriveAddress(out.PkScript, params),
			}
		}

		for k, in := range msgTx.TxIn {
			tx.TransientInputs[k] = types.TransientInput{
				TxHash: in.PreviousOutPoint.Hash,
				Index:  in.PreviousOutPoint.Index,
			}
		}

		weight += uint32(len(msgTx.TxIn) + len(msgTx.TxOut))
		block.Transactions[i] = tx
	}
	block.Weight = weight

	return block, nil
}
