package dbpebble

import (
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/pebble"
	"github.com/setavenger/blindbit-explorer/internal/logging"
	"github.com/setavenger/blindbit-explorer/internal/metrics"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

// resolveInputs turns every TransientInput of block into an InputRef.
// r must reflect everything committed before block, nothing after it.
func resolveInputs(r pebble.Reader, block *types.Block) error {
	local := make(map[chainhash.Hash]int, len(block.Transactions))

	for i := range block.Transactions {
		tx := &block.Transactions[i]
		inputs := make([]types.InputRef, len(tx.TransientInputs))

		for k, in := range tx.TransientInputs {
			spent, res, err := resolveOutpoint(r, block, local, in)
			if err != nil {
				logging.L.Err(err).
					Str("txid", tx.Hash.String()).
					Uint32("height", uint32(block.Height)).
					Msg("failed to resolve input")
				return err
			}
			inputs[k] = types.InputRef{
				ID:         tx.ID.Input(uint16(k)),
				Spent:      spent,
				Resolution: res,
			}
			if res == types.ResolutionUnresolvable {
				metrics.InputsUnresolvable.Inc()
				logging.L.Warn().
					Uint32("height", uint32(block.Height)).
					Str("spender", inputs[k].ID.String()).
					Str("prev_txid", in.TxHash.String()).
					Uint32("prev_vout", in.Index).
					Msg("previous output not indexed")
			}
		}
		tx.Inputs = inputs

		// transactions may only spend from transactions before them
		if _, ok := local[tx.Hash]; !ok {
			local[tx.Hash] = i
		}
	}
	return nil
}

func resolveOutpoint(
	r pebble.Reader, block *types.Block, local map[chainhash.Hash]int, in types.TransientInput,
) (types.UtxoPointer, types.Resolution, error) {
	if in.IsNullOutpoint() {
		return types.CoinbaseSentinel, types.ResolutionCoinbase, nil
	}
	if in.Index > math.MaxUint16 {
		return types.CoinbaseSentinel, types.ResolutionUnresolvable, nil
	}

	if i, ok := local[in.TxHash]; ok {
		prev := &block.Transactions[i]
		if int(in.Index) < len(prev.Utxos) {
			return prev.Utxos[in.Index].ID, types.ResolutionResolved, nil
		}
		return types.CoinbaseSentinel, types.ResolutionUnresolvable, nil
	}

	txPtr, found, err := firstTxByHash(r, in.TxHash)
	if err != nil {
		return types.UtxoPointer{}, 0, err
	}
	if !found {
		return types.CoinbaseSentinel, types.ResolutionUnresolvable, nil
	}

	utxo := txPtr.Utxo(uint16(in.Index))
	exists, err := has(r, KeyUtxo(utxo))
	if err != nil {
		return types.UtxoPointer{}, 0, err
	}
	if !exists {
		return types.CoinbaseSentinel, types.ResolutionUnresolvable, nil
	}
	return utxo, types.ResolutionResolved, nil
}

// firstTxByHash returns the lowest pointer filed under hash.
func firstTxByHash(r pebble.Reader, hash chainhash.Hash) (types.TxPointer, bool, error) {
	lb, ub := BoundsHashIndex(KTxByHash, hash)
	it, err := r.NewIter(&pebble.IterOptions{LowerBound: lb, UpperBound: ub})
	if err != nil {
		return types.TxPointer{}, false, err
	}
	defer it.Close()

	if !it.First() {
		return types.TxPointer{}, false, it.Error()
	}
	return txPtrFromHashKey(it.Key()), true, nil
}
