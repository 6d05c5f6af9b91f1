package types

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Block is the decomposed form of one raw block.
// Weight is only used to size ingestion batches and is never persisted.
type Block struct {
	Height       BlockHeight
	Header       BlockHeader
	Transactions []Transaction
	Weight       uint32
}

type BlockHeader struct {
	Height    BlockHeight
	Hash      chainhash.Hash
	PrevHash  chainhash.Hash
	Timestamp uint32
}

func (h *BlockHeader) Time() time.Time {
	return time.Unix(int64(h.Timestamp), 0).UTC()
}

type Transaction struct {
	ID     TxPointer
	Hash   chainhash.Hash
	Utxos  []Utxo
	Inputs []InputRef

	// TransientInputs are filled by decomposition and turned into Inputs by the
	// resolver right before the block is written.
	TransientInputs []TransientInput
}

type Utxo struct {
	ID         UtxoPointer
	Amount     uint64
	ScriptHash []byte
	// Address is the encoded address string as bytes, empty if none could be derived.
	Address []byte
}

// InputRef is an input after resolution. Spent points at the consumed output.
type InputRef struct {
	ID         InputPointer
	Spent      UtxoPointer
	Resolution Resolution
}

// TransientInput is the unresolved outpoint as it appears in the raw transaction.
type TransientInput struct {
	TxHash chainhash.Hash
	Index  uint32
}

// IsNullOutpoint is true for the previous outpoint of a coinbase input.
func (t TransientInput) IsNullOutpoint() bool {
	return t.Index == ^uint32(0) && t.TxHash == (chainhash.Hash{})
}

