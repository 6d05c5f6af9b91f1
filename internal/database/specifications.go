// database defines the interfaces for for handling db operations
package database

import (
	"errors"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrBlockExists is returned when a height is stored a second time through the append path.
	ErrBlockExists = errors.New("block already stored at height")
	// ErrHeightGap is returned when an appended block does not extend the stored chain by one.
	ErrHeightGap = errors.New("block height does not extend the stored chain")
	// ErrReplaceBelowTip is returned when a replacement stops short of the stored tip.
	ErrReplaceBelowTip = errors.New("replacement does not reach the stored tip")
)

// BlockPersistence is what the ingestion side needs from a store.
type BlockPersistence interface {
	// LastHeader returns nil and no error on an empty store.
	LastHeader() (*types.BlockHeader, error)
	HeadersByHash(hash chainhash.Hash) ([]types.BlockHeader, error)
	StoreBlocks(blocks []*types.Block) error
	ReplaceBlocks(blocks []*types.Block) error
}

// BlockReader is the read side used by the query API and tooling.
type BlockReader interface {
	LastHeader() (*types.BlockHeader, error)
	FirstHeader() (*types.BlockHeader, error)
	HeaderByHeight(height types.BlockHeight) (*types.BlockHeader, error)
	HeadersByHash(hash chainhash.Hash) ([]types.BlockHeader, error)
	TxPointersByHash(hash chainhash.Hash) ([]types.TxPointer, error)
	Transaction(ptr types.TxPointer) (*types.Transaction, error)
	BlockTransactions(height types.BlockHeight) ([]types.Transaction, error)
	SpentBy(ptr types.UtxoPointer) ([]types.InputPointer, error)
	UtxosByAddress(address string) ([]types.Utxo, error)
}
