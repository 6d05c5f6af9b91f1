package indexer

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

// BlockSource delivers raw blocks from a node. Implementations must be safe
// for concurrent use, the pipeline fetches several heights at once.
type BlockSource interface {
	FetchBestBlock(ctx context.Context) (types.BlockHeight, *wire.MsgBlock, error)
	FetchByHash(ctx context.Context, hash chainhash.Hash) (types.BlockHeight, *wire.MsgBlock, error)
	FetchByHeight(ctx context.Context, height types.BlockHeight) (*wire.MsgBlock, error)
}
