package indexer

import (
	"errors"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

var errNoCoinbaseHeight = errors.New("no bip34 height in coinbase")

// CoinbaseHeight reads the height a version 2+ block commits to in the first
// push of its coinbase script.
func CoinbaseHeight(block *wire.MsgBlock) (types.BlockHeight, error) {
	if block.Header.Version < 2 || len(block.Transactions) == 0 {
		return 0, errNoCoinbaseHeight
	}
	coinbase := block.Transactions[0]
	if len(coinbase.TxIn) == 0 {
		return 0, errNoCoinbaseHeight
	}

	tokenizer := txscript.MakeScriptTokenizer(0, coinbase.TxIn[0].SignatureScript)
	if !tokenizer.Next() {
		return 0, errNoCoinbaseHeight
	}

	op := tokenizer.Opcode()
	switch {
	case op == txscript.OP_0:
		return 0, nil
	case op >= txscript.OP_1 && op <= txscript.OP_16:
		return types.BlockHeight(op - (txscript.OP_1 - 1)), nil
	}

	data := tokenizer.Data()
	if len(data) == 0 || len(data) > 4 {
		return 0, errNoCoinbaseHeight
	}
	// script numbers are little endian with a sign bit in the last byte
	if data[len(data)-1]&0x80 != 0 {
		return 0, errNoCoinbaseHeight
	}
	var h uint32
	for i := len(data) - 1; i >= 0; i-- {
		h = h<<8 | uint32(data[i])
	}
	return types.BlockHeight(h), nil
}
