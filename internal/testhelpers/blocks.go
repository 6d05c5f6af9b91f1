// Package testhelpers builds synthetic chains for tests.
package testhelpers

import (
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// GenesisTime is the timestamp of height 0 in synthetic chains. Each height adds ten minutes.
var GenesisTime = time.Unix(1_700_000_000, 0)

var Params = &chaincfg.RegressionNetParams

// CoinbaseTx pays value to pkScript and commits to height like a BIP34 coinbase.
// tag separates coinbases of competing blocks at the same height.
func CoinbaseTx(height uint32, tag byte, value int64, pkScript []byte) *wire.MsgTx {
	sigScript, err := txscript.NewScriptBuilder().
		AddInt64(int64(height)).
		AddData([]byte{tag, 0x42}).
		Script()
	if err != nil {
		panic(err)
	}

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex),
		SignatureScript:  sigScript,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(value, pkScript))
	return tx
}

// SpendTx spends the given outpoints into outputs.
func SpendTx(prevouts []wire.OutPoint, outputs ...*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	for i := range prevouts {
		tx.AddTxIn(wire.NewTxIn(&prevouts[i], nil, nil))
	}
	for _, out := range outputs {
		tx.AddTxOut(out)
	}
	return tx
}

func OutPoint(tx *wire.MsgTx, index uint32) wire.OutPoint {
	return *wire.NewOutPoint(ptr(tx.TxHash()), index)
}

func ptr(h chainhash.Hash) *chainhash.Hash { return &h }

// NewBlock assembles a version 2 block on top of prev.
func NewBlock(prev chainhash.Hash, height uint32, nonce uint32, txs ...*wire.MsgTx) *wire.MsgBlock {
	block := wire.NewMsgBlock(&wire.BlockHeader{
		Version:   2,
		PrevBlock: prev,
		Timestamp: GenesisTime.Add(time.Duration(height) * 10 * time.Minute),
		Bits:      0x207fffff,
		Nonce:     nonce,
	})
	for _, tx := range txs {
		_ = block.AddTransaction(tx)
	}
	return block
}

// PubKey returns a deterministic compressed public key for seed.
func PubKey(seed byte) *btcec.PublicKey {
	var secret [32]byte
	secret[31] = seed
	secret[0] = 0x01
	priv, _ := btcec.PrivKeyFromBytes(secret[:])
	return priv.PubKey()
}

// P2PKHScript pays to the hash of PubKey(seed).
func P2PKHScript(seed byte) []byte {
	script, err := txscript.PayToAddrScript(P2PKHAddress(seed))
	if err != nil {
		panic(err)
	}
	return script
}

func P2PKHAddress(seed byte) *btcutil.AddressPubKeyHash {
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(PubKey(seed).SerializeCompressed()), Params)
	if err != nil {
		panic(err)
	}
	return addr
}

// P2PKScript is <33 byte key> OP_CHECKSIG.
func P2PKScript(seed byte) []byte {
	script, err := txscript.NewScriptBuilder().
		AddData(PubKey(seed).SerializeCompressed()).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		panic(err)
	}
	return script
}

// Chain builds n linked blocks starting at height 0. Every block only holds a
// coinbase paying 50 BTC to P2PKHScript(seed).
func Chain(n int, seed byte) []*wire.MsgBlock {
	return Extend(nil, chainhash.Hash{}, 0, n, seed)
}

// Extend appends n coinbase only blocks on top of prev at height start.
func Extend(blocks []*wire.MsgBlock, prev chainhash.Hash, start uint32, n int, seed byte) []*wire.MsgBlock {
	for i := 0; i < n; i++ {
		height := start + uint32(i)
		block := NewBlock(prev, height, uint32(seed),
			CoinbaseTx(height, seed, 50*btcutil.SatoshiPerBitcoin, P2PKHScript(seed)),
		)
		blocks = append(blocks, block)
		prev = block.BlockHash()
	}
	return blocks
}
