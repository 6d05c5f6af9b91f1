package types

import (
	"fmt"
	"math"
)

// BlockHeight is the root key. Every other pointer hangs below exactly one height.
type BlockHeight uint32

func (h BlockHeight) Tx(index uint16) TxPointer {
	return TxPointer{Height: h, Index: index}
}

func (h BlockHeight) Next() BlockHeight { return h + 1 }

// TxPointer addresses a transaction by its position inside the block.
type TxPointer struct {
	Height BlockHeight
	Index  uint16
}

func NewTxPointer(height BlockHeight, index uint16) TxPointer {
	return TxPointer{Height: height, Index: index}
}

func (p TxPointer) Parent() BlockHeight { return p.Height }

func (p TxPointer) Utxo(index uint16) UtxoPointer {
	return UtxoPointer{Tx: p, Index: index}
}

func (p TxPointer) Input(index uint16) InputPointer {
	return InputPointer{Tx: p, Index: index}
}

func (p TxPointer) String() string {
	return fmt.Sprintf("%d:%d", p.Height, p.Index)
}

// UtxoPointer addresses an output produced by a transaction.
type UtxoPointer struct {
	Tx    TxPointer
	Index uint16
}

func (p UtxoPointer) Parent() TxPointer { return p.Tx }

// Asset is reserved for sub-output assets. Nothing stores assets yet.
func (p UtxoPointer) Asset(index uint8) AssetPointer {
	return AssetPointer{Utxo: p, Index: index}
}

func (p UtxoPointer) String() string {
	return fmt.Sprintf("%s:%d", p.Tx, p.Index)
}

// InputPointer addresses an input consumed by a transaction.
type InputPointer struct {
	Tx    TxPointer
	Index uint16
}

func (p InputPointer) Parent() TxPointer { return p.Tx }

func (p InputPointer) String() string {
	return fmt.Sprintf("%s:%d", p.Tx, p.Index)
}

// AssetPointer is part of the key hierarchy but unused by any entity.
type AssetPointer struct {
	Utxo  UtxoPointer
	Index uint8
}

func (p AssetPointer) Parent() UtxoPointer { return p.Utxo }

func (p AssetPointer) String() string {
	return fmt.Sprintf("%s:%d", p.Utxo, p.Index)
}

// CoinbaseSentinel is the pointer every input is bound to when it has no real
// previous output in the index. The Resolution of the input tells the cases apart.
var CoinbaseSentinel = UtxoPointer{Tx: TxPointer{Height: 0, Index: 0}, Index: 0}

// FitsPointerCount reports whether n children can all be given a 16 bit index.
func FitsPointerCount(n int) bool {
	return n <= math.MaxUint16+1
}
