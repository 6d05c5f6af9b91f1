package dbpebble

import (
	"encoding/binary"

	"github.com/setavenger/blindbit-explorer/internal/types"
)

func be16(u uint16, b []byte) { binary.BigEndian.PutUint16(b, u) }
func be32(u uint32, b []byte) { binary.BigEndian.PutUint32(b, u) }
func be64(u uint64, b []byte) { binary.BigEndian.PutUint64(b, u) }

func putTxPtr(p types.TxPointer, b []byte) {
	be32(uint32(p.Height), b[:SizeHeight])
	be16(p.Index, b[SizeHeight:SizeTxPtr])
}

func putUtxoPtr(p types.UtxoPointer, b []byte) {
	putTxPtr(p.Tx, b[:SizeTxPtr])
	be16(p.Index, b[SizeTxPtr:SizeUtxoPtr])
}

func putInputPtr(p types.InputPointer, b []byte) {
	putTxPtr(p.Tx, b[:SizeTxPtr])
	be16(p.Index, b[SizeTxPtr:SizeUtxoPtr])
}

func readTxPtr(b []byte) types.TxPointer {
	return types.TxPointer{
		Height: types.BlockHeight(binary.BigEndian.Uint32(b[:SizeHeight])),
		Index:  binary.BigEndian.Uint16(b[SizeHeight:SizeTxPtr]),
	}
}

func readUtxoPtr(b []byte) types.UtxoPointer {
	return types.UtxoPointer{
		Tx:    readTxPtr(b[:SizeTxPtr]),
		Index: binary.BigEndian.Uint16(b[SizeTxPtr:SizeUtxoPtr]),
	}
}

func readInputPtr(b []byte) types.InputPointer {
	return types.InputPointer{
		Tx:    readTxPtr(b[:SizeTxPtr]),
		Index: binary.BigEndian.Uint16(b[SizeTxPtr:SizeUtxoPtr]),
	}
}

// prefixUpperBound returns the smallest key greater than every key starting with p.
func prefixUpperBound(p []byte) []byte {
	ub := make([]byte, len(p))
	copy(ub, p)
	for i := len(ub) - 1; i >= 0; i-- {
		ub[i]++
		if ub[i] != 0 {
			return ub[:i+1]
		}
	}
	return nil // no upper bound
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
