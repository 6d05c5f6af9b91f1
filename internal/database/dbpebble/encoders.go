package dbpebble

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

var ErrBadValue = errors.New("bad value length")

// ---------------- Headers ----------------

func KeyHeader(height types.BlockHeight) []byte {
	k := make([]byte, 1+SizeHeight)
	k[0] = KHeader
	be32(uint32(height), k[1:])
	return k
}

func BoundsHeader() (lb, ub []byte) {
	return []byte{KHeader}, []byte{KHeader + 1}
}

func KeyHeaderByHash(hash chainhash.Hash, height types.BlockHeight) []byte {
	k := make([]byte, 1+SizeHash+SizeHeight)
	k[0] = KHeaderByHash
	copy(k[1:1+SizeHash], hash[:])
	be32(uint32(height), k[1+SizeHash:])
	return k
}

func KeyHeaderByPrev(prev chainhash.Hash, height types.BlockHeight) []byte {
	k := KeyHeaderByHash(prev, height)
	k[0] = KHeaderByPrev
	return k
}

// BoundsHashIndex covers every height filed under hash in one of the hash keyed indexes.
func BoundsHashIndex(prefix byte, hash chainhash.Hash) (lb, ub []byte) {
	lb = make([]byte, 1+SizeHash)
	lb[0] = prefix
	copy(lb[1:], hash[:])
	return lb, prefixUpperBound(lb)
}

func KeyHeaderByTime(ts uint32, height types.BlockHeight) []byte {
	k := make([]byte, 1+SizeTimestamp+SizeHeight)
	k[0] = KHeaderByTime
	be32(ts, k[1:1+SizeTimestamp])
	be32(uint32(height), k[1+SizeTimestamp:])
	return k
}

// BoundsHeaderByTime covers timestamps in [from, to].
func BoundsHeaderByTime(from, to uint32) (lb, ub []byte) {
	lb = make([]byte, 1+SizeTimestamp)
	lb[0] = KHeaderByTime
	be32(from, lb[1:])
	ub = make([]byte, 1+SizeTimestamp)
	ub[0] = KHeaderByTime
	be32(to, ub[1:])
	return lb, prefixUpperBound(ub)
}

func ValHeader(h *types.BlockHeader) []byte {
	v := make([]byte, SizeHash+SizeHash+SizeTimestamp)
	copy(v[:SizeHash], h.Hash[:])
	copy(v[SizeHash:2*SizeHash], h.PrevHash[:])
	be32(h.Timestamp, v[2*SizeHash:])
	return v
}

func ParseHeader(key, val []byte) (*types.BlockHeader, error) {
	if len(key) != 1+SizeHeight || len(val) != 2*SizeHash+SizeTimestamp {
		return nil, fmt.Errorf("header: %w", ErrBadValue)
	}
	h := &types.BlockHeader{
		Height:    types.BlockHeight(binary.BigEndian.Uint32(key[1:])),
		Timestamp: binary.BigEndian.Uint32(val[2*SizeHash:]),
	}
	copy(h.Hash[:], val[:SizeHash])
	copy(h.PrevHash[:], val[SizeHash:2*SizeHash])
	return h, nil
}

// heightFromIndexKey reads the trailing height of a header index key.
func heightFromIndexKey(k []byte) types.BlockHeight {
	return types.BlockHeight(binary.BigEndian.Uint32(k[len(k)-SizeHeight:]))
}

// ---------------- Transactions ----------------

func KeyTx(ptr types.TxPointer) []byte {
	k := make([]byte, 1+SizeTxPtr)
	k[0] = KTx
	putTxPtr(ptr, k[1:])
	return k
}

func KeyTxByHash(hash chainhash.Hash, ptr types.TxPointer) []byte {
	k := make([]byte, 1+SizeHash+SizeTxPtr)
	k[0] = KTxByHash
	copy(k[1:1+SizeHash], hash[:])
	putTxPtr(ptr, k[1+SizeHash:])
	return k
}

func txPtrFromHashKey(k []byte) types.TxPointer {
	return readTxPtr(k[1+SizeHash:])
}

// ---------------- Outputs ----------------

func KeyUtxo(ptr types.UtxoPointer) []byte {
	k := make([]byte, 1+SizeUtxoPtr)
	k[0] = KUtxo
	putUtxoPtr(ptr, k[1:])
	return k
}

func ValUtxo(amount, addrID uint64, script []byte) []byte {
	v := make([]byte, SizeAmt+SizeAddrID+len(script))
	be64(amount, v[:SizeAmt])
	be64(addrID, v[SizeAmt:SizeAmt+SizeAddrID])
	copy(v[SizeAmt+SizeAddrID:], script)
	return v
}

func ParseUtxoValue(v []byte) (amount, addrID uint64, script []byte, err error) {
	if len(v) < SizeAmt+SizeAddrID {
		return 0, 0, nil, fmt.Errorf("utxo: %w", ErrBadValue)
	}
	amount = binary.BigEndian.Uint64(v[:SizeAmt])
	addrID = binary.BigEndian.Uint64(v[SizeAmt : SizeAmt+SizeAddrID])
	script = copyBytes(v[SizeAmt+SizeAddrID:])
	return amount, addrID, script, nil
}

// ---------------- Inputs ----------------

func KeyInput(ptr types.InputPointer) []byte {
	k := make([]byte, 1+SizeUtxoPtr)
	k[0] = KInput
	putInputPtr(ptr, k[1:])
	return k
}

func ValInput(in *types.InputRef) []byte {
	v := make([]byte, SizeResolution+SizeUtxoPtr)
	v[0] = byte(in.Resolution)
	putUtxoPtr(in.Spent, v[SizeResolution:])
	return v
}

func ParseInputValue(v []byte) (types.UtxoPointer, types.Resolution, error) {
	if len(v) != SizeResolution+SizeUtxoPtr {
		return types.UtxoPointer{}, 0, fmt.Errorf("input: %w", ErrBadValue)
	}
	res := types.Resolution(v[0])
	if !res.Valid() {
		return types.UtxoPointer{}, 0, fmt.Errorf("input: unknown resolution %d", v[0])
	}
	return readUtxoPtr(v[SizeResolution:]), res, nil
}

func KeySpentBy(spent types.UtxoPointer, spender types.InputPointer) []byte {
	k := make([]byte, 1+2*SizeUtxoPtr)
	k[0] = KSpentBy
	putUtxoPtr(spent, k[1:1+SizeUtxoPtr])
	putInputPtr(spender, k[1+SizeUtxoPtr:])
	return k
}

func BoundsSpentBy(spent types.UtxoPointer) (lb, ub []byte) {
	lb = make([]byte, 1+SizeUtxoPtr)
	lb[0] = KSpentBy
	putUtxoPtr(spent, lb[1:])
	return lb, prefixUpperBound(lb)
}

// ---------------- Height scoped ranges ----------------

// BoundsAtHeight covers all keys of a height rooted key space (tx, utxo, input, spent-by).
func BoundsAtHeight(prefix byte, height types.BlockHeight) (lb, ub []byte) {
	lb = make([]byte, 1+SizeHeight)
	lb[0] = prefix
	be32(uint32(height), lb[1:])
	return lb, prefixUpperBound(lb)
}

// BoundsAtTx covers all children of one transaction in the utxo or input key space.
func BoundsAtTx(prefix byte, ptr types.TxPointer) (lb, ub []byte) {
	lb = make([]byte, 1+SizeTxPtr)
	lb[0] = prefix
	putTxPtr(ptr, lb[1:])
	return lb, prefixUpperBound(lb)
}

// ---------------- Address dictionary ----------------

func KeyAddrDict(address []byte) []byte {
	k := make([]byte, 1+len(address))
	k[0] = KAddrDict
	copy(k[1:], address)
	return k
}

func KeyAddrByID(id uint64) []byte {
	k := make([]byte, 1+SizeAddrID)
	k[0] = KAddrByID
	be64(id, k[1:])
	return k
}

func ValAddrID(id uint64) []byte {
	v := make([]byte, SizeAddrID)
	be64(id, v)
	return v
}

func ParseAddrID(v []byte) (uint64, error) {
	if len(v) != SizeAddrID {
		return 0, fmt.Errorf("address id: %w", ErrBadValue)
	}
	return binary.BigEndian.Uint64(v), nil
}

func KeyAddrUtxo(id uint64, ptr types.UtxoPointer) []byte {
	k := make([]byte, 1+SizeAddrID+SizeUtxoPtr)
	k[0] = KAddrUtxo
	be64(id, k[1:1+SizeAddrID])
	putUtxoPtr(ptr, k[1+SizeAddrID:])
	return k
}

func BoundsAddrUtxo(id uint64) (lb, ub []byte) {
	lb = make([]byte, 1+SizeAddrID)
	lb[0] = KAddrUtxo
	be64(id, lb[1:])
	return lb, prefixUpperBound(lb)
}
