package dbpebble

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/pebble"
	"github.com/setavenger/blindbit-explorer/internal/database"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

// LastHeader returns the header with the highest height, nil on an empty store.
func (s *Store) LastHeader() (*types.BlockHeader, error) {
	return edgeHeader(s.DB, true)
}

// FirstHeader returns the header with the lowest height, nil on an empty store.
func (s *Store) FirstHeader() (*types.BlockHeader, error) {
	return edgeHeader(s.DB, false)
}

func edgeHeader(r pebble.Reader, last bool) (*types.BlockHeader, error) {
	lb, ub := BoundsHeader()
	it, err := r.NewIter(&pebble.IterOptions{LowerBound: lb, UpperBound: ub})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var ok bool
	if last {
		ok = it.Last()
	} else {
		ok = it.First()
	}
	if !ok {
		return nil, it.Error()
	}
	return ParseHeader(it.Key(), it.Value())
}

func (s *Store) HeaderByHeight(height types.BlockHeight) (*types.BlockHeader, error) {
	return headerByHeight(s.DB, height)
}

func headerByHeight(r pebble.Reader, height types.BlockHeight) (*types.BlockHeader, error) {
	key := KeyHeader(height)
	val, closer, err := r.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("header %d: %w", height, database.ErrNotFound)
		}
		return nil, err
	}
	defer closer.Close()
	return ParseHeader(key, val)
}

// HeadersByHash lists every stored header with the given hash. Usually one,
// more only if the same hash was indexed at several heights.
func (s *Store) HeadersByHash(hash chainhash.Hash) ([]types.BlockHeader, error) {
	return s.headersByIndex(KHeaderByHash, hash)
}

// HeadersByPrevHash lists the stored children of the block with the given hash.
func (s *Store) HeadersByPrevHash(prev chainhash.Hash) ([]types.BlockHeader, error) {
	return s.headersByIndex(KHeaderByPrev, prev)
}

func (s *Store) headersByIndex(prefix byte, hash chainhash.Hash) ([]types.BlockHeader, error) {
	snap := s.DB.NewSnapshot()
	defer snap.Close()

	lb, ub := BoundsHashIndex(prefix, hash)
	return collectHeaders(snap, lb, ub)
}

// HeadersByTimeRange returns headers with from <= timestamp <= to ordered by timestamp.
func (s *Store) HeadersByTimeRange(from, to uint32) ([]types.BlockHeader, error) {
	if from > to {
		return nil, nil
	}
	snap := s.DB.NewSnapshot()
	defer snap.Close()

	lb, ub := BoundsHeaderByTime(from, to)
	return collectHeaders(snap, lb, ub)
}

func collectHeaders(r pebble.Reader, lb, ub []byte) ([]types.BlockHeader, error) {
	var heights []types.BlockHeight
	err := scan(r, lb, ub, func(k, _ []byte) error {
		heights = append(heights, heightFromIndexKey(k))
		return nil
	})
	if err != nil {
		return nil, err
	}

	headers := make([]types.BlockHeader, 0, len(heights))
	for _, h := range heights {
		header, err := headerByHeight(r, h)
		if err != nil {
			return nil, err
		}
		headers = append(headers, *header)
	}
	return headers, nil
}

// TxPointersByHash lists every position a transaction hash was indexed at, lowest first.
func (s *Store) TxPointersByHash(hash chainhash.Hash) ([]types.TxPointer, error) {
	var ptrs []types.TxPointer
	lb, ub := BoundsHashIndex(KTxByHash, hash)
	err := scan(s.DB, lb, ub, func(k, _ []byte) error {
		ptrs = append(ptrs, txPtrFromHashKey(k))
		return nil
	})
	return ptrs, err
}

// Transaction loads a transaction with its outputs and resolved inputs.
func (s *Store) Transaction(ptr types.TxPointer) (*types.Transaction, error) {
	snap := s.DB.NewSnapshot()
	defer snap.Close()
	return loadTransaction(snap, ptr)
}

// BlockTransactions loads all transactions of a height in block order.
func (s *Store) BlockTransactions(height types.BlockHeight) ([]types.Transaction, error) {
	snap := s.DB.NewSnapshot()
	defer snap.Close()

	var ptrs []types.TxPointer
	lb, ub := BoundsAtHeight(KTx, height)
	err := scan(snap, lb, ub, func(k, _ []byte) error {
		ptrs = append(ptrs, readTxPtr(k[1:]))
		return nil
	})
	if err != nil {
		return nil, err
	}

	txs := make([]types.Transaction, 0, len(ptrs))
	for _, ptr := range ptrs {
		tx, err := loadTransaction(snap, ptr)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, nil
}

func loadTransaction(r pebble.Reader, ptr types.TxPointer) (*types.Transaction, error) {
	val, closer, err := r.Get(KeyTx(ptr))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("tx %s: %w", ptr, database.ErrNotFound)
		}
		return nil, err
	}
	if len(val) != SizeHash {
		closer.Close()
		return nil, fmt.Errorf("tx: %w", ErrBadValue)
	}
	tx := &types.Transaction{ID: ptr}
	copy(tx.Hash[:], val)
	closer.Close()

	lb, ub := BoundsAtTx(KUtxo, ptr)
	err = scan(r, lb, ub, func(k, v []byte) error {
		utxo, perr := parseUtxo(r, k, v)
		if perr != nil {
			return perr
		}
		tx.Utxos = append(tx.Utxos, *utxo)
		return nil
	})
	if err != nil {
		return nil, err
	}

	lb, ub = BoundsAtTx(KInput, ptr)
	err = scan(r, lb, ub, func(k, v []byte) error {
		spent, res, perr := ParseInputValue(v)
		if perr != nil {
			return perr
		}
		tx.Inputs = append(tx.Inputs, types.InputRef{
			ID:         readInputPtr(k[1:]),
			Spent:      spent,
			Resolution: res,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func parseUtxo(r pebble.Reader, k, v []byte) (*types.Utxo, error) {
	amount, addrID, script, err := ParseUtxoValue(v)
	if err != nil {
		return nil, err
	}
	utxo := &types.Utxo{
		ID:         readUtxoPtr(k[1:]),
		Amount:     amount,
		ScriptHash: script,
	}
	if addrID != 0 {
		utxo.Address, err = addressByID(r, addrID)
		if err != nil {
			return nil, err
		}
	}
	return utxo, nil
}

// Utxo loads a single output.
func (s *Store) Utxo(ptr types.UtxoPointer) (*types.Utxo, error) {
	snap := s.DB.NewSnapshot()
	defer snap.Close()
	return loadUtxo(snap, ptr)
}

func loadUtxo(r pebble.Reader, ptr types.UtxoPointer) (*types.Utxo, error) {
	key := KeyUtxo(ptr)
	val, closer, err := r.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("utxo %s: %w", ptr, database.ErrNotFound)
		}
		return nil, err
	}
	defer closer.Close()
	return parseUtxo(r, key, val)
}

// SpentBy lists the inputs recorded as spending ptr. More than one entry only
// happens when competing spends were indexed at different heights.
func (s *Store) SpentBy(ptr types.UtxoPointer) ([]types.InputPointer, error) {
	var spenders []types.InputPointer
	lb, ub := BoundsSpentBy(ptr)
	err := scan(s.DB, lb, ub, func(k, _ []byte) error {
		spenders = append(spenders, readInputPtr(k[1+SizeUtxoPtr:]))
		return nil
	})
	return spenders, err
}

// UtxosByAddress returns every indexed output paying to address, spent or not.
func (s *Store) UtxosByAddress(address string) ([]types.Utxo, error) {
	snap := s.DB.NewSnapshot()
	defer snap.Close()

	val, closer, err := snap.Get(KeyAddrDict([]byte(address)))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	id, err := ParseAddrID(val)
	closer.Close()
	if err != nil {
		return nil, err
	}

	var ptrs []types.UtxoPointer
	lb, ub := BoundsAddrUtxo(id)
	err = scan(snap, lb, ub, func(k, _ []byte) error {
		ptrs = append(ptrs, readUtxoPtr(k[1+SizeAddrID:]))
		return nil
	})
	if err != nil {
		return nil, err
	}

	utxos := make([]types.Utxo, 0, len(ptrs))
	for _, ptr := range ptrs {
		utxo, err := loadUtxo(snap, ptr)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, *utxo)
	}
	return utxos, nil
}

func (s *Store) AddressByID(id uint64) ([]byte, error) {
	return addressByID(s.DB, id)
}

func addressByID(r pebble.Reader, id uint64) ([]byte, error) {
	val, closer, err := r.Get(KeyAddrByID(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("address id %d: %w", id, database.ErrNotFound)
		}
		return nil, err
	}
	defer closer.Close()
	return copyBytes(val), nil
}

// CountKeys counts the keys of one key space.
func (s *Store) CountKeys(prefix byte) (int, error) {
	var n int
	err := scan(s.DB, []byte{prefix}, []byte{prefix + 1}, func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}

// IterateKeys walks the raw keys and values of one key space. Used by tooling.
func (s *Store) IterateKeys(prefix byte, fn func(k, v []byte) error) error {
	return scan(s.DB, []byte{prefix}, []byte{prefix + 1}, fn)
}
