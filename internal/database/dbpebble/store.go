package dbpebble

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/pebble"
	"github.com/setavenger/blindbit-explorer/internal/database"
	"github.com/setavenger/blindbit-explorer/internal/logging"
	"github.com/setavenger/blindbit-explorer/internal/metrics"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

var errUnresolvedInputs = errors.New("transaction inputs were not resolved")

// Store is the single handle shared by ingestion and queries.
// Writes are serialised by writeMu; reads go straight to pebble.
type Store struct {
	DB *pebble.DB

	writeMu    sync.Mutex
	nextAddrID uint64
}

var _ database.BlockPersistence = (*Store)(nil)
var _ database.BlockReader = (*Store)(nil)

func NewStore(db *pebble.DB) (*Store, error) {
	s := &Store{DB: db}
	last, err := s.lastAddrID()
	if err != nil {
		logging.L.Err(err).Msg("failed to restore address counter")
		return nil, err
	}
	s.nextAddrID = last + 1
	return s, nil
}

func (s *Store) lastAddrID() (uint64, error) {
	it, err := s.DB.NewIter(&pebble.IterOptions{
		LowerBound: []byte{KAddrByID},
		UpperBound: []byte{KAddrByID + 1},
	})
	if err != nil {
		return 0, err
	}
	defer it.Close()

	if !it.Last() {
		return 0, it.Error()
	}
	k := it.Key()
	if len(k) != 1+SizeAddrID {
		return 0, fmt.Errorf("address id key: %w", ErrBadValue)
	}
	return ParseAddrID(k[1:])
}

// StoreBlocks appends blocks in order. Each block is resolved against a snapshot
// taken right before its write and committed on its own, so later blocks of the
// same call see the earlier ones.
func (s *Store) StoreBlocks(blocks []*types.Block) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	last, err := s.LastHeader()
	if err != nil {
		return err
	}

	for _, block := range blocks {
		if err = s.checkAppend(block, last); err != nil {
			logging.L.Err(err).Uint32("height", uint32(block.Height)).Msg("rejecting block")
			return err
		}
		if err = s.storeBlock(block); err != nil {
			logging.L.Err(err).Uint32("height", uint32(block.Height)).Msg("failed to store block")
			return err
		}
		last = &block.Header
	}
	return nil
}

func (s *Store) checkAppend(block *types.Block, last *types.BlockHeader) error {
	exists, err := has(s.DB, KeyHeader(block.Height))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %d", database.ErrBlockExists, block.Height)
	}
	if last != nil && block.Height != last.Height+1 {
		return fmt.Errorf("%w: got %d, last %d", database.ErrHeightGap, block.Height, last.Height)
	}
	return nil
}

func (s *Store) storeBlock(block *types.Block) error {
	start := time.Now()

	snap := s.DB.NewSnapshot()
	defer snap.Close()

	if err := resolveInputs(snap, block); err != nil {
		return err
	}

	b := s.DB.NewBatch()
	defer b.Close()

	alloc := s.newAddrAllocator(snap)
	if err := writeBlock(b, alloc, block); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return err
	}
	s.nextAddrID = alloc.next

	metrics.BlocksIndexed.Inc()
	metrics.IndexedHeight.Set(float64(block.Height))
	logging.L.Trace().
		Uint32("height", uint32(block.Height)).
		Int("txs", len(block.Transactions)).
		Dur("duration", time.Since(start)).
		Msg("block stored")
	return nil
}

// ReplaceBlocks overwrites the given heights in one atomic commit. The old
// subtrees are removed first, then the new blocks are resolved and written
// through the same indexed batch. The blocks must form a contiguous run that
// starts inside the stored range or right after it and reaches the stored tip.
func (s *Store) ReplaceBlocks(blocks []*types.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.checkReplace(blocks); err != nil {
		logging.L.Err(err).Uint32("height", uint32(blocks[0].Height)).Msg("rejecting replacement")
		return err
	}

	b := s.DB.NewIndexedBatch()
	defer b.Close()

	for _, block := range blocks {
		if err := deleteSubtree(b, block.Height); err != nil {
			logging.L.Err(err).Uint32("height", uint32(block.Height)).Msg("failed to delete block")
			return err
		}
	}

	alloc := s.newAddrAllocator(b)
	for _, block := range blocks {
		if err := resolveInputs(b, block); err != nil {
			return err
		}
		if err := writeBlock(b, alloc, block); err != nil {
			logging.L.Err(err).Uint32("height", uint32(block.Height)).Msg("failed to write replacement")
			return err
		}
	}

	if err := b.Commit(pebble.Sync); err != nil {
		logging.L.Err(err).Msg("failed to commit replace batch")
		return err
	}
	s.nextAddrID = alloc.next

	metrics.BlocksReplaced.Add(float64(len(blocks)))
	logging.L.Info().
		Uint32("from", uint32(blocks[0].Height)).
		Uint32("to", uint32(blocks[len(blocks)-1].Height)).
		Msg("blocks replaced")
	return nil
}

func (s *Store) checkReplace(blocks []*types.Block) error {
	from := blocks[0].Height
	for i, block := range blocks {
		if block.Height != from+types.BlockHeight(i) {
			return fmt.Errorf("%w: got %d, expected %d", database.ErrHeightGap, block.Height, from+types.BlockHeight(i))
		}
	}
	to := blocks[len(blocks)-1].Height

	first, err := s.FirstHeader()
	if err != nil {
		return err
	}
	if first == nil {
		return nil
	}
	last, err := s.LastHeader()
	if err != nil {
		return err
	}

	if from < first.Height || from > last.Height+1 {
		return fmt.Errorf("%w: replacement starts at %d, stored %d to %d",
			database.ErrHeightGap, from, first.Height, last.Height)
	}
	if to < last.Height {
		return fmt.Errorf("%w: replacement ends at %d, tip %d", database.ErrReplaceBelowTip, to, last.Height)
	}
	return nil
}

func writeBlock(b *pebble.Batch, alloc *addrAllocator, block *types.Block) error {
	header := block.Header
	header.Height = block.Height

	if err := b.Set(KeyHeader(block.Height), ValHeader(&header), nil); err != nil {
		return err
	}
	if err := b.Set(KeyHeaderByHash(header.Hash, block.Height), nil, nil); err != nil {
		return err
	}
	if err := b.Set(KeyHeaderByPrev(header.PrevHash, block.Height), nil, nil); err != nil {
		return err
	}
	if err := b.Set(KeyHeaderByTime(header.Timestamp, block.Height), nil, nil); err != nil {
		return err
	}

	for i := range block.Transactions {
		tx := &block.Transactions[i]
		if len(tx.Inputs) != len(tx.TransientInputs) {
			return fmt.Errorf("%w: tx %s", errUnresolvedInputs, tx.ID)
		}

		if err := b.Set(KeyTx(tx.ID), tx.Hash[:], nil); err != nil {
			return err
		}
		if err := b.Set(KeyTxByHash(tx.Hash, tx.ID), nil, nil); err != nil {
			return err
		}

		for j := range tx.Utxos {
			out := &tx.Utxos[j]
			var addrID uint64
			if len(out.Address) > 0 {
				var err error
				addrID, err = alloc.id(b, out.Address)
				if err != nil {
					return err
				}
				if err = b.Set(KeyAddrUtxo(addrID, out.ID), nil, nil); err != nil {
					return err
				}
			}
			if err := b.Set(KeyUtxo(out.ID), ValUtxo(out.Amount, addrID, out.ScriptHash), nil); err != nil {
				return err
			}
		}

		for k := range tx.Inputs {
			in := &tx.Inputs[k]
			if err := b.Set(KeyInput(in.ID), ValInput(in), nil); err != nil {
				return err
			}
			if in.Resolution == types.ResolutionResolved {
				if err := b.Set(KeySpentBy(in.Spent, in.ID), nil, nil); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// deleteSubtree removes everything rooted at height, secondary indexes included.
// Address dictionary entries stay, the dictionary is append only.
func deleteSubtree(b *pebble.Batch, height types.BlockHeight) error {
	var dels [][]byte

	val, closer, err := b.Get(KeyHeader(height))
	switch {
	case err == nil:
		header, perr := ParseHeader(KeyHeader(height), val)
		closer.Close()
		if perr != nil {
			return perr
		}
		dels = append(dels,
			KeyHeader(height),
			KeyHeaderByHash(header.Hash, height),
			KeyHeaderByPrev(header.PrevHash, height),
			KeyHeaderByTime(header.Timestamp, height),
		)
	case errors.Is(err, pebble.ErrNotFound):
	default:
		return err
	}

	lb, ub := BoundsAtHeight(KTx, height)
	err = scan(b, lb, ub, func(k, v []byte) error {
		if len(v) != SizeHash {
			return fmt.Errorf("tx: %w", ErrBadValue)
		}
		var hash chainhash.Hash
		copy(hash[:], v)
		dels = append(dels, copyBytes(k), KeyTxByHash(hash, readTxPtr(k[1:])))
		return nil
	})
	if err != nil {
		return err
	}

	lb, ub = BoundsAtHeight(KUtxo, height)
	err = scan(b, lb, ub, func(k, v []byte) error {
		_, addrID, _, perr := ParseUtxoValue(v)
		if perr != nil {
			return perr
		}
		dels = append(dels, copyBytes(k))
		if addrID != 0 {
			dels = append(dels, KeyAddrUtxo(addrID, readUtxoPtr(k[1:])))
		}
		return nil
	})
	if err != nil {
		return err
	}

	lb, ub = BoundsAtHeight(KInput, height)
	err = scan(b, lb, ub, func(k, v []byte) error {
		spent, res, perr := ParseInputValue(v)
		if perr != nil {
			return perr
		}
		dels = append(dels, copyBytes(k))
		if res == types.ResolutionResolved {
			dels = append(dels, KeySpentBy(spent, readInputPtr(k[1:])))
		}
		return nil
	})
	if err != nil {
		return err
	}

	// spends of this height's outputs recorded by other heights
	lb, ub = BoundsAtHeight(KSpentBy, height)
	err = scan(b, lb, ub, func(k, _ []byte) error {
		dels = append(dels, copyBytes(k))
		return nil
	})
	if err != nil {
		return err
	}

	for _, k := range dels {
		if err = b.Delete(k, nil); err != nil {
			return err
		}
	}
	return nil
}

// scan calls fn for every key in [lb, ub). Key and value are only valid during the call.
func scan(r pebble.Reader, lb, ub []byte, fn func(k, v []byte) error) error {
	it, err := r.NewIter(&pebble.IterOptions{LowerBound: lb, UpperBound: ub})
	if err != nil {
		return err
	}
	defer it.Close()

	for ok := it.First(); ok; ok = it.Next() {
		if err = fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

func has(r pebble.Reader, key []byte) (bool, error) {
	_, closer, err := r.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	closer.Close()
	return true, nil
}

// addrAllocator hands out dictionary ids for one write. The store's counter is
// only advanced after the write committed.
type addrAllocator struct {
	r       pebble.Reader
	next    uint64
	pending map[string]uint64
}

func (s *Store) newAddrAllocator(r pebble.Reader) *addrAllocator {
	return &addrAllocator{r: r, next: s.nextAddrID, pending: make(map[string]uint64)}
}

func (a *addrAllocator) id(b *pebble.Batch, address []byte) (uint64, error) {
	if id, ok := a.pending[string(address)]; ok {
		return id, nil
	}

	val, closer, err := a.r.Get(KeyAddrDict(address))
	switch {
	case err == nil:
		id, perr := ParseAddrID(val)
		closer.Close()
		if perr != nil {
			return 0, perr
		}
		a.pending[string(address)] = id
		return id, nil
	case errors.Is(err, pebble.ErrNotFound):
	default:
		return 0, err
	}

	id := a.next
	a.next++
	if err = b.Set(KeyAddrDict(address), ValAddrID(id), nil); err != nil {
		return 0, err
	}
	if err = b.Set(KeyAddrByID(id), address, nil); err != nil {
		return 0, err
	}
	a.pending[string(address)] = id
	return id, nil
}
