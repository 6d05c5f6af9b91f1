package testhelpers

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

// MemorySource serves a chain held in memory. Blocks are indexed by their
// position in the slice passed to SetChain.
type MemorySource struct {
	mu     sync.Mutex
	chain  []*wire.MsgBlock
	byHash map[chainhash.Hash]types.BlockHeight

	// MaxLatency adds a random delay in [0, MaxLatency) to every fetch.
	MaxLatency time.Duration
	// FailAt makes FetchByHeight fail for that height.
	FailAt *types.BlockHeight

	inFlight    int
	maxInFlight int
	fetched     int
}

func NewMemorySource(chain []*wire.MsgBlock) *MemorySource {
	s := &MemorySource{}
	s.SetChain(chain)
	return s
}

// SetChain swaps the served chain, e.g. to simulate a reorg.
func (s *MemorySource) SetChain(chain []*wire.MsgBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chain = chain
	s.byHash = make(map[chainhash.Hash]types.BlockHeight, len(chain))
	for i, b := range chain {
		s.byHash[b.BlockHash()] = types.BlockHeight(i)
	}
}

// MaxInFlight is the highest number of concurrent FetchByHeight calls seen.
func (s *MemorySource) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

func (s *MemorySource) Fetched() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched
}

func (s *MemorySource) sleep(ctx context.Context) error {
	if s.MaxLatency <= 0 {
		return nil
	}
	d := time.Duration(rand.Int63n(int64(s.MaxLatency)))
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *MemorySource) FetchBestBlock(ctx context.Context) (types.BlockHeight, *wire.MsgBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chain) == 0 {
		return 0, nil, fmt.Errorf("empty chain")
	}
	tip := len(s.chain) - 1
	return types.BlockHeight(tip), s.chain[tip], nil
}

func (s *MemorySource) FetchByHash(ctx context.Context, hash chainhash.Hash) (types.BlockHeight, *wire.MsgBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.byHash[hash]
	if !ok {
		return 0, nil, fmt.Errorf("unknown block %s", hash)
	}
	return h, s.chain[h], nil
}

func (s *MemorySource) FetchByHeight(ctx context.Context, height types.BlockHeight) (*wire.MsgBlock, error) {
	s.mu.Lock()
	s.inFlight++
	s.fetched++
	s.maxInFlight = max(s.maxInFlight, s.inFlight)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if err := s.sleep(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAt != nil && *s.FailAt == height {
		return nil, fmt.Errorf("injected failure at %d", height)
	}
	if int(height) >= len(s.chain) {
		return nil, fmt.Errorf("height %d beyond tip", height)
	}
	return s.chain[height], nil
}
