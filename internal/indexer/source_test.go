package indexer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-explorer/internal/testhelpers"
	"github.com/setavenger/blindbit-explorer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// node is a fake Bitcoin Core serving a fixed chain.
type node struct {
	chain  []*wire.MsgBlock
	byHash map[chainhash.Hash]int
}

func newNode(chain []*wire.MsgBlock) *node {
	n := &node{chain: chain, byHash: make(map[chainhash.Hash]int)}
	for i, b := range chain {
		n.byHash[b.BlockHash()] = i
	}
	return n
}

func serialize(b *wire.MsgBlock) []byte {
	var buf bytes.Buffer
	_ = b.Serialize(&buf)
	return buf.Bytes()
}

func (n *node) find(s string) (int, bool) {
	hash, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return 0, false
	}
	h, ok := n.byHash[*hash]
	return h, ok
}

func (n *node) restHandler() http.Handler {
	mux := http.NewServeMux()
	tip := len(n.chain) - 1

	mux.HandleFunc("/rest/chaininfo.json", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(ChainInfo{
			Chain:         "regtest",
			Blocks:        int64(tip),
			BestBlockHash: n.chain[tip].BlockHash().String(),
		})
	})
	mux.HandleFunc("/rest/blockhashbyheight/", func(w http.ResponseWriter, r *http.Request) {
		var h int
		if _, err := fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/rest/blockhashbyheight/"), "%d.bin", &h); err != nil || h >= len(n.chain) {
			http.NotFound(w, r)
			return
		}
		hash := n.chain[h].BlockHash()
		_, _ = w.Write(hash[:])
	})
	mux.HandleFunc("/rest/block/", func(w http.ResponseWriter, r *http.Request) {
		h, ok := n.find(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/rest/block/"), ".bin"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(serialize(n.chain[h]))
	})
	mux.HandleFunc("/rest/headers/1/", func(w http.ResponseWriter, r *http.Request) {
		h, ok := n.find(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/rest/headers/1/"), ".json"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{"height": h}})
	})
	return mux
}

func (n *node) rpcHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "pass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		reply := func(result any) {
			_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "error": nil, "id": req.ID})
		}
		notFound := func() {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": nil,
				"error":  map[string]any{"code": -5, "message": "Block not found"},
				"id":     req.ID,
			})
		}
		lookup := func() (int, bool) {
			s, _ := req.Params[0].(string)
			return n.find(s)
		}

		switch req.Method {
		case "getbestblockhash":
			reply(n.chain[len(n.chain)-1].BlockHash().String())
		case "getblockhash":
			h := int(req.Params[0].(float64))
			if h >= len(n.chain) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"result": nil,
					"error":  map[string]any{"code": -8, "message": "Block height out of range"},
					"id":     req.ID,
				})
				return
			}
			reply(n.chain[h].BlockHash().String())
		case "getblock":
			h, ok := lookup()
			if !ok {
				notFound()
				return
			}
			reply(hex.EncodeToString(serialize(n.chain[h])))
		case "getblockheader":
			h, ok := lookup()
			if !ok {
				notFound()
				return
			}
			reply(map[string]any{"height": h})
		default:
			notFound()
		}
	})
}

// legacyChain is a chain whose last block carries no BIP34 height.
func legacyChain() []*wire.MsgBlock {
	chain := testhelpers.Chain(4, 1)
	chain[3].Header.Version = 1
	return chain
}

func TestRESTSource(t *testing.T) {
	chain := legacyChain()
	srv := httptest.NewServer(newNode(chain).restHandler())
	defer srv.Close()

	source := NewRESTSource(srv.URL + "/")
	ctx := context.Background()

	block, err := source.FetchByHeight(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, chain[2].BlockHash(), block.BlockHash())

	height, block, err := source.FetchByHash(ctx, chain[1].BlockHash())
	require.NoError(t, err)
	assert.Equal(t, types.BlockHeight(1), height)
	assert.Equal(t, chain[1].BlockHash(), block.BlockHash())

	// height comes from the header endpoint
	height, block, err = source.FetchBestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.BlockHeight(3), height)
	assert.Equal(t, chain[3].BlockHash(), block.BlockHash())

	_, err = source.FetchByHeight(ctx, 10)
	require.ErrorIs(t, err, ErrBadStatus)
}

func TestRPCSource(t *testing.T) {
	chain := legacyChain()
	srv := httptest.NewServer(newNode(chain).rpcHandler())
	defer srv.Close()

	source := NewRPCSource(srv.URL, "user", "pass")
	ctx := context.Background()

	block, err := source.FetchByHeight(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, chain[2].BlockHash(), block.BlockHash())

	height, block, err := source.FetchBestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.BlockHeight(3), height)
	assert.Equal(t, chain[3].BlockHash(), block.BlockHash())

	_, _, err = source.FetchByHash(ctx, testhelpers.Hash(0x99))
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -5, rpcErr.Code)

	_, err = NewRPCSource(srv.URL, "user", "wrong").FetchByHeight(ctx, 1)
	require.ErrorIs(t, err, ErrBadStatus)
}
