package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-explorer/internal/logging"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

// pooling of api calls to potentially improve performance
var httpClient = &http.Client{
	Timeout: 60 * time.Second,
	Transport: &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		// Pooling / reuse
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     0,

		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	},
}

var ErrBadStatus = errors.New("bad status code")

type ChainInfo struct {
	Chain                string  `json:"chain"`
	Blocks               int64   `json:"blocks"`
	Headers              int64   `json:"headers"`
	BestBlockHash        string  `json:"bestblockhash"`
	MedianTime           int64   `json:"mediantime"`
	VerificationProgress float64 `json:"verificationprogress"`
	InitialBlockDownload bool    `json:"initialblockdownload"`
	Pruned               bool    `json:"pruned"`
}

// RESTSource reads blocks through the unauthenticated REST interface of Bitcoin Core.
type RESTSource struct {
	endpoint string
	client   *http.Client
}

var _ BlockSource = (*RESTSource)(nil)

func NewRESTSource(endpoint string) *RESTSource {
	return &RESTSource{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client:   httpClient,
	}
}

func (s *RESTSource) get(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+path, nil)
	if err != nil {
		err = fmt.Errorf("error creating request: %w", err)
		logging.L.Err(err).Msg("error creating request")
		return nil, err
	}

	resp, err := s.client.Do(req) // <-- reuse the shared client
	if err != nil {
		err = fmt.Errorf("error performing request: %w", err)
		logging.L.Err(err).Str("url", req.URL.String()).Msg("error performing request")
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		logging.L.Error().
			Str("url", req.URL.String()).
			Str("status", resp.Status).
			Msg("bad status code")
		return nil, fmt.Errorf("%w: %s %s", ErrBadStatus, req.URL.Path, resp.Status)
	}
	return resp.Body, nil
}

func (s *RESTSource) ChainInfo(ctx context.Context) (*ChainInfo, error) {
	body, err := s.get(ctx, "/rest/chaininfo.json")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var chainInfo ChainInfo
	err = json.NewDecoder(body).Decode(&chainInfo)
	if err != nil {
		logging.L.Err(err).Msg("unable to decode body")
		return nil, err
	}
	return &chainInfo, nil
}

func (s *RESTSource) blockHashByHeight(ctx context.Context, height types.BlockHeight) (chainhash.Hash, error) {
	var blockhash chainhash.Hash
	body, err := s.get(ctx, fmt.Sprintf("/rest/blockhashbyheight/%d.bin", height))
	if err != nil {
		return blockhash, err
	}
	defer body.Close()

	_, err = io.ReadFull(body, blockhash[:])
	return blockhash, err
}

func (s *RESTSource) blockByHash(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error) {
	body, err := s.get(ctx, fmt.Sprintf("/rest/block/%s.bin", hash))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var block wire.MsgBlock
	if err = block.Deserialize(body); err != nil {
		logging.L.Err(err).Str("blockhash", hash.String()).Msg("failed to decode block")
		return nil, err
	}
	return &block, nil
}

func (s *RESTSource) headerHeight(ctx context.Context, hash chainhash.Hash) (types.BlockHeight, error) {
	body, err := s.get(ctx, fmt.Sprintf("/rest/headers/1/%s.json", hash))
	if err != nil {
		return 0, err
	}
	defer body.Close()

	var headers []struct {
		Height int64 `json:"height"`
	}
	if err = json.NewDecoder(body).Decode(&headers); err != nil {
		return 0, err
	}
	if len(headers) == 0 {
		return 0, fmt.Errorf("no header for %s", hash)
	}
	return types.BlockHeight(headers[0].Height), nil
}

func (s *RESTSource) FetchBestBlock(ctx context.Context) (types.BlockHeight, *wire.MsgBlock, error) {
	chainInfo, err := s.ChainInfo(ctx)
	if err != nil {
		return 0, nil, err
	}
	hash, err := chainhash.NewHashFromStr(chainInfo.BestBlockHash)
	if err != nil {
		return 0, nil, err
	}
	block, err := s.blockByHash(ctx, *hash)
	if err != nil {
		return 0, nil, err
	}
	return types.BlockHeight(chainInfo.Blocks), block, nil
}

func (s *RESTSource) FetchByHash(ctx context.Context, hash chainhash.Hash) (types.BlockHeight, *wire.MsgBlock, error) {
	block, err := s.blockByHash(ctx, hash)
	if err != nil {
		return 0, nil, err
	}
	height, err := blockHeight(ctx, block, hash, s.headerHeight)
	if err != nil {
		return 0, nil, err
	}
	return height, block, nil
}

func (s *RESTSource) FetchByHeight(ctx context.Context, height types.BlockHeight) (*wire.MsgBlock, error) {
	hash, err := s.blockHashByHeight(ctx, height)
	if err != nil {
		logging.L.Err(err).Uint32("height", uint32(height)).Msg("failed to pull blockhash")
		return nil, err
	}
	return s.blockByHash(ctx, hash)
}

// blockHeight prefers the coinbase commitment and asks the node otherwise.
func blockHeight(
	ctx context.Context,
	block *wire.MsgBlock,
	hash chainhash.Hash,
	lookup func(context.Context, chainhash.Hash) (types.BlockHeight, error),
) (types.BlockHeight, error) {
	if h, err := CoinbaseHeight(block); err == nil {
		return h, nil
	}
	logging.L.Debug().Str("blockhash", hash.String()).Msg("no coinbase height, asking node")
	return lookup(ctx, hash)
}
