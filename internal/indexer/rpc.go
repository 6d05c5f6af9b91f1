package indexer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-explorer/internal/logging"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

const rpcID = "blindbit-explorer"

type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	ID     string          `json:"id"`
}

// RPCSource reads blocks through the JSON-RPC interface of Bitcoin Core.
type RPCSource struct {
	endpoint string
	user     string
	pass     string
	client   *http.Client
}

var _ BlockSource = (*RPCSource)(nil)

func NewRPCSource(endpoint, user, pass string) *RPCSource {
	return &RPCSource{
		endpoint: endpoint,
		user:     user,
		pass:     pass,
		client:   httpClient,
	}
}

func (s *RPCSource) call(ctx context.Context, method string, result any, params ...any) error {
	if params == nil {
		params = []any{}
	}
	rpcData := RPCRequest{
		JSONRPC: "1.0",
		ID:      rpcID,
		Method:  method,
		Params:  params,
	}

	payload, err := json.Marshal(rpcData)
	if err != nil {
		logging.L.Err(err).Msg("error marshaling RPC data")
		return fmt.Errorf("error marshaling RPC data: %w", err)
	}

	// Prepare the request...
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(payload))
	if err != nil {
		logging.L.Err(err).Msg("error creating request")
		return fmt.Errorf("error creating request: %w", err)
	}

	logging.L.Trace().Any("req", rpcData).Msg("")

	// Set headers and auth...
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.user, s.pass)

	resp, err := s.client.Do(req)
	if err != nil {
		logging.L.Err(err).Str("method", method).Msg("error performing request")
		return fmt.Errorf("error performing request: %w", err)
	}
	defer resp.Body.Close()

	// Read and unmarshal the response...
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logging.L.Err(err).
			Int("status_code", resp.StatusCode).
			Msg("error reading response body")
		return err
	}

	var rpcResp rpcResponse
	err = json.Unmarshal(body, &rpcResp)
	if err != nil {
		if resp.StatusCode >= 400 {
			err = fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
		}
		logging.L.Err(err).
			Int("status_code", resp.StatusCode).
			Str("body", string(body)).
			Msg("error unmarshaling response")
		return err
	}

	if rpcResp.Error != nil {
		logging.L.Err(rpcResp.Error).Str("method", method).Msg("RPC error")
		return rpcResp.Error
	}

	return json.Unmarshal(rpcResp.Result, result)
}

func (s *RPCSource) bestBlockHash(ctx context.Context) (chainhash.Hash, error) {
	var hashStr string
	if err := s.call(ctx, "getbestblockhash", &hashStr); err != nil {
		return chainhash.Hash{}, err
	}
	hash, err := chainhash.NewHashFromStr(hashStr)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return *hash, nil
}

func (s *RPCSource) blockHashByHeight(ctx context.Context, height types.BlockHeight) (chainhash.Hash, error) {
	var hashStr string
	if err := s.call(ctx, "getblockhash", &hashStr, uint32(height)); err != nil {
		return chainhash.Hash{}, err
	}
	hash, err := chainhash.NewHashFromStr(hashStr)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return *hash, nil
}

func (s *RPCSource) blockByHash(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error) {
	var blockHex string
	// verbosity 0 returns the serialised block
	if err := s.call(ctx, "getblock", &blockHex, hash.String(), 0); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(blockHex)
	if err != nil {
		return nil, err
	}
	var block wire.MsgBlock
	if err = block.Deserialize(bytes.NewReader(raw)); err != nil {
		logging.L.Err(err).Str("blockhash", hash.String()).Msg("failed to decode block")
		return nil, err
	}
	return &block, nil
}

func (s *RPCSource) headerHeight(ctx context.Context, hash chainhash.Hash) (types.BlockHeight, error) {
	var header struct {
		Height int64 `json:"height"`
	}
	if err := s.call(ctx, "getblockheader", &header, hash.String(), true); err != nil {
		return 0, err
	}
	return types.BlockHeight(header.Height), nil
}

func (s *RPCSource) FetchBestBlock(ctx context.Context) (types.BlockHeight, *wire.MsgBlock, error) {
	hash, err := s.bestBlockHash(ctx)
	if err != nil {
		return 0, nil, err
	}
	return s.FetchByHash(ctx, hash)
}

func (s *RPCSource) FetchByHash(ctx context.Context, hash chainhash.Hash) (types.BlockHeight, *wire.MsgBlock, error) {
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

func (s *RPCSource) FetchByHeight(ctx context.Context, height types.BlockHeight) (*wire.MsgBlock, error) {
	hash, err := s.blockHashByHeight(ctx, height)
	if err != nil {
		logging.L.Err(err).Uint32("height", uint32(height)).Msg("failed to pull blockhash")
		return nil, err
	}
	return s.blockByHash(ctx, hash)
}
