package server

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

type InfoResponse struct {
	Network     string `json:"network"`
	FirstHeight uint32 `json:"first_height"`
	Height      uint32 `json:"height"`
	BestHash    string `json:"best_hash"`
	Indexing    bool   `json:"indexing"`
}

type BlockHeightResponse struct {
	BlockHeight uint32 `json:"block_height"`
}

type HeaderResponse struct {
	Height    uint32 `json:"height"`
	Hash      string `json:"hash"`
	PrevHash  string `json:"prev_hash"`
	Timestamp uint32 `json:"timestamp"`
}

type UtxoResponse struct {
	Pointer   string   `json:"pointer"`
	Txid      string   `json:"txid,omitempty"`
	Vout      uint16   `json:"vout"`
	Amount    uint64   `json:"amount"`
	AmountBTC string   `json:"amount_btc"`
	Script    string   `json:"script"`
	Address   string   `json:"address,omitempty"`
	SpentBy   []string `json:"spent_by,omitempty"`
}

type InputResponse struct {
	Pointer    string `json:"pointer"`
	Spends     string `json:"spends"`
	Resolution string `json:"resolution"`
}

type TxResponse struct {
	Pointer string          `json:"pointer"`
	Height  uint32          `json:"height"`
	Txid    string          `json:"txid"`
	Outputs []UtxoResponse  `json:"outputs"`
	Inputs  []InputResponse `json:"inputs"`
}

var satsPerBTC = decimal.NewFromInt(btcutil.SatoshiPerBitcoin)

// formatBTC renders satoshis with the full eight decimals.
func formatBTC(sats uint64) string {
	return decimal.NewFromInt(int64(sats)).Div(satsPerBTC).StringFixed(8)
}

func newHeaderResponse(h types.BlockHeader) HeaderResponse {
	return HeaderResponse{
		Height:    uint32(h.Height),
		Hash:      h.Hash.String(),
		PrevHash:  h.PrevHash.String(),
		Timestamp: h.Timestamp,
	}
}

func newUtxoResponse(u types.Utxo, spentBy []types.InputPointer) UtxoResponse {
	resp := UtxoResponse{
		Pointer:   u.ID.String(),
		Vout:      u.ID.Index,
		Amount:    u.Amount,
		AmountBTC: formatBTC(u.Amount),
		Script:    hex.EncodeToString(u.ScriptHash),
		Address:   string(u.Address),
	}
	for _, in := range spentBy {
		resp.SpentBy = append(resp.SpentBy, in.String())
	}
	return resp
}

func newTxResponse(tx types.Transaction) TxResponse {
	resp := TxResponse{
		Pointer: tx.ID.String(),
		Height:  uint32(tx.ID.Height),
		Txid:    tx.Hash.String(),
		Outputs: make([]UtxoResponse, 0, len(tx.Utxos)),
		Inputs:  make([]InputResponse, 0, len(tx.Inputs)),
	}
	for _, u := range tx.Utxos {
		out := newUtxoResponse(u, nil)
		out.Txid = resp.Txid
		resp.Outputs = append(resp.Outputs, out)
	}
	for _, in := range tx.Inputs {
		resp.Inputs = append(resp.Inputs, InputResponse{
			Pointer:    in.ID.String(),
			Spends:     in.Spent.String(),
			Resolution: in.Resolution.String(),
		})
	}
	return resp
}
