package server

import (
	"errors"
	"net/http"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/gin-gonic/gin"
	"github.com/setavenger/blindbit-explorer/internal/config"
	"github.com/setavenger/blindbit-explorer/internal/database"
	"github.com/setavenger/blindbit-explorer/internal/logging"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

// ApiHandler serves read-only queries against the indexed store.
type ApiHandler struct {
	Store database.BlockReader
}

func NewApiHandler(store database.BlockReader) *ApiHandler {
	return &ApiHandler{Store: store}
}

func (h *ApiHandler) GetInfo(c *gin.Context) {
	resp := InfoResponse{
		Network:  config.ChainToString(config.Chain),
		Indexing: config.IndexingEnabled,
	}

	first, err := h.Store.FirstHeader()
	if err != nil {
		logging.L.Err(err).Msg("error fetching first header")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not retrieve data from database",
		})
		return
	}
	last, err := h.Store.LastHeader()
	if err != nil {
		logging.L.Err(err).Msg("error fetching last header")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not retrieve data from database",
		})
		return
	}
	if first != nil && last != nil {
		resp.FirstHeight = uint32(first.Height)
		resp.Height = uint32(last.Height)
		resp.BestHash = last.Hash.String()
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ApiHandler) GetBestBlockHeight(c *gin.Context) {
	last, err := h.Store.LastHeader()
	if err != nil {
		logging.L.Err(err).Msg("error fetching last header")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not retrieve data from database",
		})
		return
	}
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "nothing indexed yet"})
		return
	}
	c.JSON(http.StatusOK, BlockHeightResponse{BlockHeight: uint32(last.Height)})
}

func (h *ApiHandler) GetHeaderByHeight(c *gin.Context) {
	header, ok := headerFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newHeaderResponse(header))
}

// GetHeadersByHash returns a list since one hash can be stored at several heights.
func (h *ApiHandler) GetHeadersByHash(c *gin.Context) {
	hash, err := chainhash.NewHashFromStr(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid block hash"})
		return
	}

	headers, err := h.Store.HeadersByHash(*hash)
	if err != nil {
		logging.L.Err(err).Str("hash", hash.String()).Msg("error fetching headers by hash")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not retrieve data from database",
		})
		return
	}
	if len(headers) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}

	resp := make([]HeaderResponse, 0, len(headers))
	for _, header := range headers {
		resp = append(resp, newHeaderResponse(header))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ApiHandler) GetBlockTransactions(c *gin.Context) {
	header, ok := headerFromContext(c)
	if !ok {
		return
	}

	txs, err := h.Store.BlockTransactions(header.Height)
	if err != nil {
		logging.L.Err(err).Uint32("height", uint32(header.Height)).Msg("error fetching block transactions")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not retrieve data from database",
		})
		return
	}

	resp := make([]TxResponse, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, newTxResponse(tx))
	}
	c.JSON(http.StatusOK, resp)
}

// GetTransaction lists every indexed occurrence of a txid, lowest height first.
func (h *ApiHandler) GetTransaction(c *gin.Context) {
	txid, err := chainhash.NewHashFromStr(c.Param("txid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid txid"})
		return
	}

	ptrs, err := h.Store.TxPointersByHash(*txid)
	if err != nil {
		logging.L.Err(err).Str("txid", txid.String()).Msg("error fetching tx pointers")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not retrieve data from database",
		})
		return
	}
	if len(ptrs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return
	}

	resp := make([]TxResponse, 0, len(ptrs))
	for _, ptr := range ptrs {
		tx, err := h.Store.Transaction(ptr)
		if err != nil {
			logging.L.Err(err).Str("pointer", ptr.String()).Msg("error fetching transaction")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "could not retrieve data from database",
			})
			return
		}
		resp = append(resp, newTxResponse(*tx))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ApiHandler) GetAddressUtxos(c *gin.Context) {
	address := c.Param("address")

	utxos, err := h.Store.UtxosByAddress(address)
	if err != nil {
		logging.L.Err(err).Str("address", address).Msg("error fetching utxos by address")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not retrieve data from database",
		})
		return
	}

	unspentOnly := c.Query("unspent") == "true"

	resp := make([]UtxoResponse, 0, len(utxos))
	for _, u := range utxos {
		spentBy, err := h.Store.SpentBy(u.ID)
		if err != nil {
			logging.L.Err(err).Str("pointer", u.ID.String()).Msg("error fetching spenders")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "could not retrieve data from database",
			})
			return
		}
		if unspentOnly && len(spentBy) > 0 {
			continue
		}
		out := newUtxoResponse(u, spentBy)
		if tx, err := h.Store.Transaction(u.ID.Tx); err == nil {
			out.Txid = tx.Hash.String()
		} else if !errors.Is(err, database.ErrNotFound) {
			logging.L.Err(err).Str("pointer", u.ID.Tx.String()).Msg("error fetching transaction")
		}
		resp = append(resp, out)
	}
	c.JSON(http.StatusOK, resp)
}

func headerFromContext(c *gin.Context) (types.BlockHeader, bool) {
	value, exists := c.Get("header")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "header not found"})
		return types.BlockHeader{}, false
	}
	header, ok := value.(*types.BlockHeader)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid header type"})
		return types.BlockHeader{}, false
	}
	return *header, true
}
