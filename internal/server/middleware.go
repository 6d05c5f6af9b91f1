package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/setavenger/blindbit-explorer/internal/database"
	"github.com/setavenger/blindbit-explorer/internal/logging"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

// FetchHeaderMiddleware resolves the :blockheight parameter into the stored
// header and puts it into the gin context under "header".
func (h *ApiHandler) FetchHeaderMiddleware(c *gin.Context) {
	heightStr := c.Param("blockheight")
	if heightStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "block height is required"})
		c.Abort()
		return
	}

	height, err := strconv.ParseUint(heightStr, 10, 32)
	if err != nil {
		logging.L.Debug().Err(err).Str("param", heightStr).Msg("could not parse block height")
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse block height"})
		c.Abort()
		return
	}

	header, err := h.Store.HeaderByHeight(types.BlockHeight(height))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
			c.Abort()
			return
		}
		logging.L.Err(err).Uint64("height", height).Msg("could not fetch header")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch header"})
		c.Abort()
		return
	}

	c.Set("header", header)
	c.Next()
}
