package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/setavenger/blindbit-explorer/internal/logging"
)

func NewRouter(api *ApiHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger)
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/info", api.GetInfo)
	router.GET("/block-height", api.GetBestBlockHeight)
	router.GET("/header/:blockheight", api.FetchHeaderMiddleware, api.GetHeaderByHeight)
	router.GET("/header-by-hash/:hash", api.GetHeadersByHash)
	router.GET("/block/:blockheight/txs", api.FetchHeaderMiddleware, api.GetBlockTransactions)
	router.GET("/tx/:txid", api.GetTransaction)
	router.GET("/address/:address/utxos", api.GetAddressUtxos)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// RunServer serves until ctx is done and then shuts down gracefully.
func RunServer(ctx context.Context, api *ApiHandler, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(api),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logging.L.Info().Str("addr", addr).Msg("http server listening")
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logging.L.Err(err).Msg("could not run server")
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.L.Err(err).Msg("http server shutdown failed")
		return err
	}
	return nil
}

// requestLogger routes gin's access log through zerolog.
func requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	logging.L.Debug().
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Int("status", c.Writer.Status()).
		Dur("duration", time.Since(start)).
		Msg("http request")
}
