// Command memberkitd serves the session API over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	membergin "github.com/PaulFidika/memberkit/adapters/gin"
	"github.com/PaulFidika/memberkit/core"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := core.LoadConfigFromEnv(".env")
	log := cfg.Logger()
	if err != nil {
		log.WithError(err).Fatal("memberkitd: invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := core.Build(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("memberkitd: build runtime")
	}
	defer rt.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	membergin.Register(router.Group("/api"), membergin.Options{
		Manager:  rt.Manager,
		Verifier: rt.Verifier,
		Catalog:  rt.Catalog,
		Logger:   log,
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("memberkitd: listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("memberkitd: listen")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("memberkitd: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("memberkitd: shutdown")
	}
}
