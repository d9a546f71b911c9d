package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/srcmax-studio/war-drafting-simulator-server/internal/card"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/config"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/httpapi"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/server"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/sim"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := newLogger(cfg.Debug)
	defer func() { _ = log.Sync() }()

	catalog, err := card.LoadCatalog(cfg.CardsPath, log)
	if err != nil {
		log.Fatal("failed to load card catalog", zap.Error(err))
	}
	log.Info("card catalog loaded", zap.Int("cards", len(catalog)))

	var narrator sim.Narrator
	var promptTemplate string
	if cfg.GenBaseURL != "" {
		raw, err := os.ReadFile(cfg.PromptPath)
		if err != nil {
			log.Fatal("failed to read prompt template", zap.Error(err))
		}
		promptTemplate = string(raw)
		narrator = sim.NewOpenAIClient(cfg.GenBaseURL, cfg.GenAPIKey, cfg.GenModel, log)
	} else {
		log.Warn("no generation endpoint configured; simulation narration disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(ctx, server.Options{
		Title:             cfg.Title,
		Owner:             cfg.Owner,
		Password:          cfg.Password,
		TLS:               cfg.TLS(),
		Catalog:           catalog,
		Narrator:          narrator,
		PromptTemplate:    promptTemplate,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTimeout:  cfg.HeartbeatTimeout,
		GraceWindow:       cfg.ReconnectGrace,
		Logger:            log,
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(srv, log),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLS()))
		var err error
		if cfg.TLS() {
			err = httpServer.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			log.Warn("TLS is not enabled; browsers on HTTPS pages will refuse to connect")
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		srv.Shutdown()
		return httpServer.Close()
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		log, _ := zap.NewDevelopment()
		return log
	}
	log, _ := zap.NewProduction()
	return log
}
