package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/charitychain/charitychain-api/config"
	"github.com/charitychain/charitychain-api/ledger"
	"github.com/charitychain/charitychain-api/routes"
	"github.com/charitychain/charitychain-api/store"
	"github.com/charitychain/charitychain-api/utils"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

// openStore connects the configured backend and returns a close function.
func openStore(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if cfg.DBDriver == config.DriverMemory {
		cfg.Logger.Warn("using in-memory store, data is lost on exit")
		cfg.Store = store.NewMemory()
		return func(context.Context) error { return nil }, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := store.Connect(connectCtx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	mongoStore := store.NewMongo(client, client.Database(cfg.DBName))
	if err := mongoStore.DetectTransactions(connectCtx); err != nil {
		cfg.Logger.Warn("could not detect transaction support", zap.Error(err))
	}
	if err := mongoStore.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	cfg.MongoClient = client
	cfg.Store = mongoStore
	cfg.Logger.Info("MongoDB connected",
		zap.String("db", cfg.DBName),
		zap.Bool("transactions", mongoStore.Transactional()))
	return client.Disconnect, nil
}

// wireServices attaches the ledger, mailer and image uploader to cfg.
func wireServices(cfg *config.Config) error {
	cfg.Ledger = ledger.New(cfg.Store, cfg.Logger)

	if cfg.MailEnabled() {
		cfg.Mailer = utils.NewZeptoMailer(cfg.ZeptoAPIURL, cfg.ZeptoAPIKey, cfg.EmailFrom, cfg.Logger)
	} else {
		cfg.Mailer = utils.LogMailer{Log: cfg.Logger}
	}

	if cfg.CloudinaryEnabled() {
		uploader, err := utils.NewCloudinaryUploader(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			return err
		}
		cfg.Uploader = uploader
	} else {
		cfg.Uploader = utils.DisabledUploader{}
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("database connection failed", zap.Error(err))
		return fmt.Errorf("database: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}()

	if err := wireServices(cfg); err != nil {
		return err
	}

	engine, err := routes.NewEngine(cfg)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server running", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
