package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/deepfake-detector/internal/classifier"
	"github.com/example/deepfake-detector/internal/config"
	"github.com/example/deepfake-detector/internal/handlers"
	"github.com/example/deepfake-detector/internal/imagecheck"
	"github.com/example/deepfake-detector/internal/imagestore"
	"github.com/example/deepfake-detector/internal/logging"
	"github.com/example/deepfake-detector/internal/shell"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	gin.SetMode(gin.ReleaseMode)
	router, sh, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	logger.Info("detector listening",
		zap.String("addr", server.Addr),
		zap.String("classifier_policy", cfg.Classifier.Policy),
		zap.Duration("classifier_delay", cfg.Classifier.DelayDuration()),
	)
	err = serveHTTPServer(server, serveOptions{
		shutdownTimeout: cfg.Server.ShutdownTimeoutDuration(),
		logger:          logger,
		onShutdown:      []func(){sh.Close},
	})
	if err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// newApp wires the image store, mock classifier and shell behind a gin router.
func newApp(cfg *config.Config, logger *zap.Logger) (*gin.Engine, *shell.Shell, error) {
	store := imagestore.NewStore(logger)
	mock := classifier.NewMockClassifier(
		cfg.Classifier.DelayDuration(),
		classifier.Policy(cfg.Classifier.Policy),
		cfg.Classifier.Seed,
		logger,
	)
	sh := shell.New(mock, store, logger)
	inspector := imagecheck.NewInspector(cfg.Upload.MaxBytes)

	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger.Named("http")))
	r.MaxMultipartMemory = cfg.Upload.MaxBytes
	if err := handlers.RegisterRoutes(r, sh, store, inspector, logger.Named("handlers")); err != nil {
		sh.Close()
		return nil, nil, err
	}
	return r, sh, nil
}

type serveOptions struct {
	shutdownTimeout time.Duration
	logger          *zap.Logger
	// listener is used instead of ListenAndServe when set.
	listener net.Listener
	// signals replaces SIGINT/SIGTERM notification when set.
	signals <-chan os.Signal
	// onShutdown runs after the server has stopped, whatever the exit path.
	onShutdown []func()
}

func serveHTTPServer(server *http.Server, opts serveOptions) error {
	defer func() {
		for _, fn := range opts.onShutdown {
			fn()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		var err error
		if opts.listener != nil {
			err = server.Serve(opts.listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := opts.signals
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		opts.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
