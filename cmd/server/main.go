package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/selwynn/chatrelay/internal/config"
	"github.com/selwynn/chatrelay/internal/directory"
	"github.com/selwynn/chatrelay/internal/relay"
	"github.com/selwynn/chatrelay/internal/server"
	"github.com/selwynn/chatrelay/internal/store"
)

// Exit codes surfaced to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatrelay: %v\n", err)
	}
	os.Exit(code)
}

// run wires everything together and blocks until shutdown. Keeping the
// logic out of main ensures the deferred store close runs before exit.
func run() (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return exitConfig, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return exitConfig, fmt.Errorf("config: bad log level %q: %w", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	// Failing to open the account store is startup-fatal, never retried.
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		logger.Info().Msg("closing account store")
		_ = st.Close()
	}()

	dir := directory.NewDirectory(st, logger)
	if err := dir.LoadAll(); err != nil {
		return exitRuntime, err
	}

	authn := directory.NewAuthenticator(dir, logger)
	router := relay.NewRouter(dir, authn, logger)

	gateway := server.NewGateway(router, server.Options{
		AllowedOrigins:    cfg.AllowedOrigins,
		MaxMessageSize:    cfg.MaxMessageSize,
		RateLimitBurst:    cfg.RateLimitBurst,
		RateLimitInterval: cfg.RateLimitInterval,
	}, logger)
	go gateway.Run()

	chatServer := server.NewChatServer(cfg.ChatAddr, gateway.Routes())
	assetServer := server.NewAssetServer(cfg.HTTPAddr, server.AssetRoutes(cfg.AssetsDir))

	// Listener failures abort startup; after that the relay core never
	// takes the process down.
	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", cfg.ChatAddr).Bool("tls", cfg.TLSCert != "").Msg("chat listener starting")
		if err := server.Start(chatServer, cfg.TLSCert, cfg.TLSKey); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("chat listener: %w", err)
		}
	}()
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("assets", cfg.AssetsDir).Msg("http listener starting")
		if err := server.Start(assetServer, "", ""); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listener: %w", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		shutdown(gateway, chatServer, assetServer, cfg, logger)
		return exitRuntime, err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdown(gateway, chatServer, assetServer, cfg, logger)
		return exitOK, nil
	}
}

func shutdown(gateway *server.Gateway, chatServer, assetServer *http.Server, cfg config.Config, logger zerolog.Logger) {
	if err := server.ShutdownServer(chatServer, cfg.ShutdownTimeout); err != nil {
		logger.Warn().Err(err).Msg("chat listener shutdown")
	}
	if err := server.ShutdownServer(assetServer, cfg.ShutdownTimeout); err != nil {
		logger.Warn().Err(err).Msg("http listener shutdown")
	}
	if err := gateway.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn().Err(err).Msg("gateway shutdown")
	}
}
