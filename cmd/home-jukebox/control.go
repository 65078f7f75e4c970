package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"home-jukebox/internal/auth"
	"home-jukebox/internal/config"
	"home-jukebox/internal/library"
	"home-jukebox/internal/player"
	"home-jukebox/internal/server"
)

const tokenReloadDebounce = 500 * time.Millisecond

// controlAPI is the loopback HTTP control surface over a coordinator.
type controlAPI struct {
	server *http.Server
	tokens *auth.TokenStore
	logger *log.Logger
}

func newControlAPI(addr string, coordinator *player.Coordinator, catalog *library.Catalog, logger *log.Logger) (*controlAPI, error) {
	if err := config.ValidateListenAddr(addr); err != nil {
		return nil, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}

	tokenFile, tokensEnabled, err := config.ResolveTokenFile()
	if err != nil {
		return nil, fmt.Errorf("resolve token file: %w", err)
	}

	api := &controlAPI{logger: logger}

	var validator server.TokenValidator
	if tokensEnabled {
		api.tokens, err = auth.NewTokenStore(tokenFile, tokenReloadDebounce, logger)
		if err != nil {
			return nil, fmt.Errorf("initialise token store: %w", err)
		}
		validator = api.tokens
	} else {
		logger.Printf("JUKEBOX_TOKEN_FILE not set; control API accepts any local client")
	}

	api.server = &http.Server{
		Addr:              addr,
		Handler:           server.New(coordinator, catalog, validator, logger),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return api, nil
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (a *controlAPI) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.closeTokens()
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Printf("graceful shutdown error: %v", err)
		}
	}()

	a.logger.Printf("control API listening on %s", listener.Addr())
	err = a.server.Serve(listener)
	a.closeTokens()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *controlAPI) closeTokens() {
	if a.tokens == nil {
		return
	}
	if err := a.tokens.Close(); err != nil {
		a.logger.Printf("error closing token store: %v", err)
	}
}
