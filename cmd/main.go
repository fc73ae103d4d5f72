package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/canopy-network/canopy-frontend-sub008/internal/api"
	"github.com/canopy-network/canopy-frontend-sub008/internal/chain"
	"github.com/canopy-network/canopy-frontend-sub008/internal/channel"
	"github.com/canopy-network/canopy-frontend-sub008/internal/config"
	"github.com/canopy-network/canopy-frontend-sub008/internal/coordinator"
	"github.com/canopy-network/canopy-frontend-sub008/internal/tracker"
)

func initServer(server *http.Server, done chan bool, logger *log.Logger) {
	// Start the server in a separate goroutine
	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			panic(fmt.Sprintf("server error: %s", err))
		}
	}()

	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Println("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("Server forced to shutdown with error: %v", err)
	}

	logger.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "coordinator: ", log.LstdFlags)

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// EVM wallet connection
	wallet, err := chain.NewRPCWallet(ctx, chain.RPCWalletConfig{
		RPCURL:        cfg.EVMRPCURL,
		PrivateKeyHex: cfg.EVMPrivateKey,
	}, logger)
	if err != nil {
		logger.Fatalf("failed to connect EVM wallet: %v", err)
	}

	// Native-ledger collaborators
	ledger := chain.NewLedgerClient(cfg.LedgerAPIURL, logger)
	signer := chain.NewRemoteSigner(cfg.SignerURL)

	// Order tracker and coordinators
	tr := tracker.New(logger)
	coord := coordinator.New(coordinator.Config{
		RequiredNetwork: cfg.RequiredNetwork,
	}, wallet, ledger, signer, tr, logger)

	// Real-time update channel
	ch := channel.NewClient(channel.Options{
		URL:                  cfg.ChannelURL,
		ReconnectInterval:    cfg.ReconnectInterval,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, logger)
	coord.BindChannel(ch)

	if cfg.ChannelURL != "" {
		if err := ch.Connect(ctx); err != nil {
			// The coordinator still works without live updates; the backend
			// push only corrects local optimism earlier.
			logger.Printf("realtime channel unavailable: %v", err)
		} else {
			ch.Subscribe("orders", nil)
			ch.Subscribe("prices", nil)
		}
	}

	// Create the UI-facing API server
	apiServer := api.NewAPIServer(cfg.APIPort, coord, logger)

	// Create done channel to signal when the shutdown is complete
	apiDone := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go initServer(apiServer, apiDone, logger)

	// Wait for the graceful shutdown to complete
	<-apiDone
	logger.Println("API server shutdown complete.")

	logger.Println("Server down, now closing the channel and tracker...")
	ch.Disconnect()
	tr.Close()

	logger.Println("Graceful shutdown complete.")
}
