package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/canopy-network/canopy-frontend-sub008/internal/coordinator"
)

type APIServer struct {
	port        int
	coordinator *coordinator.Coordinator
	logger      *log.Logger
}

func NewAPIServer(port int, coord *coordinator.Coordinator, logger *log.Logger) *http.Server {
	NewAPIServer := &APIServer{
		port:        port,
		coordinator: coord,
		logger:      logger,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewAPIServer.port),
		Handler:      NewAPIServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
