package main

import (
	"io"
	"log"
	"net/http"
	"syscall"
	"testing"
	"time"
)

func TestInitServerShutsDownOnSignal(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}

	done := make(chan bool, 1)
	go initServer(server, done, logger)

	// Give the listener and the signal handler a moment to install.
	time.Sleep(100 * time.Millisecond)

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("send SIGTERM: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after SIGTERM")
	}
}
