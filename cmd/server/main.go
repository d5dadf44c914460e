package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tcptalk/internal/protocol"
	"tcptalk/internal/server"
)

func main() {
	addr := flag.String("addr", fmt.Sprintf("0.0.0.0:%d", protocol.DefaultPort), "TCP address to listen on")
	wsAddr := flag.String("ws-addr", "", "HTTP address for the WebSocket gateway (empty disables it)")
	writeTimeout := flag.Duration("write-timeout", 0, "deadline for each write to a client (0 means none)")
	maxLine := flag.Int("max-line", protocol.DefaultMaxLine, "longest line relayed in one piece, in bytes")
	flag.Parse()

	srv, err := server.New(
		server.WithWriteTimeout(*writeTimeout),
		server.WithMaxLine(*maxLine),
	)
	if err != nil {
		log.Fatalf("init server: %v", err)
	}

	if *wsAddr != "" {
		go func() {
			log.Printf("[ws] listening on %s%s", *wsAddr, server.WebSocketPath)
			if err := http.ListenAndServe(*wsAddr, srv.Handler()); err != nil {
				log.Fatalf("[ws] stopped: %v", err)
			}
		}()
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	stopped := make(chan struct{})
	go func() {
		<-quit
		log.Println("[server] shutting down…")
		srv.Shutdown()
		close(stopped)
	}()

	log.Printf("[server] binding to %s", *addr)
	err = srv.ListenAndServe(*addr)
	if !errors.Is(err, server.ErrServerClosed) {
		log.Fatalf("[server] %v", err)
	}
	<-stopped
}
