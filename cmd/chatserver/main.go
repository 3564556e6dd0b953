// Command chatserver runs the chatroom example over TCP: it accepts any
// number of clients onto one shared Room, posts an Exit state five
// seconds after starting so clients have something to observe the
// enum-replace path with, and exits cleanly one second after that.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quartzhq/noderpc/examples/chatroom"
	"github.com/quartzhq/noderpc/graph"
	"github.com/quartzhq/noderpc/logx"
	"github.com/quartzhq/noderpc/server"
)

var log = logx.Named("chatserver")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr, title string

	cmd := &cobra.Command{
		Use:   "chatserver",
		Short: "Run the noderpc chatroom demo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(addr, title)
		},
	}

	_ = godotenv.Load() // optional; missing .env is not an error

	defaultAddr := envOr("CHATSERVER_ADDR", ":4455")
	defaultTitle := envOr("CHATSERVER_ROOM_TITLE", "Room")

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "TCP listen address")
	cmd.Flags().StringVar(&title, "title", defaultTitle, "initial room title")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(addr, title string) error {
	srv := server.New[chatroom.Room[graph.ServerTag], *chatroom.Room[graph.ServerTag]]()
	hub := chatroom.NewHub(srv, title)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	defer ln.Close()
	log.Infof("listening on %s, room %q", addr, title)

	go acceptLoop(ln, hub)
	go updateLoop(srv)

	time.Sleep(5 * time.Second)
	hub.SetExit("server shutting down")
	log.Infof("room state set to exit, waiting for clients to observe it")
	time.Sleep(time.Second)
	return nil
}

// updateLoop drives the server's non-blocking per-tick drain: dropping
// dead clients and dispatching whatever RPCs arrived since the last
// tick.
func updateLoop(srv *server.Server[chatroom.Room[graph.ServerTag], *chatroom.Room[graph.ServerTag]]) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		srv.Update()
	}
}

func acceptLoop(ln net.Listener, hub *chatroom.Hub) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Errorf("accept: %v", err)
			return
		}
		sessionID := uuid.NewString()
		log.WithField("session", sessionID).Infof("client connected from %s", conn.RemoteAddr())
		if _, err := hub.AddClient(conn); err != nil {
			log.WithField("session", sessionID).Errorf("add client: %v", err)
			conn.Close()
		}
	}
}
