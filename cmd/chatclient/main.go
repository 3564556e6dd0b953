// Command chatclient connects to a chatserver instance, prints the
// replicated room state as it changes, and sends each line of stdin as a
// chat message via RPC.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quartzhq/noderpc/client"
	"github.com/quartzhq/noderpc/examples/chatroom"
	"github.com/quartzhq/noderpc/graph"
	"github.com/quartzhq/noderpc/logx"
)

var log = logx.Named("chatclient")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "chatclient",
		Short: "Connect to the noderpc chatroom demo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(addr)
		},
	}

	_ = godotenv.Load()
	cmd.Flags().StringVar(&addr, "addr", envOr("CHATCLIENT_ADDR", "localhost:4455"), "server address")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	c, err := client.Connect[chatroom.Room[graph.ClientTag], *chatroom.Room[graph.ClientTag]](context.Background(), conn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	var title string
	c.Root().Read(func(v *chatroom.Room[graph.ClientTag]) { title = v.Title })
	fmt.Printf("joined %q\n", title)

	go pollAndPrint(c)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var chatID uint32
		c.Root().Read(func(v *chatroom.Room[graph.ClientTag]) { chatID = v.Chat.ID() })
		if err := c.Call(chatID, chatroom.ChatRPCName, func(s *graph.Serializer) error {
			msg := line
			return s.VisitString("message", &msg)
		}); err != nil {
			log.Errorf("call: %v", err)
		}
	}
	return scanner.Err()
}

// pollAndPrint drives the client's per-tick Update (draining and
// applying whatever packets arrived since the last tick) and prints
// what's new in the replicated chat log and room state since the last
// poll (demo-only: a real UI would drive Update from its own event loop
// rather than a fixed-interval ticker).
func pollAndPrint(c *client.Client[chatroom.Room[graph.ClientTag], *chatroom.Room[graph.ClientTag]]) {
	printed := 0
	exitAnnounced := false
	for c.Connection().Alive() {
		if err := c.Update(); err != nil {
			log.Errorf("update: %v", err)
			return
		}

		var chat *graph.Node[chatroom.ChatLog, *chatroom.ChatLog, graph.ClientTag]
		var state chatroom.RoomState
		c.Root().Read(func(v *chatroom.Room[graph.ClientTag]) {
			chat = v.Chat
			state = v.State
		})

		msgs := chatroom.Messages(chat)
		for _, m := range msgs[printed:] {
			fmt.Println(m)
		}
		printed = len(msgs)

		if state.Kind == chatroom.StateExit && !exitAnnounced {
			fmt.Printf("room closed: %s\n", state.ExitReason)
			exitAnnounced = true
		}

		time.Sleep(50 * time.Millisecond)
	}
}
