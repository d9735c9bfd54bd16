package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/framepoint/relaychat/chatsync"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:3001/ws", "WebSocket address")
	nick := flag.String("nick", "cli-user", "nickname")
	state := flag.String("state", ".ws_chat_state.json", "identity state file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := chatsync.DefaultConfig()
	cfg.URL = *addr
	cfg.Nickname = *nick
	cfg.StatePath = *state

	client := chatsync.NewClient(cfg)
	defer client.Close()

	client.OnStateChanged(func(state chatsync.ConnectionState) {
		fmt.Printf("* connection %s\n", state)
	})
	client.OnRoomChanged(func(room string) {
		fmt.Printf("* now in room %s\n", room)
	})
	client.OnRoomsChanged(func(rooms []string) {
		fmt.Printf("* rooms: %s\n", strings.Join(rooms, ", "))
	})
	client.OnHistoryReplaced(func(room string, history []chatsync.Event) {
		fmt.Printf("--- %s (%d events) ---\n", room, len(history))
		for _, ev := range history {
			printEvent(ev)
		}
	})
	client.OnEventAppended(printEvent)
	client.OnCleared(func(room string) {
		fmt.Printf("* cleared %s\n", room)
	})
	client.OnError(func(err error) {
		log.Printf("engine: %v", err)
	})

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *nick)
	fmt.Println("Type to chat. Commands: /room <name>, /rooms, /create <name>, /delete <name>, /reset, /clear [room], /quit")

	inputLoop(ctx, client)
	return nil
}

func inputLoop(ctx context.Context, client *chatsync.Client) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if !strings.HasPrefix(text, "/") {
				if err := client.SendMessage(text); err != nil {
					log.Printf("send: %v", err)
				}
				continue
			}
			if !dispatch(client, text) {
				return
			}
		}
	}
}

// dispatch runs one slash command; returns false to quit.
func dispatch(client *chatsync.Client, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return false
	case "/room":
		if arg == "" {
			fmt.Printf("* current room: %s\n", client.CurrentRoom())
			return true
		}
		client.SwitchRoom(arg)
	case "/rooms":
		fmt.Printf("* rooms: %s\n", strings.Join(client.Rooms(), ", "))
	case "/create":
		if arg == "" {
			fmt.Println("usage: /create <name>")
			return true
		}
		client.CreateRoom(arg)
	case "/delete":
		if arg == "" {
			fmt.Println("usage: /delete <name>")
			return true
		}
		client.DeleteRoom(arg)
	case "/reset":
		client.DeleteAllRooms()
	case "/clear":
		client.Clear(arg)
	default:
		fmt.Printf("unknown command %s\n", cmd)
	}
	return true
}

func printEvent(ev chatsync.Event) {
	who := ev.Nickname
	if who == "" {
		who = ev.ClientID
	}
	switch ev.Type {
	case chatsync.TypeImage:
		url := ""
		if ev.Payload != nil {
			url = ev.Payload.ImageURL
		}
		fmt.Printf("[%s] %s shared an image: %s\n", ev.Room, who, url)
	default:
		fmt.Printf("[%s] %s: %s\n", ev.Room, who, ev.Text)
	}
}
