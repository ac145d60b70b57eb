// Package main provides a terminal client for watching a live coaching
// session and sending controls over the websocket.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/protocol"
)

// Client represents a WebSocket client.
type Client struct {
	conn   *websocket.Conn
	userID string
	done   chan struct{}
	levels bool
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// SendHello sends a hello message and waits for hello_ack.
func (c *Client) SendHello(userID, apiKey string) error {
	msg := protocol.HelloMessage{
		BaseMessage: base(protocol.TypeHello),
		UserID:      userID,
		APIKey:      apiKey,
		ClientMeta: map[string]string{
			"client": "livecoach-cli",
		},
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var head protocol.BaseMessage
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	if head.Type == protocol.TypeError {
		var errMsg protocol.ErrorMessage
		_ = json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}
	if head.Type != protocol.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", head.Type)
	}

	var ack protocol.HelloAckMessage
	if err := json.Unmarshal(data, &ack); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	c.userID = ack.UserID
	if ack.SessionID != "" {
		fmt.Printf("Live session: %s\n", ack.SessionID)
	}
	return nil
}

// SendCommand translates a typed command into a control message.
func (c *Client) SendCommand(input string) error {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil
	}

	var msg interface{}
	switch fields[0] {
	case "dismiss":
		if len(fields) < 2 {
			return fmt.Errorf("usage: dismiss <feedback_id>")
		}
		msg = protocol.DismissFeedbackMessage{BaseMessage: base(protocol.TypeDismissFeedback), FeedbackID: fields[1]}
	case "use":
		if len(fields) < 2 {
			return fmt.Errorf("usage: use <suggestion_id>")
		}
		msg = protocol.UseSuggestionMessage{BaseMessage: base(protocol.TypeUseSuggestion), SuggestionID: fields[1]}
	case "pause":
		msg = base(protocol.TypePause)
	case "resume":
		msg = base(protocol.TypeResume)
	case "screen":
		if len(fields) < 2 || (fields[1] != "on" && fields[1] != "off") {
			return fmt.Errorf("usage: screen on|off")
		}
		msg = protocol.SetScreenMessage{BaseMessage: base(protocol.TypeSetScreen), Enabled: fields[1] == "on"}
	default:
		return fmt.Errorf("unknown command: %s", fields[0])
	}
	return c.conn.WriteJSON(msg)
}

// ReadMessages reads and prints messages from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("Read error: %v", err)
			}
			return
		}

		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			log.Printf("Unmarshal error: %v", err)
			continue
		}
		if head.Type == string(domain.EventTypeAudioLevel) && !c.levels {
			continue
		}

		var pretty map[string]interface{}
		_ = json.Unmarshal(data, &pretty)
		formatted, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("\n[%s]\n%s\n", head.Type, string(formatted))
	}
}

func base(msgType string) protocol.BaseMessage {
	return protocol.BaseMessage{
		Type:      msgType,
		Ts:        time.Now().UnixMilli(),
		RequestID: "req_" + uuid.NewString(),
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/v1/ws", "WebSocket server address")
	userID := flag.String("user", "", "User ID to bind the connection to")
	apiKey := flag.String("api-key", "", "API key for authentication")
	levels := flag.Bool("levels", false, "Print audio level events")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()
	client.levels = *levels

	if err := client.SendHello(*userID, *apiKey); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}

	fmt.Printf("Connected as %s\n", client.userID)
	fmt.Println("Commands: dismiss <id>, use <id>, pause, resume, screen on|off, /quit")

	go client.ReadMessages()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		case input, ok := <-lines:
			if !ok {
				return
			}
			if input == "" {
				continue
			}
			if input == "/quit" {
				fmt.Println("Bye!")
				return
			}
			if err := client.SendCommand(input); err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}
