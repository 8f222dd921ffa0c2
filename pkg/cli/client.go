package cli

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	clientSend    string
	clientBinary  bool
	clientTimeout time.Duration
	clientJSON    bool
)

// clientCmd represents the client command
var clientCmd = &cobra.Command{
	Use:   "client <url>",
	Short: "Connect to an echo endpoint",
	Long: `Connect to a running echo endpoint.

Without flags this starts an interactive session: type messages and press
Enter to send, and every echo is printed back. With --send it sends one
message, waits for the echo, and exits.`,
	Example: `  # Interactive session
  blinksock client ws://192.168.4.1/ws

  # Send one message and wait for the echo
  blinksock client --send "hello" ws://192.168.4.1/ws

  # Send one binary message
  blinksock client --send "48656c6c6f" --binary ws://192.168.4.1/ws`,
	Args: cobra.ExactArgs(1),
	RunE: runClient,
}

func init() {
	rootCmd.AddCommand(clientCmd)

	clientCmd.Flags().StringVar(&clientSend, "send", "", "Send one message, wait for the echo, and exit")
	clientCmd.Flags().BoolVar(&clientBinary, "binary", false, "Send as a binary frame (--send is hex-encoded)")
	clientCmd.Flags().DurationVarP(&clientTimeout, "timeout", "t", 30*time.Second, "Connection and echo timeout")
	clientCmd.Flags().BoolVar(&clientJSON, "json", false, "Output messages in JSON format")
}

func runClient(cmd *cobra.Command, args []string) error {
	url := args[0]

	dialer := websocket.Dialer{
		HandshakeTimeout: clientTimeout,
	}

	fmt.Printf("Connecting to %s...\n", url)
	conn, resp, err := dialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connection failed: %v (HTTP %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("connection failed: %v", err)
	}
	defer conn.Close()

	if cmd.Flags().Changed("send") {
		return runClientSend(conn)
	}
	return runClientInteractive(conn)
}

// runClientSend sends one message and waits for its echo.
func runClientSend(conn *websocket.Conn) error {
	messageType := websocket.TextMessage
	payload := []byte(clientSend)
	if clientBinary {
		messageType = websocket.BinaryMessage
		decoded, err := hex.DecodeString(clientSend)
		if err != nil {
			return fmt.Errorf("--binary expects a hex-encoded payload: %v", err)
		}
		payload = decoded
	}

	if err := conn.WriteMessage(messageType, payload); err != nil {
		return fmt.Errorf("send error: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(clientTimeout))
	echoType, echo, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read error: %v", err)
	}

	printMessage("received", echoType, echo)

	if echoType != messageType || string(echo) != string(payload) {
		return fmt.Errorf("echo mismatch: sent %d bytes of %s, got %d bytes of %s",
			len(payload), messageTypeString(messageType), len(echo), messageTypeString(echoType))
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

// runClientInteractive runs a REPL session against the endpoint.
func runClientInteractive(conn *websocket.Conn) error {
	fmt.Println("Connected. Type messages and press Enter to send. Ctrl+C to exit.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nDisconnecting...")
		cancel()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()

	msgChan := make(chan wsMessage, 100)
	errChan := make(chan error, 1)

	go func() {
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					errChan <- err
					return
				}
			}
			msgChan <- wsMessage{Type: messageType, Data: message}
		}
	}()

	inputChan := make(chan string, 10)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			case inputChan <- scanner.Text():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errChan:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				fmt.Println("Connection closed by server")
				return nil
			}
			return fmt.Errorf("read error: %v", err)
		case msg := <-msgChan:
			printMessage("received", msg.Type, msg.Data)
		case input := <-inputChan:
			if input == "" {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(input)); err != nil {
				return fmt.Errorf("send error: %v", err)
			}
			printMessage("sent", websocket.TextMessage, []byte(input))
		}
	}
}

// wsMessage represents a WebSocket message.
type wsMessage struct {
	Type int
	Data []byte
}

func printMessage(direction string, messageType int, data []byte) {
	if clientJSON {
		out := map[string]any{
			"direction": direction,
			"type":      messageTypeString(messageType),
			"data":      string(data),
			"timestamp": time.Now().Format(time.RFC3339),
		}
		enc := json.NewEncoder(os.Stdout)
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to encode output: %v\n", err)
		}
		return
	}
	if direction == "sent" {
		fmt.Printf("> %s\n", string(data))
	} else {
		fmt.Printf("< %s\n", string(data))
	}
}

// messageTypeString returns a human-readable message type.
func messageTypeString(t int) string {
	switch t {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	case websocket.CloseMessage:
		return "close"
	case websocket.PingMessage:
		return "ping"
	case websocket.PongMessage:
		return "pong"
	default:
		return "unknown"
	}
}

