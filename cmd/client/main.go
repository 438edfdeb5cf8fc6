package main

import (
	"bufio"
	"chat-relay/domain/chat"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2

	writeWait = 10 * time.Second
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run connects to the relay, prints every envelope it receives and sends each stdin line as a message.
// The first line is the display name.
func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	color.Enable = config.Colours

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerAddr, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to connect to %s: %w", config.ServerAddr, err)
	}
	defer func() { _ = ws.Close() }()
	logger.Info("Connected", "address", config.ServerAddr)

	readDone := make(chan error, 1)
	go func() { readDone <- readLoop(ws, logger) }()

	lines := make(chan string)
	go scanLines(lines)

	return forward(ctx, stop, ws, lines, readDone)
}

// forward sends every input line to the relay until the context ends or the server goes away.
// Exhausted input calls stop once so the client closes cleanly.
func forward(ctx context.Context, stop context.CancelFunc, ws *websocket.Conn,
	lines <-chan string, readDone <-chan error) (int, error) {
	for {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return exitOK, nil
		case err := <-readDone:
			if err != nil {
				return exitRuntime, err
			}
			color.Warn.Println("Disconnected from chat server.")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				stop()
				continue
			}
			data, err := chat.EncodeClientMessage(line)
			if err != nil {
				return exitRuntime, err
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return exitRuntime, fmt.Errorf("failed to send message: %w", err)
			}
		}
	}
}

// readLoop returns nil when the server closes the connection normally.
func readLoop(ws *websocket.Conn, logger *slog.Logger) error {
	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
		if messageType != websocket.TextMessage {
			logger.Debug("Ignoring non text message", "type", messageType)
			continue
		}

		envelope, err := chat.Decode(data)
		if err != nil {
			logger.Warn("Cannot parse server message", "error", err)
			continue
		}
		printEnvelope(envelope)
	}
}

func printEnvelope(envelope chat.Envelope) {
	if envelope.IsServerNotice() {
		color.New(color.FgCyan, color.OpItalic).Println(envelope.Content)
		return
	}
	name := "anonymous"
	if envelope.DisplayName != nil {
		name = *envelope.DisplayName
	}
	fmt.Printf("%s %s\n", color.Green.Sprintf("%s:", name), envelope.Content)
}

func scanLines(lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}
