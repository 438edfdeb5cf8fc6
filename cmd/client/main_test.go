package main

import (
	"chat-relay/domain/chat"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// newRelayStub accepts one connection and collects the client messages it reads.
func newRelayStub(t *testing.T) (string, <-chan chat.ClientMessage) {
	t.Helper()
	received := make(chan chat.ClientMessage, 8)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = ws.Close() }()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if msg, err := chat.DecodeClientMessage(data); err == nil {
				received <- msg
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/", received
}

func TestForward_Stops_Once_When_Input_Ends(t *testing.T) {
	req := require.New(t)
	url, received := newRelayStub(t)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	defer func() { _ = ws.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var stops atomic.Int32
	stop := func() {
		stops.Add(1)
		cancel()
	}

	// Given one line of input followed by end of input
	lines := make(chan string, 1)
	lines <- "Bob"
	close(lines)

	// When the input is forwarded
	code, err := forward(ctx, stop, ws, lines, make(chan error))

	// Then the line reached the relay and shutdown was requested once
	req.NoError(err)
	req.Equal(exitOK, code)
	req.Equal(int32(1), stops.Load())
	select {
	case msg := <-received:
		req.Equal("Bob", msg.Content)
	case <-time.After(time.Second):
		req.Fail("The relay never received the line")
	}
}

func TestForward_Returns_When_Server_Disconnects(t *testing.T) {
	req := require.New(t)
	url, _ := newRelayStub(t)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	defer func() { _ = ws.Close() }()

	readDone := make(chan error, 1)
	readDone <- nil

	code, err := forward(context.Background(), func() {}, ws, make(chan string), readDone)

	req.NoError(err)
	req.Equal(exitOK, code)
}
