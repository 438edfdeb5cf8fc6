package websocket

import (
	"chat-relay/contract"
	stderrors "errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn adapts a gorilla connection to contract.Conn.
// A read pump converts every inbound message, control frames included, into a contract.Frame.
type Conn struct {
	ws           *websocket.Conn
	frames       chan contract.Frame
	done         chan struct{}
	closeOnce    sync.Once
	writeMu      sync.Mutex
	writeTimeout time.Duration
	remoteAddr   string
}

func NewConn(ws *websocket.Conn, readLimit int64, writeTimeout time.Duration) *Conn {
	c := &Conn{
		ws:           ws,
		frames:       make(chan contract.Frame),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		remoteAddr:   ws.RemoteAddr().String(),
	}

	ws.SetReadLimit(readLimit)
	ws.SetPingHandler(func(appData string) error {
		c.emit(contract.Frame{Kind: contract.PingFrame, Payload: []byte(appData)})
		return nil
	})
	ws.SetPongHandler(func(appData string) error {
		c.emit(contract.Frame{Kind: contract.PongFrame, Payload: []byte(appData)})
		return nil
	})
	// Keep the default close echo, then tell the session
	replyClose := ws.CloseHandler()
	ws.SetCloseHandler(func(code int, text string) error {
		err := replyClose(code, text)
		c.emit(contract.Frame{Kind: contract.CloseFrame, Payload: []byte(text)})
		return err
	})

	go c.readPump()
	return c
}

func (c *Conn) readPump() {
	defer close(c.frames)
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if stderrors.As(err, &closeErr) {
				// The close handler already emitted the frame
				return
			}
			c.emit(contract.Frame{Kind: contract.ErrorFrame, Err: err})
			return
		}

		kind := contract.BinaryFrame
		if messageType == websocket.TextMessage {
			kind = contract.TextFrame
		}
		if !c.emit(contract.Frame{Kind: kind, Payload: data}) {
			return
		}
	}
}

// emit hands a frame to the session, giving up once the connection is closed locally.
func (c *Conn) emit(frame contract.Frame) bool {
	select {
	case c.frames <- frame:
		return true
	case <-c.done:
		return false
	}
}

func (c *Conn) Frames() <-chan contract.Frame { return c.frames }

func (c *Conn) RemoteAddr() string { return c.remoteAddr }

func (c *Conn) SendText(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) SendPong(data []byte) error {
	return c.ws.WriteControl(websocket.PongMessage, data, time.Now().Add(c.writeTimeout))
}

// Close tears the socket down without a closing handshake.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}
