package e2e

import (
	"chat-relay/domain/chat"
	"fmt"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

const readTimeout = 5 * time.Second

type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration and skips when no relay is reachable
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR is not set, skipping end-to-end suite")
	}
}

// Client is one chat participant connected to the relay under test.
type Client struct {
	s    *BaseRelaySuite
	name string
	ws   *websocket.Conn
}

// Connect dials the relay and prints a colorized header for the step
func (s *BaseRelaySuite) Connect(name string) *Client {
	header := fmt.Sprintf("  ====== %s connects ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	ws, _, err := websocket.DefaultDialer.Dial(s.Config.RelayAddr, nil)
	s.Require().NoError(err, "Failed to connect to relay at "+s.Config.RelayAddr)
	s.T().Cleanup(func() { _ = ws.Close() })
	return &Client{s: s, name: name, ws: ws}
}

func (c *Client) Say(content string) {
	data, err := chat.EncodeClientMessage(content)
	c.s.Require().NoError(err)
	c.log("SEND", data)
	c.s.Require().NoError(c.ws.WriteMessage(websocket.TextMessage, data))
}

func (c *Client) Read() chat.Envelope {
	c.s.Require().NoError(c.ws.SetReadDeadline(time.Now().Add(readTimeout)))
	_, data, err := c.ws.ReadMessage()
	c.s.Require().NoError(err, c.name+" did not receive anything")
	c.log("RECV", data)
	envelope, err := chat.Decode(data)
	c.s.Require().NoError(err)
	return envelope
}

// ExpectSilence asserts nothing arrives within the given window.
func (c *Client) ExpectSilence(window time.Duration) {
	c.s.Require().NoError(c.ws.SetReadDeadline(time.Now().Add(window)))
	_, data, err := c.ws.ReadMessage()
	c.s.Require().Error(err, "%s unexpectedly received %s", c.name, string(data))
}

// Register performs the display-name handshake.
func (c *Client) Register() {
	c.s.Require().Equal(chat.WelcomeNotice(), c.Read())
	c.Say(c.name)
	c.s.Require().Equal(chat.RegisteredNotice(c.name), c.Read())
}

func (c *Client) Close() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = c.ws.Close()
}

func (c *Client) log(direction string, data []byte) {
	if !c.s.Config.DebugJSON {
		return
	}
	line := fmt.Sprintf("%s %s %s", c.name, direction, string(data))
	if c.s.Config.Colours {
		line = color.New(color.FgCyan).Render(line)
	}
	c.s.T().Log(line)
}
