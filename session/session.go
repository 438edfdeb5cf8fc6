// Package session drives one client connection: the display-name handshake
// followed by the relay of chat messages between the client and the fan-out bus.
package session

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	stderrors "errors"
	"chat-relay/observability"
	"chat-relay/runtime"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

type eventSource int

const (
	fromClient eventSource = iota
	fromBus
	fromContext
)

// loopEvent is whichever of the two sources produced first in one iteration.
type loopEvent struct {
	source   eventSource
	frame    contract.Frame
	open     bool
	envelope chat.Envelope
	err      error
}

// Session is the per-connection state machine.
// Run must be called once; everything happens on the goroutine calling it,
// so no field needs synchronization.
type Session struct {
	id          string
	conn        contract.Conn
	bus         *runtime.Bus
	censor      contract.Censor
	monitoring  *observability.MonitoringManager
	log         *slog.Logger
	state       chat.SessionState
	displayName string
	reason      error
}

// NewSession prepares a session for an already upgraded connection.
// censor may be nil when moderation is disabled.
func NewSession(log *slog.Logger, conn contract.Conn, bus *runtime.Bus,
	monitoring *observability.MonitoringManager, censor contract.Censor) *Session {
	id := uuid.NewString()
	return &Session{
		id:         id,
		conn:       conn,
		bus:        bus,
		censor:     censor,
		monitoring: monitoring,
		log:        log.With("connection_id", id, "remote_addr", conn.RemoteAddr()),
		state:      chat.Unregistered,
	}
}

func (s *Session) ID() string { return s.id }

// Run subscribes to the bus, greets the client and loops until the session terminates.
// It returns nil on an orderly end (client close, bus shutdown, context cancellation)
// and the terminating error otherwise.
func (s *Session) Run(ctx context.Context) error {
	sub, err := s.bus.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe to bus: %w", err)
	}
	defer sub.Close()

	s.monitoring.SessionOpened()
	defer s.monitoring.SessionClosed()

	s.log.Info("Connection established, waiting for username")
	if err := s.send(chat.WelcomeNotice()); err != nil {
		// The client may still receive the next notice
		s.log.Warn("Failed to send welcome message", "error", err)
	}

	for s.state != chat.Terminated {
		evt := s.next(ctx, sub)
		switch evt.source {
		case fromClient:
			s.handleClient(evt.frame, evt.open)
		case fromBus:
			s.handleBus(evt.envelope, evt.err)
		case fromContext:
			s.log.Debug("Context done, closing session")
			s.terminate(nil)
		}
	}

	s.log.Info("Disconnected", "username", s.displayName)
	return s.reason
}

// next waits on the client input and the bus subscription and returns the first to produce.
func (s *Session) next(ctx context.Context, sub *runtime.Subscription) loopEvent {
	select {
	case <-ctx.Done():
		return loopEvent{source: fromContext, err: ctx.Err()}
	case frame, open := <-s.conn.Frames():
		return loopEvent{source: fromClient, frame: frame, open: open}
	case <-sub.Ready():
		envelope, err := sub.TryReceive()
		return loopEvent{source: fromBus, envelope: envelope, err: err}
	}
}

func (s *Session) handleClient(frame contract.Frame, open bool) {
	if !open {
		s.log.Info("Client connection closed")
		s.terminate(nil)
		return
	}

	switch frame.Kind {
	case contract.TextFrame:
		s.handleText(frame.Payload)
	case contract.PingFrame:
		s.log.Debug("Received ping, sending pong")
		if err := s.conn.SendPong(frame.Payload); err != nil {
			s.log.Error("Error sending pong", "error", err)
			s.terminate(fmt.Errorf("%w: pong: %v", errors.ErrDeliveryFailed, err))
		}
	case contract.PongFrame:
		s.log.Debug("Received pong")
	case contract.CloseFrame:
		s.log.Info("Received close message from client")
		s.terminate(nil)
	case contract.ErrorFrame:
		s.log.Error("Error receiving message", "error", frame.Err)
		s.terminate(fmt.Errorf("%w: %v", errors.ErrTransport, frame.Err))
	default:
		s.log.Info("Received unhandled message type",
			"kind", frame.Kind.String(),
			"mime", mimetype.Detect(frame.Payload).String(),
			"size", len(frame.Payload))
	}
}

func (s *Session) handleText(data []byte) {
	msg, err := chat.DecodeClientMessage(data)
	if err != nil {
		s.monitoring.IncrProtocolViolations()
		s.log.Warn("Failed to decode client payload", "error", err, "raw", string(data))
		s.notify(chat.MalformedPayloadNotice())
		return
	}

	switch s.state {
	case chat.Unregistered:
		s.register(msg.Content)
	case chat.Active:
		s.relay(msg.Content)
	}
}

func (s *Session) register(proposed string) {
	name, err := chat.ValidateDisplayName(proposed)
	if err != nil {
		s.monitoring.IncrProtocolViolations()
		s.log.Info("Rejected username", "username", name, "reason", err)
		s.notify(chat.InvalidDisplayNameNotice(name))
		return
	}

	s.displayName = name
	s.transition(chat.Active)
	s.log = s.log.With("username", name)
	s.monitoring.IncrRegistered()
	s.log.Info("Username set")

	s.notify(chat.RegisteredNotice(name))
}

func (s *Session) relay(content string) {
	if s.censor != nil {
		var words []string
		if content, words = s.censor.Censor(content); len(words) > 0 {
			s.log.Info("Censored chat message", "words", strings.Join(words, ","))
		}
	}

	receivers, err := s.bus.Publish(chat.NewChatEnvelope(s.id, s.displayName, content))
	if err != nil {
		s.log.Error("Failed to broadcast message",
			"error", err, "active_receivers", s.bus.SubscriberCount())
		return
	}
	s.monitoring.IncrPublished()
	s.log.Debug("Broadcasting message", "receivers", receivers)
}

func (s *Session) handleBus(envelope chat.Envelope, err error) {
	var lagged *errors.LaggedError
	switch {
	case err == nil:
	case stderrors.As(err, &lagged):
		s.monitoring.AddDropped(lagged.Missed)
		s.log.Warn("Broadcast receiver lagged", "missed", lagged.Missed)
		return
	case stderrors.Is(err, errors.ErrNoEnvelope):
		return
	case stderrors.Is(err, errors.ErrBusClosed):
		s.log.Warn("Broadcast channel closed, closing connection")
		s.terminate(nil)
		return
	default:
		s.terminate(err)
		return
	}

	if envelope.IsFrom(s.id) {
		return
	}
	if err := s.send(envelope); err != nil {
		s.log.Error("Failed to send broadcast message", "error", err)
		s.terminate(fmt.Errorf("%w: %v", errors.ErrDeliveryFailed, err))
		return
	}
	s.monitoring.IncrDelivered()
}

// notify sends a server notice. Failing to reach the client ends the session.
func (s *Session) notify(notice chat.Envelope) {
	if err := s.send(notice); err != nil {
		s.log.Error("Failed to send server notice", "error", err)
		s.terminate(fmt.Errorf("%w: %v", errors.ErrDeliveryFailed, err))
	}
}

func (s *Session) send(envelope chat.Envelope) error {
	data, err := chat.Encode(envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return s.conn.SendText(data)
}

func (s *Session) transition(next chat.SessionState) {
	if !s.state.CanTransitionTo(next) {
		s.log.Error("Illegal session transition", "from", s.state.String(), "to", next.String())
		return
	}
	s.state = next
}

func (s *Session) terminate(reason error) {
	s.reason = reason
	s.transition(chat.Terminated)
}
