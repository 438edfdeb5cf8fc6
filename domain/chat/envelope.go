// Package chat contains core concepts of the relay.
// This file defines the Envelope exchanged between sessions and its JSON wire format.
// Envelopes are immutable values and are validated on decode.
package chat

import (
	"chat-relay/errors"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// ServerName is the reserved display name carried by server notices.
const ServerName = "Server"

// Envelope is the unit of chat content exchanged through the fan-out bus.
// SenderID is only set on envelopes built from a real client message.
type Envelope struct {
	SenderID    *string `json:"sender_addr"`
	DisplayName *string `json:"username"`
	Content     string  `json:"content"`
}

// ClientMessage is the only shape a client is allowed to send.
type ClientMessage struct {
	Content string
}

type wireEnvelope struct {
	SenderID    *string `json:"sender_addr"`
	DisplayName *string `json:"username"`
	Content     *string `json:"content"`
}

type wireClientMessage struct {
	Content *string `json:"content"`
}

// NewChatEnvelope builds the envelope published when an active session relays a message.
func NewChatEnvelope(senderID, displayName, content string) Envelope {
	return Envelope{
		SenderID:    lo.ToPtr(senderID),
		DisplayName: lo.ToPtr(displayName),
		Content:     content,
	}
}

// NewServerNotice builds an envelope without sender identity, signed with the reserved name.
func NewServerNotice(content string) Envelope {
	return Envelope{
		DisplayName: lo.ToPtr(ServerName),
		Content:     content,
	}
}

// IsFrom reports whether the envelope was published by the given connection.
func (e Envelope) IsFrom(connectionID string) bool {
	return e.SenderID != nil && *e.SenderID == connectionID
}

func (e Envelope) IsServerNotice() bool {
	return e.SenderID == nil && lo.FromPtr(e.DisplayName) == ServerName
}

// Encode always emits the three fields, absent values being written as null.
func Encode(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a full envelope. The content field is required.
func Decode(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	if w.Content == nil {
		return Envelope{}, fmt.Errorf("%w: missing field content", errors.ErrMalformedPayload)
	}
	return Envelope{
		SenderID:    w.SenderID,
		DisplayName: w.DisplayName,
		Content:     *w.Content,
	}, nil
}

// EncodeClientMessage produces {"content": "..."} as a client would send it.
func EncodeClientMessage(content string) ([]byte, error) {
	return json.Marshal(wireClientMessage{Content: &content})
}

// DecodeClientMessage parses a client payload. Extra fields are ignored,
// a missing or non-string content is reported as ErrMalformedPayload.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var w wireClientMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	if w.Content == nil {
		return ClientMessage{}, fmt.Errorf("%w: missing field content", errors.ErrMalformedPayload)
	}
	return ClientMessage{Content: *w.Content}, nil
}
