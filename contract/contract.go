//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type FrameKind int

const (
	TextFrame FrameKind = iota
	BinaryFrame
	PingFrame
	PongFrame
	CloseFrame
	ErrorFrame
)

func (k FrameKind) String() string {
	switch k {
	case TextFrame:
		return "text"
	case BinaryFrame:
		return "binary"
	case PingFrame:
		return "ping"
	case PongFrame:
		return "pong"
	case CloseFrame:
		return "close"
	case ErrorFrame:
		return "error"
	default:
		return "unknown"
	}
}

// Frame is one unit read from a client connection.
// Err is only set on ErrorFrame.
type Frame struct {
	Kind    FrameKind
	Payload []byte
	Err     error
}

// Conn is an upgraded, full-duplex, message-oriented client connection.
// Frames is closed once the connection stops producing input.
// Send methods are called from a single goroutine.
type Conn interface {
	Frames() <-chan Frame
	SendText(data []byte) error
	SendPong(data []byte) error
	RemoteAddr() string
	Close() error
}

// Censor rewrites chat content, returning the censored text and the matched words.
type Censor interface {
	Censor(original string) (string, []string)
}

type SubscriberCounter interface {
	SubscriberCount() int
}
