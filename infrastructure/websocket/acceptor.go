package websocket

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/session"
	"chat-relay/web"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Acceptor upgrades incoming connections and runs one session per connection.
// Requests that are not WebSocket upgrades are served by a small HTTP mux
// (health probe and the browser frontend).
type Acceptor struct {
	log          *slog.Logger
	bus          *runtime.Bus
	monitoring   *observability.MonitoringManager
	censor       contract.Censor
	upgrader     websocket.Upgrader
	mux          *http.ServeMux
	readLimit    int64
	writeTimeout time.Duration
	sessions     sync.WaitGroup
}

// NewAcceptor builds the handler. censor may be nil.
func NewAcceptor(log *slog.Logger, bus *runtime.Bus, monitoring *observability.MonitoringManager,
	censor contract.Censor, readLimit int64, writeTimeout time.Duration) *Acceptor {
	a := &Acceptor{
		log:        log,
		bus:        bus,
		monitoring: monitoring,
		censor:     censor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same-origin checks are left to a fronting proxy
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		readLimit:    readLimit,
		writeTimeout: writeTimeout,
	}

	a.mux = http.NewServeMux()
	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.Handle("GET /", http.FileServerFS(web.Assets))
	return a
}

func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		a.serveSession(w, r)
		return
	}
	a.mux.ServeHTTP(w, r)
}

func (a *Acceptor) serveSession(w http.ResponseWriter, r *http.Request) {
	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		a.log.Warn("WebSocket handshake failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	a.sessions.Add(1)
	defer a.sessions.Done()

	conn := NewConn(ws, a.readLimit, a.writeTimeout)
	defer func() { _ = conn.Close() }()

	s := session.NewSession(a.log, conn, a.bus, a.monitoring, a.censor)
	if err := s.Run(r.Context()); err != nil {
		a.log.Warn("Session ended with error", "connection_id", s.ID(), "error", err)
	}
}

func (a *Acceptor) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Wait blocks until every running session has returned.
func (a *Acceptor) Wait() {
	a.sessions.Wait()
}
