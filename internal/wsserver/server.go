// Package wsserver implements the command executor for the remote store
// backend: a WebSocket server speaking the Bedrock wsserver protocol.
//
// The game attaches to us (a player runs `/connect host:port`), after which
// commands travel as commandRequest JSON envelopes keyed by a request id and
// responses are matched back by the same id. Until a world is attached the
// executor reports itself unavailable and every command fails fast.
package wsserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shulkerdb/shulker/pkg/scorestore"
)

// DefaultCommandTimeout bounds how long Execute waits for the game to answer
// a single command. The transport may drop commands under load, so waiting
// forever would wedge callers.
const DefaultCommandTimeout = 10 * time.Second

const protocolVersion = 1

type header struct {
	Version        int    `json:"version"`
	RequestID      string `json:"requestId"`
	MessagePurpose string `json:"messagePurpose"`
	MessageType    string `json:"messageType,omitempty"`
}

type message struct {
	Header header          `json:"header"`
	Body   json.RawMessage `json:"body"`
}

type commandRequestBody struct {
	Version     int           `json:"version"`
	CommandLine string        `json:"commandLine"`
	Origin      commandOrigin `json:"origin"`
}

type commandOrigin struct {
	Type string `json:"type"`
}

type commandResponseBody struct {
	StatusCode    int    `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	SuccessCount  *int   `json:"successCount,omitempty"`
}

// Server accepts one game connection and executes commands over it. It
// implements scorestore.Executor. Safe for concurrent use.
type Server struct {
	addr       string
	timeout    time.Duration
	upgrader   websocket.Upgrader
	httpServer *http.Server

	mu        sync.Mutex
	boundAddr string
	conn      *websocket.Conn
	writeMu   sync.Mutex
	pending   map[string]chan *commandResponseBody
}

// Addr returns the bound listen address once Start has opened the listener.
// Useful when the configured address used port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

// New creates a server that will listen on addr. Call Start to begin
// accepting the game connection.
func New(addr string) *Server {
	return &Server{
		addr:    addr,
		timeout: DefaultCommandTimeout,
		upgrader: websocket.Upgrader{
			// The game sends no Origin header worth checking.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pending: make(map[string]chan *commandResponseBody),
	}
}

// Start runs the listener until the context is cancelled. It blocks; run it
// in its own goroutine when embedding.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleConnect)
	s.httpServer = &http.Server{Handler: mux}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("wsserver listen failed: %w", err)
	}
	s.mu.Lock()
	s.boundAddr = ln.Addr().String()
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] wsserver: listening on %s (attach with /connect %s)", ln.Addr(), ln.Addr())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("wsserver listen failed: %w", err)
	}
}

// handleConnect upgrades the game's HTTP request and installs it as the
// active session. A new connection replaces any previous one.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WARN] wsserver: upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}

	s.mu.Lock()
	if s.conn != nil {
		log.Printf("[INFO] wsserver: replacing existing game session")
		s.conn.Close()
	}
	s.conn = conn
	s.mu.Unlock()

	log.Printf("[INFO] wsserver: world attached from %s", r.RemoteAddr)
	s.readLoop(conn)
}

// readLoop dispatches responses to their waiting Execute calls until the
// connection drops.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
			log.Printf("[INFO] wsserver: world detached")
		}
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[WARN] wsserver: discarding unparseable frame: %v", err)
			continue
		}
		if msg.Header.MessagePurpose != "commandResponse" {
			continue
		}

		var body commandResponseBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			log.Printf("[WARN] wsserver: discarding unparseable command response: %v", err)
			continue
		}

		s.mu.Lock()
		ch, ok := s.pending[msg.Header.RequestID]
		if ok {
			delete(s.pending, msg.Header.RequestID)
		}
		s.mu.Unlock()
		if ok {
			ch <- &body
		}
	}
}

// Available reports whether a world is currently attached.
func (s *Server) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Execute sends one command to the attached world and waits for its
// response. Returns scorestore.ErrBackendUnavailable when no world is
// attached, and times out if the game never answers (the transport is
// allowed to drop commands under load).
func (s *Server) Execute(ctx context.Context, command string) (*scorestore.CommandResult, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil, scorestore.ErrBackendUnavailable
	}

	requestID := uuid.New().String()
	body, err := json.Marshal(commandRequestBody{
		Version:     protocolVersion,
		CommandLine: command,
		Origin:      commandOrigin{Type: "player"},
	})
	if err != nil {
		return nil, fmt.Errorf("cannot marshal command body: %w", err)
	}
	msg := message{
		Header: header{
			Version:        protocolVersion,
			RequestID:      requestID,
			MessagePurpose: "commandRequest",
			MessageType:    "commandRequest",
		},
		Body: body,
	}

	ch := make(chan *commandResponseBody, 1)
	s.mu.Lock()
	s.pending[requestID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, requestID)
		s.mu.Unlock()
	}()

	s.writeMu.Lock()
	err = conn.WriteJSON(msg)
	s.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("cannot write command: %w", err)
	}

	select {
	case resp := <-ch:
		return &scorestore.CommandResult{
			SuccessCount:  resp.SuccessCount,
			StatusMessage: resp.StatusMessage,
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.timeout):
		return nil, fmt.Errorf("no response to command after %v", s.timeout)
	}
}
